// Package http provides the JSON API of the rendez-vous service.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal":{"user_id","is_admin"},"member"} with the
//     token also surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: clears the session cookie.
//   - GET /members?search=&page=&per_page=, POST /members: attendee picker and
//     administrator controlled member creation exchanging `memberDTO`.
//   - GET /rendez-vous, POST /rendez-vous, GET|PATCH|DELETE /rendez-vous/{id}:
//     rendez-vous management exchanging `rendezVousDTO`. PATCH bodies carry the
//     "version" the client edited; a stale version answers 409.
//   - PUT /rendez-vous/{id}/votes, GET /rendez-vous/{id}/resolution,
//     POST /rendez-vous/{id}/confirm, POST /rendez-vous/{id}/cancel: voting,
//     resolution with overlap warnings and the lifecycle transitions.
//   - GET /groups/{id}, PUT /groups/{id}/rendez-vous: group settings of the
//     rendez-vous extension.
//   - GET /activity?item={id}, GET /notifications: activity stream of one
//     rendez-vous and the caller's notifications.
//
// Every route except the session endpoints requires a bearer token or the
// session cookie. Errors are answered as {"error_code","message","errors"}.
package http
