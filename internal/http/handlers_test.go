package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
	"github.com/example/rendez-vous/internal/testfixtures"
)

var handlerNow = time.Date(2030, 1, 6, 9, 0, 0, 0, time.UTC)

type authServiceStub struct {
	result application.AuthenticateResult
	err    error
	params application.AuthenticateParams
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.params = params
	return s.result, s.err
}

type memberServiceStub struct {
	page         application.MemberPage
	err          error
	searchParams application.SearchMembersParams
	created      application.CreateMemberParams
}

func (s *memberServiceStub) Search(ctx context.Context, params application.SearchMembersParams) (application.MemberPage, error) {
	s.searchParams = params
	return s.page, s.err
}

func (s *memberServiceStub) Create(ctx context.Context, params application.CreateMemberParams) (application.Member, error) {
	s.created = params
	if s.err != nil {
		return application.Member{}, s.err
	}
	return application.Member{ID: "m-new", Email: params.Email, DisplayName: params.DisplayName}, nil
}

type rendezVousServiceStub struct {
	record  scheduling.RendezVous
	report  application.ResolutionReport
	err     error
	list    application.ListRendezVousParams
	create  application.CreateRendezVousParams
	update  application.UpdateRendezVousParams
	votes   application.CastVotesParams
	confirm application.ConfirmParams
	deleted string
}

func (s *rendezVousServiceStub) Policy() scheduling.SchedulingPolicy { return scheduling.MemberPolicy{} }

func (s *rendezVousServiceStub) Create(ctx context.Context, params application.CreateRendezVousParams) (scheduling.RendezVous, error) {
	s.create = params
	return s.record, s.err
}

func (s *rendezVousServiceStub) Get(ctx context.Context, principal application.Principal, id string) (scheduling.RendezVous, error) {
	if s.err != nil {
		return scheduling.RendezVous{}, s.err
	}
	if id != s.record.ID {
		return scheduling.RendezVous{}, &scheduling.NotFoundError{ID: id}
	}
	return s.record, nil
}

func (s *rendezVousServiceStub) List(ctx context.Context, params application.ListRendezVousParams) ([]scheduling.RendezVous, error) {
	s.list = params
	return []scheduling.RendezVous{s.record}, s.err
}

func (s *rendezVousServiceStub) Update(ctx context.Context, params application.UpdateRendezVousParams) (scheduling.RendezVous, error) {
	s.update = params
	return s.record, s.err
}

func (s *rendezVousServiceStub) CastVotes(ctx context.Context, params application.CastVotesParams) (scheduling.RendezVous, error) {
	s.votes = params
	return s.record, s.err
}

func (s *rendezVousServiceStub) Resolve(ctx context.Context, principal application.Principal, id string) (application.ResolutionReport, error) {
	return s.report, s.err
}

func (s *rendezVousServiceStub) Confirm(ctx context.Context, params application.ConfirmParams) (scheduling.RendezVous, error) {
	s.confirm = params
	return s.record, s.err
}

func (s *rendezVousServiceStub) Cancel(ctx context.Context, principal application.Principal, id string) (scheduling.RendezVous, error) {
	return s.record, s.err
}

func (s *rendezVousServiceStub) Delete(ctx context.Context, principal application.Principal, id string) error {
	s.deleted = id
	return s.err
}

type groupServiceStub struct {
	group   application.Group
	err     error
	enabled *bool
}

func (s *groupServiceStub) Get(ctx context.Context, id string) (application.Group, error) {
	return s.group, s.err
}

func (s *groupServiceStub) SetRendezVousEnabled(ctx context.Context, principal application.Principal, groupID string, enabled bool) (application.Group, error) {
	s.enabled = &enabled
	if s.err != nil {
		return application.Group{}, s.err
	}
	group := s.group
	group.RendezVousEnabled = enabled
	return group, nil
}

type activityReaderStub struct {
	activities    []persistence.Activity
	notifications []persistence.Notification
	recipient     string
}

func (s *activityReaderStub) Activities(ctx context.Context, rendezVousID string) ([]persistence.Activity, error) {
	return s.activities, nil
}

func (s *activityReaderStub) Notifications(ctx context.Context, recipientID string) ([]persistence.Notification, error) {
	s.recipient = recipientID
	return s.notifications, nil
}

type routerFixture struct {
	auth       *authServiceStub
	members    *memberServiceStub
	rendezVous *rendezVousServiceStub
	groups     *groupServiceStub
	activity   *activityReaderStub
	forgotten  []string
	handler    http.Handler
}

func sampleRendezVous() scheduling.RendezVous {
	first := time.Date(2030, 2, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2030, 2, 2, 10, 0, 0, 0, time.UTC)
	dates := []time.Time{first, second}
	attendees := []string{"alice", "bob"}
	return scheduling.RendezVous{
		ID:             "rdv-1",
		Organizer:      "alice",
		Title:          "Planning",
		Duration:       60,
		CandidateDates: dates,
		Attendees:      attendees,
		Status:         scheduling.StatusDraft,
		Ledger: scheduling.Restore(attendees, dates, []scheduling.Cell{
			{Attendee: "bob", Date: first, Vote: scheduling.VoteAvailable},
		}),
		Version:   2,
		CreatedAt: handlerNow,
		UpdatedAt: handlerNow,
	}
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		auth:       &authServiceStub{},
		members:    &memberServiceStub{},
		rendezVous: &rendezVousServiceStub{record: sampleRendezVous()},
		groups:     &groupServiceStub{group: application.Group{ID: "g1", Slug: "hikers", Name: "Hikers"}},
		activity:   &activityReaderStub{},
	}
	validator := &tokenValidatorStub{principals: map[string]application.Principal{
		"alice-token": {UserID: "alice"},
		"admin-token": {UserID: "root", IsAdmin: true},
	}}
	f.handler = NewRouter(RouterConfig{
		Auth:       NewAuthHandler(f.auth, false, nil),
		Members:    NewMemberHandler(f.members, nil),
		RendezVous: NewRendezVousHandler(f.rendezVous, nil),
		Groups:     NewGroupHandler(f.groups, func(id string) { f.forgotten = append(f.forgotten, id) }, nil),
		Activity:   NewActivityHandler(f.activity, f.rendezVous, nil),
		Sessions:   validator,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, f.handler, method, target, token, body)
}

// newServiceRouter serves the real service graph over a fresh database.
// Requests authenticate with the fixture tokens.
func newServiceRouter(t *testing.T) http.Handler {
	t.Helper()

	services, err := testfixtures.NewServiceFactory().NewServices(testfixtures.NewSQLiteHarness(t))
	if err != nil {
		t.Fatalf("failed to wire services: %v", err)
	}
	return NewRouter(RouterConfig{
		Auth:       NewAuthHandler(services.Auth, false, nil),
		Members:    NewMemberHandler(services.Members, nil),
		RendezVous: NewRendezVousHandler(services.RendezVous, nil),
		Groups:     NewGroupHandler(services.Groups, services.Policy.Forget, nil),
		Activity:   NewActivityHandler(services.Publisher, services.RendezVous, nil),
		Sessions: &tokenValidatorStub{principals: map[string]application.Principal{
			"alice-token": {UserID: "alice"},
		}},
	})
}

func doRequest(t *testing.T, handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("issues a token", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		f.auth.result = application.AuthenticateResult{
			Token:     "signed",
			ExpiresAt: handlerNow.Add(time.Hour),
			Principal: application.Principal{UserID: "alice"},
			Member:    application.Member{ID: "alice", Email: "alice@example.com"},
		}

		rec := f.do(t, http.MethodPost, "/sessions", "", loginRequest{Email: " Alice@Example.com ", Password: "secret-pw"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if f.auth.params.Email != "alice@example.com" {
			t.Fatalf("expected normalized email, got %q", f.auth.params.Email)
		}
		if rec.Header().Get("X-Session-Token") != "signed" {
			t.Fatalf("expected the token header to be set")
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].Value != "signed" {
			t.Fatalf("unexpected cookies: %#v", cookies)
		}
		resp := decodeBody[loginResponse](t, rec)
		if resp.Token != "signed" || resp.Principal.UserID != "alice" || resp.Member.Email != "alice@example.com" {
			t.Fatalf("unexpected response: %#v", resp)
		}
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		f.auth.err = application.ErrInvalidCredentials
		rec := f.do(t, http.MethodPost, "/sessions", "", loginRequest{Email: "alice@example.com", Password: "nope"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if resp := decodeBody[errorResponse](t, rec); resp.ErrorCode != "INVALID_CREDENTIALS" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
	})
}

func TestRouter_RequiresSession(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	for _, target := range []string{"/members", "/rendez-vous", "/rendez-vous/rdv-1", "/groups/g1", "/notifications"} {
		if rec := f.do(t, http.MethodGet, target, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestRendezVousHandler_Get(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodGet, "/rendez-vous/rdv-1?action=edit", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	dto := decodeBody[rendezVousDTO](t, rec)
	if dto.Action != scheduling.ActionEdit {
		t.Fatalf("expected edit action, got %q", dto.Action)
	}
	if dto.Links.View != "/members/alice/rendez-vous/?rdv=rdv-1" {
		t.Fatalf("unexpected links: %#v", dto.Links)
	}
	if len(dto.CandidateDates) != 2 || dto.CandidateDates[0] != "2030-02-01T10:00:00Z" {
		t.Fatalf("unexpected dates: %v", dto.CandidateDates)
	}
	if len(dto.Votes) != 4 {
		t.Fatalf("expected one cell per attendee and date, got %d", len(dto.Votes))
	}

	if rec := f.do(t, http.MethodGet, "/rendez-vous/missing", "alice-token", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown records, got %d", rec.Code)
	}
}

func TestRendezVousHandler_List(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodGet, "/rendez-vous?organizer=alice&status=draft,scheduled&from=2030-01-01T00:00:00Z", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	params := f.rendezVous.list
	if params.OrganizerID != "alice" || len(params.Statuses) != 2 || params.From == nil || params.Principal.UserID != "alice" {
		t.Fatalf("unexpected list params: %#v", params)
	}
	if resp := decodeBody[rendezVousListResponse](t, rec); len(resp.RendezVous) != 1 {
		t.Fatalf("expected one record, got %d", len(resp.RendezVous))
	}

	rec = f.do(t, http.MethodGet, "/rendez-vous?status=archived&to=tomorrow", "alice-token", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if len(resp.Errors["status"]) != 1 || len(resp.Errors["to"]) != 1 {
		t.Fatalf("expected both filters to be reported, got %#v", resp.Errors)
	}
}

func TestRendezVousHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("passes the proposal through", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		rec := f.do(t, http.MethodPost, "/rendez-vous", "alice-token", createRendezVousRequest{
			Title:     "Planning",
			Duration:  60,
			Dates:     []string{"2030-02-01T10:00:00Z", "1896134400"},
			Days:      []candidateDayDTO{{Date: "2030-02-03", Hours: []string{"09:00"}}},
			Attendees: []string{"bob"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Location") != "/rendez-vous/rdv-1" {
			t.Fatalf("unexpected location %q", rec.Header().Get("Location"))
		}
		input := f.rendezVous.create.Input
		if len(input.Dates) != 2 || len(input.Days) != 1 || input.Days[0].Hours[0] != "09:00" {
			t.Fatalf("unexpected input: %#v", input)
		}
		if !input.Dates[1].Equal(time.Unix(1896134400, 0)) {
			t.Fatalf("expected unix seconds to be accepted, got %v", input.Dates[1])
		}
	})

	t.Run("passes unparsable dates to the service", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		rec := f.do(t, http.MethodPost, "/rendez-vous", "alice-token", createRendezVousRequest{
			Title: "Planning",
			Dates: []string{"next friday", "2030-02-01T10:00:00Z"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected the stub to accept the request, got %d", rec.Code)
		}
		input := f.rendezVous.create.Input
		if len(input.Dates) != 1 || len(input.Rejected) != 1 || input.Rejected[0].Field != "dates" {
			t.Fatalf("expected one parsed date and one rejected value, got %#v", input)
		}
	})

	t.Run("reports unparsable dates with every other violation", func(t *testing.T) {
		t.Parallel()

		handler := newServiceRouter(t)
		rec := doRequest(t, handler, http.MethodPost, "/rendez-vous", "alice-token", createRendezVousRequest{
			Dates: []string{"next friday"},
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decodeBody[errorResponse](t, rec)
		if resp.ErrorCode != "VALIDATION" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
		for _, field := range []string{"dates", "title", "duration", "candidate_dates", "attendees"} {
			if len(resp.Errors[field]) == 0 {
				t.Fatalf("expected %q to be reported, got %#v", field, resp.Errors)
			}
		}
	})

	t.Run("maps engine validation errors", func(t *testing.T) {
		t.Parallel()

		f := newRouterFixture()
		vErr := &scheduling.ValidationError{}
		vErr.Add("title", "title is required")
		vErr.Add("duration", "duration must be positive")
		f.rendezVous.err = vErr
		rec := f.do(t, http.MethodPost, "/rendez-vous", "alice-token", createRendezVousRequest{})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if resp := decodeBody[errorResponse](t, rec); len(resp.Errors) != 2 {
			t.Fatalf("expected every field to be reported, got %#v", resp.Errors)
		}
	})
}

func TestRendezVousHandler_Update(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	title := "Renamed"
	rec := f.do(t, http.MethodPatch, "/rendez-vous/rdv-1", "alice-token", map[string]any{
		"version": 2,
		"title":   title,
		"dates":   []string{"2030-02-01T10:00:00Z"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	params := f.rendezVous.update
	if params.Version != 2 || params.RendezVousID != "rdv-1" || params.Input.Title == nil || *params.Input.Title != title {
		t.Fatalf("unexpected update params: %#v", params)
	}
	if params.Input.Dates == nil || len(*params.Input.Dates) != 1 || params.Input.Venue != nil {
		t.Fatalf("expected only the sent fields to be set: %#v", params.Input)
	}

	f.rendezVous.err = application.ErrConflict
	rec = f.do(t, http.MethodPatch, "/rendez-vous/rdv-1", "alice-token", map[string]any{"version": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale versions, got %d", rec.Code)
	}
	if resp := decodeBody[errorResponse](t, rec); resp.ErrorCode != "CONFLICT" {
		t.Fatalf("unexpected error code %q", resp.ErrorCode)
	}
}

func TestRendezVousHandler_Votes(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	rec := f.do(t, http.MethodPut, "/rendez-vous/rdv-1/votes", "alice-token", castVotesRequest{Votes: []voteCellDTO{
		{Date: "2030-02-01T10:00:00Z", Vote: "available"},
		{Date: "2030-02-02T10:00:00Z", Vote: "unavailable"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.rendezVous.votes.Votes; len(got) != 2 || got[1].Vote != scheduling.VoteUnavailable {
		t.Fatalf("unexpected votes: %#v", got)
	}

	f.rendezVous.err = &scheduling.NotEligibleError{Attendee: "carol", Reason: "not an attendee"}
	rec = f.do(t, http.MethodPut, "/rendez-vous/rdv-1/votes", "alice-token", castVotesRequest{Votes: []voteCellDTO{
		{Date: "2030-02-01T10:00:00Z", Vote: "available"},
	}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for ineligible voters, got %d", rec.Code)
	}

	f.rendezVous.err = nil
	rec = f.do(t, http.MethodPut, "/rendez-vous/rdv-1/votes", "alice-token", castVotesRequest{Votes: []voteCellDTO{
		{Date: "soon", Vote: "available"},
		{Date: "2030-02-01T10:00:00Z", Vote: "available"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the stub to accept the submission, got %d", rec.Code)
	}
	params := f.rendezVous.votes
	if len(params.Votes) != 1 || len(params.Rejected) != 1 || params.Rejected[0].Field != "votes[0].date" {
		t.Fatalf("expected the bad cell to travel as a rejected value, got %#v", params)
	}
}

func TestRendezVousHandler_Resolution(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	date := time.Date(2030, 2, 1, 10, 0, 0, 0, time.UTC)
	f.rendezVous.report = application.ResolutionReport{
		RendezVousID: "rdv-1",
		Version:      2,
		Resolution: scheduling.Resolution{
			Outcome: scheduling.OutcomeDecided,
			Date:    date,
			Ends:    date.Add(time.Hour),
			Score:   1,
			Scores:  []scheduling.DateScore{{Date: date, Available: 1, Unspecified: 1, Score: 1, Agreement: scheduling.AgreementPartial}},
		},
		Overlaps: []scheduling.Overlap{{Date: date, Attendee: "bob", WithRendezVous: "rdv-9"}},
	}

	rec := f.do(t, http.MethodGet, "/rendez-vous/rdv-1/resolution", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	dto := decodeBody[resolutionDTO](t, rec)
	if dto.Outcome != "decided" || dto.Date == nil || *dto.Ends != "2030-02-01T11:00:00Z" {
		t.Fatalf("unexpected resolution: %#v", dto)
	}
	if len(dto.Overlaps) != 1 || dto.Overlaps[0].WithRendezVous != "rdv-9" {
		t.Fatalf("unexpected overlaps: %#v", dto.Overlaps)
	}
}

func TestRendezVousHandler_Lifecycle(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()

	rec := f.do(t, http.MethodPost, "/rendez-vous/rdv-1/confirm", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 confirming the resolved date, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.rendezVous.confirm.Date != nil {
		t.Fatalf("expected no explicit date")
	}

	rec = f.do(t, http.MethodPost, "/rendez-vous/rdv-1/confirm", "alice-token", confirmRequest{Date: "2030-02-02T10:00:00Z", Reschedule: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.rendezVous.confirm.Date == nil || !f.rendezVous.confirm.Reschedule {
		t.Fatalf("unexpected confirm params: %#v", f.rendezVous.confirm)
	}

	if rec := f.do(t, http.MethodPost, "/rendez-vous/rdv-1/cancel", "alice-token", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 cancelling, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/rendez-vous/rdv-1", "alice-token", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 deleting, got %d", rec.Code)
	}
	if f.rendezVous.deleted != "rdv-1" {
		t.Fatalf("expected rdv-1 to be deleted, got %q", f.rendezVous.deleted)
	}

	f.rendezVous.err = &scheduling.AlreadyScheduledError{}
	if rec := f.do(t, http.MethodPost, "/rendez-vous/rdv-1/confirm", "alice-token", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for scheduled records, got %d", rec.Code)
	}
}

func TestMemberHandler(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	f.members.page = application.MemberPage{
		Members:    []application.Member{{ID: "bob", DisplayName: "Bob"}},
		Total:      21,
		Page:       2,
		PerPage:    20,
		TotalPages: 2,
	}

	rec := f.do(t, http.MethodGet, "/members?search=bo&page=2&exclude=carol,dave", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if p := f.members.searchParams; p.Terms != "bo" || p.Page != 2 || len(p.Exclude) != 2 {
		t.Fatalf("unexpected search params: %#v", p)
	}
	if rec.Header().Get("X-Total-Count") != "21" {
		t.Fatalf("expected total count header, got %q", rec.Header().Get("X-Total-Count"))
	}
	if resp := decodeBody[memberPageResponse](t, rec); resp.TotalPages != 2 || len(resp.Members) != 1 {
		t.Fatalf("unexpected page: %#v", resp)
	}

	if rec := f.do(t, http.MethodGet, "/members?page=two", "alice-token", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed page, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/members", "admin-token", createMemberRequest{Email: "erin@example.com", DisplayName: "Erin", Password: "long-enough"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !f.members.created.Principal.IsAdmin {
		t.Fatalf("expected the admin principal to be forwarded")
	}

	f.members.err = application.ErrUnauthorized
	if rec := f.do(t, http.MethodPost, "/members", "alice-token", createMemberRequest{Email: "x@example.com"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestGroupHandler(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	if rec := f.do(t, http.MethodGet, "/groups/g1", "alice-token", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodPut, "/groups/g1/rendez-vous", "alice-token", map[string]bool{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[groupDTO](t, rec); !resp.RendezVousEnabled {
		t.Fatalf("expected the extension to be enabled")
	}
	if len(f.forgotten) != 1 || f.forgotten[0] != "g1" {
		t.Fatalf("expected the change callback to run, got %v", f.forgotten)
	}

	if rec := f.do(t, http.MethodPut, "/groups/g1/rendez-vous", "alice-token", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without enabled, got %d", rec.Code)
	}
}

func TestActivityHandler(t *testing.T) {
	t.Parallel()

	f := newRouterFixture()
	f.activity.activities = []persistence.Activity{{ID: "a1", Type: "new_rendez_vous", RendezVousID: "rdv-1", CreatedAt: handlerNow}}
	f.activity.notifications = []persistence.Notification{{ID: "n1", RecipientID: "alice", Kind: "confirmed", CreatedAt: handlerNow}}

	rec := f.do(t, http.MethodGet, "/activity?item=rdv-1", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeBody[activityListResponse](t, rec); len(resp.Activities) != 1 || resp.Activities[0].Type != "new_rendez_vous" {
		t.Fatalf("unexpected activities: %#v", resp)
	}

	if rec := f.do(t, http.MethodGet, "/activity?item=other", "alice-token", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for records the caller cannot see, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/activity", "alice-token", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without item, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/notifications", "alice-token", nil)
	if rec.Code != http.StatusOK || f.activity.recipient != "alice" {
		t.Fatalf("expected the caller's notifications, got %d for %q", rec.Code, f.activity.recipient)
	}
}
