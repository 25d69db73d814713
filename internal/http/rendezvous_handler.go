package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/scheduling"
)

type rendezVousService interface {
	Policy() scheduling.SchedulingPolicy
	Create(ctx context.Context, params application.CreateRendezVousParams) (scheduling.RendezVous, error)
	Get(ctx context.Context, principal application.Principal, id string) (scheduling.RendezVous, error)
	List(ctx context.Context, params application.ListRendezVousParams) ([]scheduling.RendezVous, error)
	Update(ctx context.Context, params application.UpdateRendezVousParams) (scheduling.RendezVous, error)
	CastVotes(ctx context.Context, params application.CastVotesParams) (scheduling.RendezVous, error)
	Resolve(ctx context.Context, principal application.Principal, id string) (application.ResolutionReport, error)
	Confirm(ctx context.Context, params application.ConfirmParams) (scheduling.RendezVous, error)
	Cancel(ctx context.Context, principal application.Principal, id string) (scheduling.RendezVous, error)
	Delete(ctx context.Context, principal application.Principal, id string) error
}

type RendezVousHandler struct {
	service   rendezVousService
	responder responder
	logger    *slog.Logger
}

func NewRendezVousHandler(service rendezVousService, logger *slog.Logger) *RendezVousHandler {
	base := defaultLogger(logger)
	return &RendezVousHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RendezVousHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(r, h.logger, "RendezVousHandler", operation, attrs...)
}

func (h *RendezVousHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := application.ListRendezVousParams{
		Principal:   principal,
		OrganizerID: strings.TrimSpace(query.Get("organizer")),
		AttendeeID:  strings.TrimSpace(query.Get("attendee")),
		GroupID:     strings.TrimSpace(query.Get("group")),
	}
	vErr := &scheduling.ValidationError{}
	for _, status := range splitList(query["status"]) {
		s := scheduling.Status(status)
		if !s.Valid() {
			vErr.Add("status", fmt.Sprintf("unknown status %q", status))
			continue
		}
		params.Statuses = append(params.Statuses, s)
	}
	params.From = optionalInstant(query.Get("from"), "from", vErr)
	params.To = optionalInstant(query.Get("to"), "to", vErr)
	if err := vErr.Err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	records, err := h.service.List(r.Context(), params)
	if err != nil {
		h.log(r, "List").ErrorContext(r.Context(), "failed to list rendez-vous", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	policy := h.service.Policy()
	policy.Prepare(r.Context(), records...)
	items := make([]rendezVousDTO, 0, len(records))
	for _, rv := range records {
		items = append(items, toRendezVousDTO(r.Context(), rv, policy))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rendezVousListResponse{RendezVous: items})
}

func (h *RendezVousHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}

	var req createRendezVousRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &scheduling.ValidationError{}
	input := application.CreateRendezVousInput{
		Organizer:      req.Organizer,
		GroupID:        req.GroupID,
		Title:          req.Title,
		Description:    req.Description,
		Venue:          req.Venue,
		Duration:       req.Duration,
		Dates:          parseInstants(req.Dates, "dates", vErr),
		Days:           toCandidateDays(req.Days),
		Attendees:      req.Attendees,
		AllowPastDates: req.AllowPastDates,
	}
	input.Rejected = vErr.Violations

	rv, err := h.service.Create(r.Context(), application.CreateRendezVousParams{Principal: principal, Input: input})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dto := toRendezVousDTO(r.Context(), rv, h.service.Policy())
	w.Header().Set("Location", "/rendez-vous/"+rv.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, dto)
}

// Get returns one record. The policy's action for the query is echoed so
// clients can open the right view.
func (h *RendezVousHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	rv, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	policy := h.service.Policy()
	query := r.URL.Query()
	if query.Get("rdv") == "" {
		query.Set("rdv", rv.ID)
	}
	dto := toRendezVousDTO(r.Context(), rv, policy)
	dto.Action = policy.CurrentAction(query)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dto)
}

func (h *RendezVousHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req updateRendezVousRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &scheduling.ValidationError{}
	input := application.UpdateRendezVousInput{
		Organizer:      req.Organizer,
		Title:          req.Title,
		Description:    req.Description,
		Venue:          req.Venue,
		Duration:       req.Duration,
		Attendees:      req.Attendees,
		AllowPastDates: req.AllowPastDates,
	}
	if req.Dates != nil {
		dates := parseInstants(*req.Dates, "dates", vErr)
		input.Dates = &dates
	}
	if req.Days != nil {
		days := toCandidateDays(*req.Days)
		input.Days = &days
	}
	input.Rejected = vErr.Violations

	rv, err := h.service.Update(r.Context(), application.UpdateRendezVousParams{
		Principal:    principal,
		RendezVousID: id,
		Version:      req.Version,
		Input:        input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRendezVousDTO(r.Context(), rv, h.service.Policy()))
}

func (h *RendezVousHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// CastVotes stores every cell of one submission of the vote grid.
func (h *RendezVousHandler) CastVotes(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req castVotesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &scheduling.ValidationError{}
	votes := make([]application.VoteInput, 0, len(req.Votes))
	for i, cell := range req.Votes {
		date, err := parseInstant(cell.Date)
		if err != nil {
			vErr.Add(fmt.Sprintf("votes[%d].date", i), err.Error())
			continue
		}
		votes = append(votes, application.VoteInput{Date: date, Vote: scheduling.Vote(strings.TrimSpace(cell.Vote))})
	}

	rv, err := h.service.CastVotes(r.Context(), application.CastVotesParams{
		Principal:    principal,
		RendezVousID: id,
		Votes:        votes,
		Rejected:     vErr.Violations,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRendezVousDTO(r.Context(), rv, h.service.Policy()))
}

func (h *RendezVousHandler) Resolution(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	report, err := h.service.Resolve(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toResolutionDTO(report))
}

// Confirm fixes the meeting date. An empty body confirms the resolved date.
func (h *RendezVousHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params := application.ConfirmParams{Principal: principal, RendezVousID: id, Reschedule: req.Reschedule}
	if strings.TrimSpace(req.Date) != "" {
		date, err := parseInstant(req.Date)
		if err != nil {
			vErr := &scheduling.ValidationError{}
			vErr.Add("date", err.Error())
			h.responder.handleServiceError(r.Context(), w, vErr)
			return
		}
		params.Date = &date
	}

	rv, err := h.service.Confirm(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRendezVousDTO(r.Context(), rv, h.service.Policy()))
}

func (h *RendezVousHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}

	rv, err := h.service.Cancel(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRendezVousDTO(r.Context(), rv, h.service.Policy()))
}

func (h *RendezVousHandler) target(w http.ResponseWriter, r *http.Request) (application.Principal, string, bool) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return application.Principal{}, "", false
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return application.Principal{}, "", false
	}
	return principal, id, true
}

type candidateDayDTO struct {
	Date  string   `json:"date"`
	Hours []string `json:"hours"`
}

type createRendezVousRequest struct {
	Organizer      string            `json:"organizer"`
	GroupID        string            `json:"group_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Venue          string            `json:"venue"`
	Duration       int               `json:"duration"`
	Dates          []string          `json:"dates"`
	Days           []candidateDayDTO `json:"days"`
	Attendees      []string          `json:"attendees"`
	AllowPastDates bool              `json:"allow_past_dates"`
}

type updateRendezVousRequest struct {
	Version        int64              `json:"version"`
	Organizer      *string            `json:"organizer"`
	Title          *string            `json:"title"`
	Description    *string            `json:"description"`
	Venue          *string            `json:"venue"`
	Duration       *int               `json:"duration"`
	Dates          *[]string          `json:"dates"`
	Days           *[]candidateDayDTO `json:"days"`
	Attendees      *[]string          `json:"attendees"`
	AllowPastDates bool               `json:"allow_past_dates"`
}

type voteCellDTO struct {
	Attendee string `json:"attendee,omitempty"`
	Date     string `json:"date"`
	Vote     string `json:"vote"`
}

type castVotesRequest struct {
	Votes []voteCellDTO `json:"votes"`
}

type confirmRequest struct {
	Date       string `json:"date"`
	Reschedule bool   `json:"reschedule"`
}

type rendezVousDTO struct {
	ID             string           `json:"id"`
	Organizer      string           `json:"organizer"`
	GroupID        string           `json:"group_id,omitempty"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Venue          string           `json:"venue,omitempty"`
	Duration       int              `json:"duration"`
	CandidateDates []string         `json:"candidate_dates"`
	Attendees      []string         `json:"attendees"`
	Status         string           `json:"status"`
	ConfirmedDate  *string          `json:"confirmed_date,omitempty"`
	Votes          []voteCellDTO    `json:"votes"`
	Version        int64            `json:"version"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
	Links          scheduling.Links `json:"links"`
	Action         string           `json:"action,omitempty"`
}

type rendezVousListResponse struct {
	RendezVous []rendezVousDTO `json:"rendez_vous"`
}

type dateScoreDTO struct {
	Date        string `json:"date"`
	Available   int    `json:"available"`
	Unavailable int    `json:"unavailable"`
	Unspecified int    `json:"unspecified"`
	Score       int    `json:"score"`
	Agreement   string `json:"agreement"`
}

type overlapDTO struct {
	Date           string `json:"date"`
	Attendee       string `json:"attendee"`
	WithRendezVous string `json:"with_rendez_vous"`
}

type resolutionDTO struct {
	RendezVousID string         `json:"rendez_vous_id"`
	Version      int64          `json:"version"`
	Outcome      string         `json:"outcome"`
	Date         *string        `json:"date,omitempty"`
	Ends         *string        `json:"ends,omitempty"`
	Score        int            `json:"score"`
	Scores       []dateScoreDTO `json:"scores"`
	Overlaps     []overlapDTO   `json:"overlaps"`
}

func toRendezVousDTO(ctx context.Context, rv scheduling.RendezVous, policy scheduling.SchedulingPolicy) rendezVousDTO {
	dto := rendezVousDTO{
		ID:             rv.ID,
		Organizer:      rv.Organizer,
		GroupID:        rv.GroupID,
		Title:          rv.Title,
		Description:    rv.Description,
		Venue:          rv.Venue,
		Duration:       rv.Duration,
		CandidateDates: formatInstants(rv.CandidateDates),
		Attendees:      append([]string{}, rv.Attendees...),
		Status:         string(rv.Status),
		Version:        rv.Version,
		CreatedAt:      formatInstant(rv.CreatedAt),
		UpdatedAt:      formatInstant(rv.UpdatedAt),
	}
	if rv.ConfirmedDate != nil {
		confirmed := formatInstant(*rv.ConfirmedDate)
		dto.ConfirmedDate = &confirmed
	}
	cells := rv.Ledger.Cells()
	dto.Votes = make([]voteCellDTO, 0, len(cells))
	for _, cell := range cells {
		dto.Votes = append(dto.Votes, voteCellDTO{
			Attendee: cell.Attendee,
			Date:     formatInstant(cell.Date),
			Vote:     string(cell.Vote),
		})
	}
	if policy != nil {
		policy.Prepare(ctx, rv)
		dto.Links = policy.Links(rv)
	}
	return dto
}

func toResolutionDTO(report application.ResolutionReport) resolutionDTO {
	res := report.Resolution
	dto := resolutionDTO{
		RendezVousID: report.RendezVousID,
		Version:      report.Version,
		Outcome:      string(res.Outcome),
		Score:        res.Score,
		Scores:       make([]dateScoreDTO, 0, len(res.Scores)),
		Overlaps:     make([]overlapDTO, 0, len(report.Overlaps)),
	}
	if res.Decided() {
		date, ends := formatInstant(res.Date), formatInstant(res.Ends)
		dto.Date, dto.Ends = &date, &ends
	}
	for _, score := range res.Scores {
		dto.Scores = append(dto.Scores, dateScoreDTO{
			Date:        formatInstant(score.Date),
			Available:   score.Available,
			Unavailable: score.Unavailable,
			Unspecified: score.Unspecified,
			Score:       score.Score,
			Agreement:   string(score.Agreement),
		})
	}
	for _, overlap := range report.Overlaps {
		dto.Overlaps = append(dto.Overlaps, overlapDTO{
			Date:           formatInstant(overlap.Date),
			Attendee:       overlap.Attendee,
			WithRendezVous: overlap.WithRendezVous,
		})
	}
	return dto
}

func toCandidateDays(days []candidateDayDTO) []application.CandidateDay {
	if days == nil {
		return nil
	}
	out := make([]application.CandidateDay, 0, len(days))
	for _, day := range days {
		out = append(out, application.CandidateDay{Date: day.Date, Hours: day.Hours})
	}
	return out
}

// parseInstant accepts RFC 3339 timestamps and unix seconds.
func parseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("date is required")
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not an RFC 3339 timestamp or unix time", value)
	}
	return t.UTC(), nil
}

func parseInstants(values []string, field string, vErr *scheduling.ValidationError) []time.Time {
	if values == nil {
		return nil
	}
	out := make([]time.Time, 0, len(values))
	for _, value := range values {
		t, err := parseInstant(value)
		if err != nil {
			vErr.Add(field, err.Error())
			continue
		}
		out = append(out, t)
	}
	return out
}

func optionalInstant(value, field string, vErr *scheduling.ValidationError) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	t, err := parseInstant(value)
	if err != nil {
		vErr.Add(field, err.Error())
		return nil
	}
	return &t
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatInstants(values []time.Time) []string {
	out := make([]string, 0, len(values))
	for _, t := range values {
		out = append(out, formatInstant(t))
	}
	return out
}
