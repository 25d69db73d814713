package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/application"
)

type memberService interface {
	Search(ctx context.Context, params application.SearchMembersParams) (application.MemberPage, error)
	Create(ctx context.Context, params application.CreateMemberParams) (application.Member, error)
}

type MemberHandler struct {
	service   memberService
	responder responder
	logger    *slog.Logger
}

func NewMemberHandler(service memberService, logger *slog.Logger) *MemberHandler {
	base := defaultLogger(logger)
	return &MemberHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MemberHandler) log(r *http.Request, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(r, h.logger, "MemberHandler", operation, attrs...)
}

// Search backs the attendee picker.
func (h *MemberHandler) Search(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := application.SearchMembersParams{
		Principal:   principal,
		Terms:       strings.TrimSpace(query.Get("search")),
		IncludeSelf: query.Get("include_self") == "true",
		Exclude:     splitList(query["exclude"]),
	}
	var err error
	if params.Page, err = optionalInt(query.Get("page")); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("page must be an integer"))
		return
	}
	if params.PerPage, err = optionalInt(query.Get("per_page")); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("per_page must be an integer"))
		return
	}

	page, err := h.service.Search(r.Context(), params)
	if err != nil {
		h.log(r, "Search").ErrorContext(r.Context(), "member search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	members := make([]memberDTO, 0, len(page.Members))
	for _, member := range page.Members {
		members = append(members, toMemberDTO(member))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Total))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberPageResponse{
		Members:    members,
		Total:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	})
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}

	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	member, err := h.service.Create(r.Context(), application.CreateMemberParams{
		Principal:   principal,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r, "Create").InfoContext(r.Context(), "member created", "member_id", member.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMemberDTO(member))
}

type memberDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type memberPageResponse struct {
	Members    []memberDTO `json:"members"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

type createMemberRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"is_admin"`
}

func toMemberDTO(member application.Member) memberDTO {
	dto := memberDTO{
		ID:          member.ID,
		Email:       member.Email,
		DisplayName: member.DisplayName,
		IsAdmin:     member.IsAdmin,
	}
	if !member.CreatedAt.IsZero() {
		dto.CreatedAt = member.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func requirePrincipal(w http.ResponseWriter, r *http.Request, resp responder) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		resp.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "SESSION_MISSING",
			Message:   errMissingSessionToken.Error(),
		})
		return application.Principal{}, false
	}
	return principal, true
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func optionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// splitList accepts repeated parameters as well as comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
