package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/rendez-vous/internal/application"
)

type groupService interface {
	Get(ctx context.Context, id string) (application.Group, error)
	SetRendezVousEnabled(ctx context.Context, principal application.Principal, groupID string, enabled bool) (application.Group, error)
}

type GroupHandler struct {
	service   groupService
	responder responder
	logger    *slog.Logger
	// onChange is called after a group's settings were written.
	onChange func(groupID string)
}

func NewGroupHandler(service groupService, onChange func(groupID string), logger *slog.Logger) *GroupHandler {
	base := defaultLogger(logger)
	return &GroupHandler{service: service, responder: newResponder(base), logger: base, onChange: onChange}
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePrincipal(w, r, h.responder); !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGroupDTO(group))
}

// SetRendezVous toggles the rendez-vous extension of a group.
func (h *GroupHandler) SetRendezVous(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	var req groupSettingsRequest
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	group, err := h.service.SetRendezVousEnabled(r.Context(), principal, id, *req.Enabled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if h.onChange != nil {
		h.onChange(group.ID)
	}

	handlerLogger(r, h.logger, "GroupHandler", "SetRendezVous", "group_id", group.ID).
		InfoContext(r.Context(), "group settings saved", "rendez_vous_enabled", group.RendezVousEnabled)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGroupDTO(group))
}

type groupSettingsRequest struct {
	Enabled *bool `json:"enabled"`
}

type groupDTO struct {
	ID                string `json:"id"`
	Slug              string `json:"slug"`
	Name              string `json:"name"`
	RendezVousEnabled bool   `json:"rendez_vous_enabled"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

func toGroupDTO(group application.Group) groupDTO {
	dto := groupDTO{
		ID:                group.ID,
		Slug:              group.Slug,
		Name:              group.Name,
		RendezVousEnabled: group.RendezVousEnabled,
	}
	if !group.UpdatedAt.IsZero() {
		dto.UpdatedAt = group.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
