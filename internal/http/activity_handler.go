package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/rendez-vous/internal/application"
	"github.com/example/rendez-vous/internal/persistence"
	"github.com/example/rendez-vous/internal/scheduling"
)

type activityReader interface {
	Activities(ctx context.Context, rendezVousID string) ([]persistence.Activity, error)
	Notifications(ctx context.Context, recipientID string) ([]persistence.Notification, error)
}

type rendezVousGetter interface {
	Get(ctx context.Context, principal application.Principal, id string) (scheduling.RendezVous, error)
}

// ActivityHandler serves the activity stream of a rendez-vous and the
// caller's notifications.
type ActivityHandler struct {
	reader     activityReader
	rendezVous rendezVousGetter
	responder  responder
}

func NewActivityHandler(reader activityReader, rendezVous rendezVousGetter, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{reader: reader, rendezVous: rendezVous, responder: newResponder(defaultLogger(logger))}
}

// Activities lists the records of the rendez-vous named by ?item=. Only
// callers who may view the rendez-vous see its stream.
func (h *ActivityHandler) Activities(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("item"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("item is required"))
		return
	}
	if _, err := h.rendezVous.Get(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	records, err := h.reader.Activities(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	items := make([]activityDTO, 0, len(records))
	for _, record := range records {
		items = append(items, activityDTO{
			ID:              record.ID,
			Type:            record.Type,
			Component:       record.Component,
			UserID:          record.UserID,
			ItemID:          record.ItemID,
			SecondaryItemID: record.SecondaryItemID,
			RendezVousID:    record.RendezVousID,
			PrimaryLink:     record.PrimaryLink,
			Title:           record.Title,
			Content:         record.Content,
			CreatedAt:       formatInstant(record.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, activityListResponse{Activities: items})
}

func (h *ActivityHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.responder)
	if !ok {
		return
	}

	records, err := h.reader.Notifications(r.Context(), principal.UserID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	items := make([]notificationDTO, 0, len(records))
	for _, record := range records {
		dto := notificationDTO{
			ID:           record.ID,
			ActorID:      record.ActorID,
			RendezVousID: record.RendezVousID,
			Kind:         record.Kind,
			CreatedAt:    formatInstant(record.CreatedAt),
		}
		if record.ReadAt != nil {
			dto.ReadAt = record.ReadAt.UTC().Format(time.RFC3339)
		}
		items = append(items, dto)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, notificationListResponse{Notifications: items})
}

type activityDTO struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Component       string `json:"component"`
	UserID          string `json:"user_id"`
	ItemID          string `json:"item_id"`
	SecondaryItemID string `json:"secondary_item_id,omitempty"`
	RendezVousID    string `json:"rendez_vous_id"`
	PrimaryLink     string `json:"primary_link"`
	Title           string `json:"title"`
	Content         string `json:"content,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type activityListResponse struct {
	Activities []activityDTO `json:"activities"`
}

type notificationDTO struct {
	ID           string `json:"id"`
	ActorID      string `json:"actor_id"`
	RendezVousID string `json:"rendez_vous_id"`
	Kind         string `json:"kind"`
	CreatedAt    string `json:"created_at"`
	ReadAt       string `json:"read_at,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationDTO `json:"notifications"`
}
