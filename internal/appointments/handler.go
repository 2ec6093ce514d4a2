package appointments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nirajstha/bookpilot/pkg/logging"
)

// historyReader is the repository subset the handler needs.
type historyReader interface {
	ListForUser(ctx context.Context, userID string) ([]Appointment, error)
}

// Handler serves the appointment history endpoint backing the chat UI.
type Handler struct {
	repo   historyReader
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(repo historyReader, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("appointments: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// History handles GET /users/{userID}/appointments.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "User ID required")
		return
	}

	appts, err := h.repo.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list appointments", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load appointments")
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"data": appts})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
