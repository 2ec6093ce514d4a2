package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

// chatService is the routing surface the handler fronts.
type chatService interface {
	HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// knowledgeIndexer triggers index rebuilds and accepts ad-hoc content.
type knowledgeIndexer interface {
	Reindex(ctx context.Context, force bool) error
	AddContent(ctx context.Context, title, content string, accessLevel []string, metadata map[string]any) error
}

// Handler wires HTTP requests to the assistant service and the indexer.
type Handler struct {
	service chatService
	indexer knowledgeIndexer
	logger  *logging.Logger
}

// NewHandler creates an assistant handler.
func NewHandler(service chatService, indexer knowledgeIndexer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, indexer: indexer, logger: logger}
}

// Chat handles POST /assistant/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.HandleMessage(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserIDRequired):
			h.writeError(w, http.StatusBadRequest, "User ID required")
		case errors.Is(err, identity.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			h.logger.Error("chat turn failed", "user_id", req.UserID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type reindexRequest struct {
	Force *bool `json:"force"`
}

// Reindex handles POST /assistant/reindex. An HTTP-triggered reindex forces a
// rebuild unless the body explicitly opts out.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	force := true
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Force != nil {
		force = *req.Force
	}

	if err := h.indexer.Reindex(r.Context(), force); err != nil {
		h.logger.Error("reindex failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Indexing failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Embedding and indexing complete!",
	})
}

type addKnowledgeRequest struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	AccessLevel []string       `json:"accessLevel"`
	Metadata    map[string]any `json:"metadata"`
}

// AddKnowledge handles POST /assistant/knowledge: ad-hoc content injected
// directly into the retrieval store without a full reindex.
func (h *Handler) AddKnowledge(w http.ResponseWriter, r *http.Request) {
	var req addKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode knowledge request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.indexer.AddContent(r.Context(), req.Title, req.Content, req.AccessLevel, req.Metadata); err != nil {
		h.logger.Error("add knowledge failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to index content")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "Content indexed"})
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
