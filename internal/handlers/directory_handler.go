package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/userdesk/backend/internal/liveview"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
)

type DirectoryHandler struct {
	directory *services.DirectoryService
	logger    *slog.Logger
}

func NewDirectoryHandler(directory *services.DirectoryService, logger *slog.Logger) *DirectoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryHandler{directory: directory, logger: logger}
}

type listUsersResponse struct {
	Users []models.UserProfile `json:"users"`
	// Total is the unfiltered collection size, Shown the post-projection count.
	Total int `json:"total"`
	Shown int `json:"shown"`
}

// ListUsers serves the materialized list with ?q= search and ?sort=asc|desc.
func (h *DirectoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.directory.View().State() == liveview.StateFailed {
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Directory subscription lost"))
		return
	}

	search := r.URL.Query().Get("q")
	order := liveview.ParseSortOrder(r.URL.Query().Get("sort"))

	users := h.directory.List(search, order)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(listUsersResponse{
		Users: users,
		Total: h.directory.Total(),
		Shown: len(users),
	}))
}

func (h *DirectoryHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := h.directory.Create(ctx, req)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		h.logger.Error("directory create failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create user"))
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(map[string]string{"id": id}))
}

func (h *DirectoryHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing userId"))
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.directory.Update(ctx, id, req); err != nil {
		if writeValidationError(w, err) {
			return
		}
		h.logger.Error("directory update failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update user"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}

func (h *DirectoryHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userId")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing userId"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.directory.Remove(ctx, id); err != nil {
		h.logger.Error("directory delete failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete user"))
		return
	}
	// The identity-provider account, if one matches this document, stays.
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}

// WatchUsers streams full directory snapshots as server-sent events. Each
// event carries the complete current list; clients replace, not patch.
func (h *DirectoryHandler) WatchUsers(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsubscribe := h.directory.Subscribe()
	defer unsubscribe()

	// Prime the stream with the current state so the client does not wait for
	// the next write anywhere in the collection.
	if err := writeSSE(w, h.directory.List("", liveview.SortAscending)); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case list, open := <-events:
			if !open {
				return
			}
			if err := writeSSE(w, list); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, list []models.UserProfile) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
