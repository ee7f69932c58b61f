package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/userdesk/backend/internal/gemini"
	"github.com/userdesk/backend/internal/models"
)

type AskHandler struct {
	client *gemini.Client
	logger *slog.Logger
}

func NewAskHandler(client *gemini.Client, logger *slog.Logger) *AskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskHandler{client: client, logger: logger}
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Prompt is required"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	answer, err := h.client.Ask(ctx, req.Prompt)
	if err != nil {
		h.logger.Error("completion failed", "error", err)
		writeJSON(w, http.StatusBadGateway, models.NewErrorResponse("Completion request failed"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.AskResponse{Answer: answer}))
}
