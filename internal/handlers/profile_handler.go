package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/userdesk/backend/internal/media"
	"github.com/userdesk/backend/internal/middleware"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
)

type ProfileHandler struct {
	profiles        *services.ProfileService
	maxAvatarSizeKB int64
	logger          *slog.Logger
}

func NewProfileHandler(profiles *services.ProfileService, maxAvatarSizeKB int64, logger *slog.Logger) *ProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileHandler{profiles: profiles, maxAvatarSizeKB: maxAvatarSizeKB, logger: logger}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	profile, _, err := h.profiles.Get(ctx, uid, middleware.GetUserEmail(r.Context()))
	if err != nil {
		h.logger.Error("profile load failed", "uid", uid, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(profile))
}

func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.SaveProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.profiles.Save(ctx, uid, req); err != nil {
		if writeValidationError(w, err) {
			return
		}
		h.logger.Error("profile save failed", "uid", uid, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to save profile"))
		return
	}

	// The write is accepted by the store; visibility in any materialized list
	// arrives with the next snapshot.
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}

func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	existed, err := h.profiles.Delete(ctx, uid)
	if err != nil {
		h.logger.Error("profile delete failed", "uid", uid, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete profile"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.DeleteProfileResponse{
		Existed:         existed,
		AccountRetained: true,
	}))
}

// UploadAvatar accepts a multipart image, validates it and stores the inline
// payload on the profile with a merge write.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	maxBytes := h.maxAvatarSizeKB * 1024
	if err := r.ParseMultipartForm(maxBytes + 4096); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing image file"))
		return
	}
	defer file.Close()

	encoded, err := media.EncodeAvatar(header.Filename, file, maxBytes)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrImageTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, models.NewErrorResponse("Image exceeds size limit"))
		case errors.Is(err, media.ErrInvalidImage):
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid image file"))
		default:
			h.logger.Error("avatar encode failed", "uid", uid, "error", err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to process image"))
		}
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.profiles.SetAvatar(ctx, uid, encoded); err != nil {
		h.logger.Error("avatar save failed", "uid", uid, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to save avatar"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.AvatarUploadResponse{Size: len(encoded)}))
}
