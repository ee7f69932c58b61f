package services

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/userdesk/backend/internal/liveview"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

// ProfileService manages the signed-in user's own profile document. Saves use
// merge semantics so fields not present in the request survive; deletion
// removes only the document, never the identity-provider account.
type ProfileService struct {
	store  store.Store
	logger *slog.Logger
}

func NewProfileService(st store.Store, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{store: st, logger: logger}
}

// Watch opens a live single-document view of the user's profile. While no
// document exists the view falls back to the session's uid and email so the
// caller never renders stale fields.
func (s *ProfileService) Watch(ctx context.Context, uid, sessionEmail string) (*liveview.DocumentView, error) {
	fallback := models.UserProfile{ID: uid, Email: sessionEmail}
	view := liveview.NewDocumentView(s.store, UsersCollection, uid, fallback, s.logger)
	if err := view.Start(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// Get is the point-read companion of Watch, with the same fallback rule.
func (s *ProfileService) Get(ctx context.Context, uid, sessionEmail string) (models.UserProfile, bool, error) {
	doc, ok, err := s.store.Get(ctx, UsersCollection, uid)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	if !ok {
		return models.UserProfile{ID: uid, Email: sessionEmail}, false, nil
	}
	return models.ProfileFromFields(doc.ID, doc.Data), true, nil
}

// Save upserts the profile with merge semantics. Only the supplied fields
// change; in particular an avatar set earlier survives a save without one.
func (s *ProfileService) Save(ctx context.Context, uid string, req models.SaveProfileRequest) error {
	if fields := req.Validate(); len(fields) > 0 {
		return &ErrValidation{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"username":      req.Username,
		"email":         req.Email,
		"password_hash": string(hash),
	}
	if req.AvatarImage != nil {
		fields["image"] = *req.AvatarImage
	}

	if err := s.store.Set(ctx, UsersCollection, uid, fields, true); err != nil {
		return err
	}
	s.logger.Info("profile saved", "uid", uid)
	return nil
}

// SetAvatar stores a freshly picked avatar without touching other fields.
func (s *ProfileService) SetAvatar(ctx context.Context, uid, encoded string) error {
	return s.store.Set(ctx, UsersCollection, uid, map[string]any{"image": encoded}, true)
}

// Delete removes the profile document if it exists and reports whether it did.
// The identity-provider account has an independent lifecycle and is retained.
func (s *ProfileService) Delete(ctx context.Context, uid string) (bool, error) {
	_, existed, err := s.store.Get(ctx, UsersCollection, uid)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if err := s.store.Delete(ctx, UsersCollection, uid); err != nil {
		return true, err
	}
	s.logger.Info("profile deleted", "uid", uid)
	return true, nil
}
