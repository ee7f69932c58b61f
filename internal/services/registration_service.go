package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/userdesk/backend/internal/auth"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

// UsersCollection is the document collection holding every UserProfile.
const UsersCollection = "users"

// ErrValidation wraps field-level validation failures. Validation runs before
// any provider or store call; a request failing it never reaches the network.
type ErrValidation struct {
	Fields map[string]string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// AsValidation extracts an *ErrValidation from err, if any.
func AsValidation(err error) (*ErrValidation, bool) {
	var ve *ErrValidation
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// RegistrationService creates identity-provider accounts and their profile
// documents. The profile is keyed by the provider-assigned UID and written
// with replace semantics; registration never generates ids locally.
type RegistrationService struct {
	provider auth.Provider
	store    store.Store
	logger   *slog.Logger
}

func NewRegistrationService(provider auth.Provider, st store.Store, logger *slog.Logger) *RegistrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationService{provider: provider, store: st, logger: logger}
}

// Register signs the account up with the identity provider, applies the
// display name best-effort, and writes the profile document. The returned
// session reflects the provider's view; the document becomes observable to
// subscribers only via their next snapshot.
func (s *RegistrationService) Register(ctx context.Context, req models.RegisterRequest) (auth.Session, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return auth.Session{}, &ErrValidation{Fields: fields}
	}

	sess, err := s.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return auth.Session{}, err
	}

	if err := s.provider.UpdateDisplayName(ctx, sess.IDToken, req.Username); err != nil {
		// Display name is provider metadata, not part of the document model.
		s.logger.Warn("display name update failed", "uid", sess.UID, "error", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return auth.Session{}, err
	}

	profile := models.UserProfile{
		ID:           sess.UID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		AvatarImage:  req.AvatarImage,
	}
	if err := s.store.Set(ctx, UsersCollection, sess.UID, profile.Fields(), false); err != nil {
		return auth.Session{}, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("user registered", "uid", sess.UID)
	sess.DisplayName = req.Username
	return sess, nil
}
