package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet provider policy")
)

// Session is the identity issued by the provider after a successful sign-in or
// sign-up. UID is the durable account identifier profile documents are keyed
// by.
type Session struct {
	UID         string
	Email       string
	DisplayName string
	IDToken     string
}

// Provider verifies and creates accounts with the managed identity service.
// Implementations: the Google Identity Toolkit REST API (production) and an
// in-memory provider (tests, local development).
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string) (Session, error)
	// UpdateDisplayName sets account metadata on a best-effort basis; callers
	// log and continue on failure.
	UpdateDisplayName(ctx context.Context, idToken, displayName string) error
}
