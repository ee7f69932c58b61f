package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func toolkitServer(t *testing.T, handler http.HandlerFunc) *IdentityToolkit {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewIdentityToolkit("test-key")
	c.Endpoint = srv.URL
	return c
}

func identityFailure(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func TestIdentityToolkit_SignInSuccess(t *testing.T) {
	c := toolkitServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "accounts:signInWithPassword") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("api key not forwarded")
		}
		var req identityRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "ann@example.com" || req.Password != "hunter22" {
			t.Errorf("credentials not forwarded: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(identityResponse{
			LocalID:     "uid-1",
			Email:       "ann@example.com",
			DisplayName: "ann",
			IDToken:     "token-1",
		})
	})

	sess, err := c.SignIn(context.Background(), "ann@example.com", "hunter22")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if sess.UID != "uid-1" || sess.IDToken != "token-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestIdentityToolkit_SignUpEmailExists(t *testing.T) {
	c := toolkitServer(t, func(w http.ResponseWriter, r *http.Request) {
		identityFailure(w, http.StatusBadRequest, "EMAIL_EXISTS")
	})

	_, err := c.SignUp(context.Background(), "ann@example.com", "hunter22")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestIdentityToolkit_SignUpWeakPassword(t *testing.T) {
	c := toolkitServer(t, func(w http.ResponseWriter, r *http.Request) {
		identityFailure(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
	})

	_, err := c.SignUp(context.Background(), "ann@example.com", "ab")
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("want ErrWeakPassword, got %v", err)
	}
}

func TestIdentityToolkit_SignInInvalidCredentials(t *testing.T) {
	for _, msg := range []string{"INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "USER_DISABLED"} {
		c := toolkitServer(t, func(w http.ResponseWriter, r *http.Request) {
			identityFailure(w, http.StatusBadRequest, msg)
		})
		if _, err := c.SignIn(context.Background(), "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: want ErrInvalidCredentials, got %v", msg, err)
		}
	}
}

func TestIdentityToolkit_UnknownErrorPreserved(t *testing.T) {
	c := toolkitServer(t, func(w http.ResponseWriter, r *http.Request) {
		identityFailure(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER")
	})

	_, err := c.SignIn(context.Background(), "ann@example.com", "hunter22")
	if err == nil || !strings.Contains(err.Error(), "TOO_MANY_ATTEMPTS_TRY_LATER") {
		t.Fatalf("provider message lost: %v", err)
	}
}

func TestIdentityToolkit_MissingAPIKey(t *testing.T) {
	c := NewIdentityToolkit("")
	if _, err := c.SignIn(context.Background(), "a@b.com", "p"); err == nil {
		t.Fatalf("want error for missing API key")
	}
}
