package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"

// IdentityToolkit talks to the Google Identity Toolkit REST API, the same
// service the Firebase client SDKs use for email/password authentication.
type IdentityToolkit struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewIdentityToolkit builds a provider for the given web API key.
func NewIdentityToolkit(apiKey string) *IdentityToolkit {
	return &IdentityToolkit{
		APIKey:   strings.TrimSpace(apiKey),
		Endpoint: defaultIdentityEndpoint,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type identityRequest struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	IDToken           string `json:"idToken,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type identityResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type identityError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *IdentityToolkit) SignIn(ctx context.Context, email, password string) (Session, error) {
	return c.call(ctx, "accounts:signInWithPassword", identityRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
}

func (c *IdentityToolkit) SignUp(ctx context.Context, email, password string) (Session, error) {
	return c.call(ctx, "accounts:signUp", identityRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
}

func (c *IdentityToolkit) UpdateDisplayName(ctx context.Context, idToken, displayName string) error {
	_, err := c.call(ctx, "accounts:update", identityRequest{
		IDToken:           idToken,
		DisplayName:       displayName,
		ReturnSecureToken: false,
	})
	return err
}

func (c *IdentityToolkit) call(ctx context.Context, action string, payload identityRequest) (Session, error) {
	if c.APIKey == "" {
		return Session{}, fmt.Errorf("identity: missing API key")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("identity: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", strings.TrimRight(c.Endpoint, "/"), action, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("identity: %s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("identity: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Session{}, mapIdentityError(resp.StatusCode, raw)
	}

	var out identityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Session{}, fmt.Errorf("identity: decode response: %w", err)
	}
	return Session{
		UID:         out.LocalID,
		Email:       out.Email,
		DisplayName: out.DisplayName,
		IDToken:     out.IDToken,
	}, nil
}

// mapIdentityError translates the toolkit's error codes into the package
// sentinels so callers can branch without parsing provider text.
func mapIdentityError(status int, raw []byte) error {
	var ie identityError
	if err := json.Unmarshal(raw, &ie); err != nil || ie.Error.Message == "" {
		return fmt.Errorf("identity: unexpected status %d: %s", status, strings.TrimSpace(string(raw)))
	}

	msg := ie.Error.Message
	switch {
	case msg == "EMAIL_EXISTS":
		return ErrEmailExists
	case strings.HasPrefix(msg, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case msg == "INVALID_LOGIN_CREDENTIALS",
		msg == "INVALID_PASSWORD",
		msg == "EMAIL_NOT_FOUND",
		msg == "USER_DISABLED":
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("identity: %s", msg)
	}
}
