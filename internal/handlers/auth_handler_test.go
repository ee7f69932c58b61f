package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/userdesk/backend/internal/auth"
	"github.com/userdesk/backend/internal/config"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
	"github.com/userdesk/backend/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiration: time.Hour,
		AdminEmails:   []string{"admin@example.com"},
	}
}

func newAuthFixture(t *testing.T) (*AuthHandler, *auth.MemoryProvider, *store.Memory) {
	t.Helper()
	provider := auth.NewMemoryProvider()
	mem := store.NewMemory()
	registration := services.NewRegistrationService(provider, mem, nil)
	profiles := services.NewProfileService(mem, nil)
	h := NewAuthHandler(provider, registration, profiles, testConfig(), nil)
	return h, provider, mem
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRegister_CreatesAccountAndProfile(t *testing.T) {
	h, _, mem := newAuthFixture(t)

	w := postJSON(t, h.Register, "/api/auth/register", models.RegisterRequest{
		Username: "ann",
		Email:    "ann@example.com",
		Password: "hunter22",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatalf("expected success: %s", w.Body.String())
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 || calls[0].Collection != services.UsersCollection {
		t.Fatalf("profile write missing: %+v", calls)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	h, provider, mem := newAuthFixture(t)

	w := postJSON(t, h.Register, "/api/auth/register", models.RegisterRequest{
		Username: "",
		Email:    "",
		Password: "hunter22",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Success || resp.Errors == nil {
		t.Fatalf("expected field errors: %s", w.Body.String())
	}
	if provider.Accounts() != 0 {
		t.Errorf("provider reached despite validation failure")
	}
	if len(mem.WriteCalls()) != 0 {
		t.Errorf("store reached despite validation failure")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, provider, _ := newAuthFixture(t)
	if _, err := provider.SignUp(context.Background(), "ann@example.com", "hunter22"); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	w := postJSON(t, h.Register, "/api/auth/register", models.RegisterRequest{
		Username: "ann",
		Email:    "ann@example.com",
		Password: "hunter22",
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestLogin_IssuesRoleBearingToken(t *testing.T) {
	h, provider, _ := newAuthFixture(t)
	if _, err := provider.SignUp(context.Background(), "admin@example.com", "hunter22"); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	w := postJSON(t, h.Login, "/api/auth/login", models.LoginRequest{
		Email:    "admin@example.com",
		Password: "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data models.AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Role != "admin" {
		t.Fatalf("allow-listed email not granted admin role: %q", resp.Data.Role)
	}

	token, err := jwt.Parse(resp.Data.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["role"] != "admin" {
		t.Fatalf("role claim missing: %v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, provider, _ := newAuthFixture(t)
	if _, err := provider.SignUp(context.Background(), "ann@example.com", "hunter22"); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	w := postJSON(t, h.Login, "/api/auth/login", models.LoginRequest{
		Email:    "ann@example.com",
		Password: "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestLogin_NonAdminGetsUserRole(t *testing.T) {
	h, provider, _ := newAuthFixture(t)
	if _, err := provider.SignUp(context.Background(), "ann@example.com", "hunter22"); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	w := postJSON(t, h.Login, "/api/auth/login", models.LoginRequest{
		Email:    "ann@example.com",
		Password: "hunter22",
	})

	var resp struct {
		Data models.AuthResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Role != "user" {
		t.Fatalf("got role %q", resp.Data.Role)
	}
}
