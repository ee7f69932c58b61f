package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key")
	c.Endpoint = srv.URL
	return c
}

func TestAsk_JoinsCandidateParts(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("prompt not forwarded: %+v", req.Contents)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "Hi "}, {"text": "there."},
				}}},
			},
		})
	})

	got, err := c.Ask(context.Background(), "hello")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if got != "Hi there." {
		t.Fatalf("got %q", got)
	}
}

func TestAsk_ErrorStatusSurfacesBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	})

	_, err := c.Ask(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("status and body not surfaced: %v", err)
	}
}

func TestAsk_NoCandidates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	if _, err := c.Ask(context.Background(), "hello"); err == nil {
		t.Fatalf("want error for empty candidate list")
	}
}

func TestAsk_MissingAPIKey(t *testing.T) {
	c := NewClient("")
	if _, err := c.Ask(context.Background(), "hello"); err == nil {
		t.Fatalf("want error for missing API key")
	}
}
