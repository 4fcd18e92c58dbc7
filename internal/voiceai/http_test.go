package voiceai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStartSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		var req StartSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Metadata["org_id"] != "T1" {
			t.Fatalf("metadata not forwarded: %+v", req.Metadata)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "sess-1", "streamUrl": "wss://vendor/stream/sess-1"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, APIKey: "key-123", Timeout: time.Second})
	resp, err := c.StartSession(context.Background(), StartSessionRequest{
		AssistantID:  "asst-1",
		CallerNumber: "+15550001111",
		DialedNumber: "+15559990000",
		Metadata:     map[string]string{"org_id": "T1"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.SessionID != "sess-1" || resp.StreamURL == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStartSession_MissingSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"streamUrl": "wss://vendor/stream"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.StartSession(context.Background(), StartSessionRequest{})
	if KindOf(err) != ErrKindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrKind
	}{
		{"rejected", http.StatusBadRequest, ErrKindRejected},
		{"unavailable", http.StatusBadGateway, ErrKindUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
			_, err := c.StartSession(context.Background(), StartSessionRequest{})
			if KindOf(err) != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestTimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.StartSession(context.Background(), StartSessionRequest{})
	if KindOf(err) != ErrKindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestUpdateAssistant_PatchesOnlyProvidedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/assistant/asst-1" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, ok := body["voice"]; ok {
			t.Fatalf("nil field serialized: %+v", body)
		}
		json.NewEncoder(w).Encode(Assistant{ID: "asst-1", Name: "Front desk"})
	}))
	defer srv.Close()

	name := "Front desk"
	c := NewHTTPClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	got, err := c.UpdateAssistant(context.Background(), "asst-1", UpdateAssistantRequest{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "Front desk" {
		t.Fatalf("unexpected assistant: %+v", got)
	}
}
