package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

func TestClient_SendMessage(t *testing.T) {
	var got sendMessageRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "the answer"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, "1.2.3", zerolog.Nop())
	reply, err := client.SendMessage(context.Background(), ports.ChatRequest{
		Message:     "hello",
		SessionID:   "sess-1",
		GuestMode:   false,
		BearerToken: "tok",
	})
	if err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if reply != "the answer" {
		t.Fatalf("reply = %q, want %q", reply, "the answer")
	}

	if got.Message != "hello" || got.SessionID != "sess-1" || got.GuestMode {
		t.Fatalf("request body = %+v", got)
	}
	if h := headers.Get("Authorization"); h != "Bearer tok" {
		t.Fatalf("Authorization = %q", h)
	}
	if h := headers.Get("X-Client-Version"); h != "1.2.3" {
		t.Fatalf("X-Client-Version = %q", h)
	}
	if h := headers.Get("X-Session-ID"); h != "sess-1" {
		t.Fatalf("X-Session-ID = %q", h)
	}
}

func TestClient_SendMessage_GuestOmitsAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, "1.0.0", zerolog.Nop())
	if _, err := client.SendMessage(context.Background(), ports.ChatRequest{Message: "hi", SessionID: "s", GuestMode: true}); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if auth != "" {
		t.Fatalf("guest request carried Authorization %q", auth)
	}
}

func TestClient_SendMessage_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusUnauthorized, domain.ErrAuthExpired},
		{http.StatusInternalServerError, domain.ErrUpstream},
		{http.StatusBadRequest, domain.ErrUpstream},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(srv.URL, time.Second, "1.0.0", zerolog.Nop())
		_, err := client.SendMessage(context.Background(), ports.ChatRequest{Message: "hi", SessionID: "s"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestClient_SendMessage_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL, time.Second, "1.0.0", zerolog.Nop())
	if _, err := client.SendMessage(context.Background(), ports.ChatRequest{Message: "hi", SessionID: "s"}); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestClient_FetchSessions(t *testing.T) {
	created := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "30" {
			t.Errorf("limit = %q, want 30", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(historyResponse{Sessions: []historySession{
			{
				SessionID: "11111111-2222-3333-4444-555555555555",
				CreatedAt: created,
				Messages: []historyMessage{
					{Role: "user", Content: "hello", Timestamp: created},
					{Role: "assistant", Content: "hi", Timestamp: created.Add(time.Second)},
				},
			},
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, "1.0.0", zerolog.Nop())
	sessions, err := client.FetchSessions(context.Background(), "tok", 30)
	if err != nil {
		t.Fatalf("FetchSessions returned error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("session count = %d, want 1", len(sessions))
	}
	s := sessions[0]
	if s.SessionID != "11111111-2222-3333-4444-555555555555" || !s.CreatedAt.Equal(created) {
		t.Fatalf("session = %+v", s)
	}
	if len(s.Messages) != 2 || s.Messages[0].Role != domain.RoleUser || s.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("messages = %+v", s.Messages)
	}
}

func TestClient_FetchSessions_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, "1.0.0", zerolog.Nop())
	if _, err := client.FetchSessions(context.Background(), "expired", 10); !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}
