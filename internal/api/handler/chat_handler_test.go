package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

func TestChatHandler_Submit_Success(t *testing.T) {
	ctrl := &stubController{submitMsg: domain.Message{
		Role:      domain.RoleAssistant,
		Content:   "the answer",
		Timestamp: time.Now().UTC(),
	}}
	c, rec := newTestContext(t, http.MethodPost, "/chat", `{"message":"hello"}`, sessionWith(nil, ctrl))

	if err := NewChatHandler().Submit(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Reply.Content != "the answer" || resp.Reply.Role != "assistant" {
		t.Fatalf("unexpected reply: %+v", resp.Reply)
	}
	if len(ctrl.submitted) != 1 || ctrl.submitted[0] != "hello" {
		t.Fatalf("submitted = %v", ctrl.submitted)
	}
}

func TestChatHandler_Submit_EmptyMessage(t *testing.T) {
	ctrl := &stubController{}
	c, _ := newTestContext(t, http.MethodPost, "/chat", `{}`, sessionWith(nil, ctrl))

	err := NewChatHandler().Submit(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(ctrl.submitted) != 0 {
		t.Fatalf("empty payload reached the controller")
	}
}

func TestChatHandler_Submit_RateLimited(t *testing.T) {
	resetAt := time.Now().UTC().Add(15 * time.Minute)
	ctrl := &stubController{submitErr: &domain.RateLimitError{ResetAt: resetAt}}
	c, _ := newTestContext(t, http.MethodPost, "/chat", `{"message":"hello"}`, sessionWith(nil, ctrl))

	err := NewChatHandler().Submit(c)
	if err == nil {
		t.Fatalf("expected error")
	}
	// The central error handler turns this into a 429; the handler passes the
	// typed error through untouched.
	var rle *domain.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if !rle.ResetAt.Equal(resetAt) {
		t.Fatalf("ResetAt = %v, want %v", rle.ResetAt, resetAt)
	}
}

func TestChatHandler_Messages(t *testing.T) {
	active := domain.NewSession(time.Now().UTC())
	active.Messages = []domain.Message{
		{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now().UTC()},
		{Role: domain.RoleAssistant, Content: "hello", Timestamp: time.Now().UTC()},
	}
	ctrl := &stubController{active: active}
	c, rec := newTestContext(t, http.MethodGet, "/chat/messages", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().Messages(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.SessionID != active.ID.String() {
		t.Fatalf("session id = %s, want %s", resp.SessionID, active.ID)
	}
	if len(resp.Messages) != 2 || resp.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", resp.Messages)
	}
}

func TestChatHandler_NewChat(t *testing.T) {
	ctrl := &stubController{}
	c, rec := newTestContext(t, http.MethodPost, "/chat/new", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().NewChat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.SessionID == "" || len(resp.Messages) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatHandler_History(t *testing.T) {
	s1 := domain.NewSession(time.Now().UTC().Add(-time.Minute))
	s1.Messages = []domain.Message{{Role: domain.RoleUser, Content: "old", Timestamp: s1.CreatedAt}}
	ctrl := &stubController{history: []*domain.Session{s1}}
	c, rec := newTestContext(t, http.MethodGet, "/chat/history", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().History(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp historyListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Sessions) != 1 {
		t.Fatalf("sessions = %+v", resp.Sessions)
	}
	if resp.Sessions[0].SessionID != s1.ID.String() || resp.Sessions[0].MessageCount != 1 {
		t.Fatalf("summary = %+v", resp.Sessions[0])
	}
}

func TestChatHandler_Activate(t *testing.T) {
	ctrl := &stubController{}
	target := uuid.New()
	c, rec := newTestContext(t, http.MethodPost, "/chat/history/"+target.String()+"/activate", "", sessionWith(nil, ctrl))
	c.SetParamNames("id")
	c.SetParamValues(target.String())

	if err := NewChatHandler().Activate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.SessionID != target.String() {
		t.Fatalf("activated %s, want %s", resp.SessionID, target)
	}
}

func TestChatHandler_Activate_BadID(t *testing.T) {
	c, _ := newTestContext(t, http.MethodPost, "/chat/history/nope/activate", "", sessionWith(nil, nil))
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := NewChatHandler().Activate(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestChatHandler_Activate_Unknown(t *testing.T) {
	ctrl := &stubController{switchErr: domain.ErrSessionNotFound}
	target := uuid.New()
	c, _ := newTestContext(t, http.MethodPost, "/chat/history/"+target.String()+"/activate", "", sessionWith(nil, ctrl))
	c.SetParamNames("id")
	c.SetParamValues(target.String())

	if err := NewChatHandler().Activate(c); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestChatHandler_Quota(t *testing.T) {
	resetAt := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	ctrl := &stubController{quota: domain.QuotaDecision{
		Allowed:   true,
		Tier:      domain.TierGuest,
		Remaining: 7,
		ResetAt:   resetAt,
	}}
	c, rec := newTestContext(t, http.MethodGet, "/quota", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().Quota(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp quotaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Tier != "guest" || resp.Remaining != 7 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.ResetAt == nil || !resp.ResetAt.Equal(resetAt) {
		t.Fatalf("reset_at = %v, want %v", resp.ResetAt, resetAt)
	}
}

func TestChatHandler_Quota_OmitsZeroReset(t *testing.T) {
	ctrl := &stubController{quota: domain.QuotaDecision{Allowed: true, Tier: domain.TierGuest, Remaining: 10}}
	c, rec := newTestContext(t, http.MethodGet, "/quota", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().Quota(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, present := raw["reset_at"]; present {
		t.Fatalf("zero reset_at not omitted: %v", raw)
	}
}

func TestChatHandler_Me(t *testing.T) {
	ctrl := &stubController{identity: ports.Identity{Username: "alice", Authenticated: true}}
	c, rec := newTestContext(t, http.MethodGet, "/me", "", sessionWith(nil, ctrl))

	if err := NewChatHandler().Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp identityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Authenticated || resp.Username != "alice" {
		t.Fatalf("response = %+v", resp)
	}
}
