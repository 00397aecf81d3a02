package handler

import (
	"time"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

// errorResponse mirrors the envelope rendered by the central error handler;
// declared here for the swagger annotations only.
type errorResponse struct {
	Error   string     `json:"error"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

// --- Request / Response types ---

type submitRequest struct {
	Message string `json:"message" validate:"required"`
}

type messageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type submitResponse struct {
	Reply messageResponse `json:"reply"`
}

type sessionResponse struct {
	SessionID string            `json:"session_id"`
	CreatedAt time.Time         `json:"created_at"`
	Messages  []messageResponse `json:"messages"`
}

// sessionSummaryResponse is the lightweight item used in history listings.
// It intentionally omits messages to keep sidebar payloads small.
type sessionSummaryResponse struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

type historyListResponse struct {
	Sessions []sessionSummaryResponse `json:"sessions"`
}

type quotaResponse struct {
	Tier      string     `json:"tier"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

type identityResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp}
}

func toSessionResponse(s *domain.Session) sessionResponse {
	out := sessionResponse{
		SessionID: s.ID.String(),
		CreatedAt: s.CreatedAt,
		Messages:  make([]messageResponse, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	return out
}
