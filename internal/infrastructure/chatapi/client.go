// Package chatapi is the HTTP client for the external chat backend and its
// history endpoint. It owns the wire contract only; quota, credentials, and
// session state live in the core.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

const defaultTimeout = 30 * time.Second

// Client talks to the chat backend. One instance is shared across session
// contexts; per-request identity travels in headers.
type Client struct {
	baseURL       string
	clientVersion string
	http          *http.Client
	log           zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, clientVersion string, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		clientVersion: clientVersion,
		http:          &http.Client{Timeout: timeout},
		log:           log,
	}
}

type sendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	GuestMode bool   `json:"guest_mode"`
}

type sendMessageResponse struct {
	Response string `json:"response"`
}

// SendMessage posts one user turn and returns the assistant reply. Status 429
// maps to ErrRateLimited, 401 to ErrAuthExpired (the caller invalidates its
// credential), anything else unexpected to ErrUpstream. Timeouts surface as
// ErrUpstream too; the bounded client timeout keeps calls from blocking
// indefinitely.
func (c *Client) SendMessage(ctx context.Context, req ports.ChatRequest) (string, error) {
	body, err := json.Marshal(sendMessageRequest{
		Message:   req.Message,
		SessionID: req.SessionID,
		GuestMode: req.GuestMode,
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	c.setHeaders(httpReq, req.SessionID, req.BearerToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send message: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("send message: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("send message: %w", domain.ErrAuthExpired)
	case resp.StatusCode >= 400:
		c.log.Warn().Int("status", resp.StatusCode).Msg("chat backend returned error")
		return "", fmt.Errorf("send message: %w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var out sendMessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("send message: %w: bad response body: %v", domain.ErrUpstream, err)
	}
	return out.Response, nil
}

type historySession struct {
	SessionID string           `json:"session_id"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []historyMessage `json:"messages"`
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	Sessions []historySession `json:"sessions"`
}

// FetchSessions retrieves persisted conversations for an authenticated user,
// newest first.
func (c *Client) FetchSessions(ctx context.Context, bearerToken string, limit int) ([]ports.RemoteSession, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/history", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	q := httpReq.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	httpReq.URL.RawQuery = q.Encode()
	c.setHeaders(httpReq, "", bearerToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("fetch history: %w", domain.ErrAuthExpired)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetch history: %w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var out historyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("fetch history: %w: bad response body: %v", domain.ErrUpstream, err)
	}

	sessions := make([]ports.RemoteSession, 0, len(out.Sessions))
	for _, s := range out.Sessions {
		rs := ports.RemoteSession{SessionID: s.SessionID, CreatedAt: s.CreatedAt}
		for _, m := range s.Messages {
			rs.Messages = append(rs.Messages, domain.Message{
				Role:      domain.Role(m.Role),
				Content:   m.Content,
				Timestamp: m.Timestamp,
			})
		}
		sessions = append(sessions, rs)
	}
	return sessions, nil
}

func (c *Client) setHeaders(req *http.Request, sessionID, bearerToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Version", c.clientVersion)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
}
