package service

import (
	"errors"
	"testing"
	"time"

	"github.com/aichat/chat-gateway/internal/core/domain"
)

func testFactory(id string) *SessionContext {
	return &SessionContext{ID: id, CreatedAt: time.Now().UTC()}
}

func TestContextManager_CreateAndGet(t *testing.T) {
	m := NewContextManager(time.Hour, testFactory)

	sc := m.Create()
	if sc.ID == "" {
		t.Fatalf("created context has empty id")
	}

	got, err := m.Get(sc.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != sc {
		t.Fatalf("Get returned a different context")
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestContextManager_GetUnknown(t *testing.T) {
	m := NewContextManager(time.Hour, testFactory)

	if _, err := m.Get("nope"); !errors.Is(err, domain.ErrContextNotFound) {
		t.Fatalf("expected ErrContextNotFound, got %v", err)
	}
}

func TestContextManager_Delete_Idempotent(t *testing.T) {
	m := NewContextManager(time.Hour, testFactory)
	sc := m.Create()

	m.Delete(sc.ID)
	m.Delete(sc.ID)

	if _, err := m.Get(sc.ID); !errors.Is(err, domain.ErrContextNotFound) {
		t.Fatalf("expected ErrContextNotFound after delete, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestContextManager_IdleEviction(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := NewContextManager(time.Hour, testFactory)
	m.now = func() time.Time { return now }

	sc := m.Create()

	// Activity inside the TTL keeps the context alive and bumps the timer.
	now = now.Add(50 * time.Minute)
	if _, err := m.Get(sc.ID); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	now = now.Add(50 * time.Minute)
	if _, err := m.Get(sc.ID); err != nil {
		t.Fatalf("context evicted despite recent activity: %v", err)
	}

	// Idle past the TTL: gone on the next access.
	now = now.Add(2 * time.Hour)
	if _, err := m.Get(sc.ID); !errors.Is(err, domain.ErrContextNotFound) {
		t.Fatalf("expected eviction, got %v", err)
	}
}

func TestContextManager_EvictionOnlyHitsIdle(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := NewContextManager(time.Hour, testFactory)
	m.now = func() time.Time { return now }

	stale := m.Create()
	now = now.Add(90 * time.Minute)
	live := m.Create()

	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after eviction", m.Len())
	}
	if _, err := m.Get(stale.ID); !errors.Is(err, domain.ErrContextNotFound) {
		t.Fatalf("stale context survived: %v", err)
	}
	if _, err := m.Get(live.ID); err != nil {
		t.Fatalf("live context evicted: %v", err)
	}
}
