package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aichat/chat-gateway/internal/core/domain"
	"github.com/aichat/chat-gateway/internal/core/ports"
)

// SessionRegistry owns the active conversation and the archive of previous
// ones for a single session context. Message appends go through Append only;
// archived sessions are read-only until reactivated with SwitchTo.
type SessionRegistry struct {
	now func() time.Time

	mu      sync.Mutex
	active  *domain.Session
	archive []*domain.Session // newest first, excludes active
	index   map[uuid.UUID]*domain.Session
}

// NewSessionRegistry starts with a fresh, empty active session.
func NewSessionRegistry() *SessionRegistry {
	r := &SessionRegistry{
		now:   time.Now,
		index: make(map[uuid.UUID]*domain.Session),
	}
	r.active = domain.NewSession(r.now().UTC())
	r.index[r.active.ID] = r.active
	return r
}

// Active returns a snapshot of the current session.
func (r *SessionRegistry) Active() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.Snapshot()
}

// StartNew archives the current session and activates a fresh one with a new
// identifier. The old session is never mutated again unless reactivated.
func (r *SessionRegistry) StartNew() *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.archiveActiveLocked()
	r.active = domain.NewSession(r.now().UTC())
	r.index[r.active.ID] = r.active
	return r.active.Snapshot()
}

// Append adds a message to the end of the active session. It fails with
// ErrUnknownSession when sessionID does not name the active session, which
// catches appends racing a new-chat or history switch.
func (r *SessionRegistry) Append(sessionID uuid.UUID, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.ID != sessionID {
		return fmt.Errorf("append message: %w", domain.ErrUnknownSession)
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("append message: %w: bad role %q", domain.ErrValidation, msg.Role)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.now().UTC()
	}
	r.active.Messages = append(r.active.Messages, msg)
	return nil
}

// SwitchTo reactivates an archived session, archiving the current one. The
// reactivated session's content is untouched by the switch itself.
func (r *SessionRegistry) SwitchTo(sessionID uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.ID == sessionID {
		return r.active.Snapshot(), nil
	}

	target, ok := r.index[sessionID]
	if !ok {
		return nil, fmt.Errorf("switch session: %w", domain.ErrSessionNotFound)
	}

	r.archiveActiveLocked()
	r.removeFromArchiveLocked(sessionID)
	r.active = target
	return r.active.Snapshot(), nil
}

// History returns snapshots of archived sessions, newest first.
func (r *SessionRegistry) History() []*domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Session, 0, len(r.archive))
	for _, s := range r.archive {
		out = append(out, s.Snapshot())
	}
	return out
}

// MergeRemote folds sessions fetched from the external history store into the
// archive. Sessions already known locally win; entries with malformed
// identifiers are skipped.
func (r *SessionRegistry) MergeRemote(remote []ports.RemoteSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rs := range remote {
		id, err := uuid.Parse(rs.SessionID)
		if err != nil {
			continue
		}
		if _, known := r.index[id]; known {
			continue
		}
		s := &domain.Session{ID: id, CreatedAt: rs.CreatedAt}
		if len(rs.Messages) > 0 {
			s.Messages = make([]domain.Message, len(rs.Messages))
			copy(s.Messages, rs.Messages)
		}
		r.index[id] = s
		r.archive = append(r.archive, s)
	}

	sort.SliceStable(r.archive, func(i, j int) bool {
		return r.archive[i].CreatedAt.After(r.archive[j].CreatedAt)
	})
}

// archiveActiveLocked moves the active session to the front of the archive.
// Empty sessions are dropped rather than archived.
func (r *SessionRegistry) archiveActiveLocked() {
	if len(r.active.Messages) == 0 {
		delete(r.index, r.active.ID)
		return
	}
	r.archive = append([]*domain.Session{r.active}, r.archive...)
}

func (r *SessionRegistry) removeFromArchiveLocked(id uuid.UUID) {
	for i, s := range r.archive {
		if s.ID == id {
			r.archive = append(r.archive[:i], r.archive[i+1:]...)
			return
		}
	}
}
