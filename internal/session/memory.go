package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	DefaultTTL         = 24 * time.Hour
	DefaultMaxSessions = 10000
)

type Options struct {
	// TTL is how long an untouched session survives. Zero keeps sessions forever.
	TTL time.Duration
	// MaxSessions caps the store; the least recently updated session is evicted
	// to make room. Zero means no cap.
	MaxSessions int
	Now         func() time.Time
}

func (o Options) normalized() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.TTL < 0 {
		o.TTL = 0
	}
	if o.MaxSessions < 0 {
		o.MaxSessions = 0
	}
	return o
}

// MemoryStore keeps sessions in a map. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	opts     Options
	sessions map[int64]Session
	// onChange runs with mu held after every mutation.
	onChange func(map[int64]Session) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Admin = (*MemoryStore)(nil)
)

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts.normalized(),
		sessions: make(map[int64]Session),
	}
}

func (m *MemoryStore) Get(ctx context.Context, chatID int64) (Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, false, nil
	}
	if m.expiredLocked(s) {
		delete(m.sessions, chatID)
		if err := m.changedLocked(); err != nil {
			return Session{}, false, err
		}
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) Put(ctx context.Context, chatID int64, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s.UpdatedAt = m.opts.Now()
	if _, exists := m.sessions[chatID]; !exists && m.opts.MaxSessions > 0 {
		for len(m.sessions) >= m.opts.MaxSessions {
			m.evictOldestLocked()
		}
	}
	m.sessions[chatID] = s
	return m.changedLocked()
}

func (m *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[chatID]; !ok {
		return nil
	}
	delete(m.sessions, chatID)
	return m.changedLocked()
}

// List returns live sessions sorted by chat id.
func (m *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.sessions))
	for id, s := range m.sessions {
		if m.expiredLocked(s) {
			continue
		}
		out = append(out, Entry{ChatID: id, Session: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

// Purge drops expired sessions and returns how many were removed.
func (m *MemoryStore) Purge(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if m.expiredLocked(s) {
			delete(m.sessions, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, m.changedLocked()
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) expiredLocked(s Session) bool {
	if m.opts.TTL == 0 || s.UpdatedAt.IsZero() {
		return false
	}
	return m.opts.Now().Sub(s.UpdatedAt) > m.opts.TTL
}

func (m *MemoryStore) evictOldestLocked() {
	var (
		oldestID int64
		oldestAt time.Time
		found    bool
	)
	for id, s := range m.sessions {
		if !found || s.UpdatedAt.Before(oldestAt) || (s.UpdatedAt.Equal(oldestAt) && id < oldestID) {
			oldestID, oldestAt, found = id, s.UpdatedAt, true
		}
	}
	if found {
		delete(m.sessions, oldestID)
	}
}

func (m *MemoryStore) changedLocked() error {
	if m.onChange == nil {
		return nil
	}
	return m.onChange(m.sessions)
}
