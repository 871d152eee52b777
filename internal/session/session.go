// Package session holds the per-chat record of an in-progress rewrite and the
// stores that keep it between updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"speaksmart/internal/prompt"
)

type State int

const (
	Idle State = iota
	AwaitingText
	AwaitingStyle
	AwaitingAddressee
	AwaitingPostAction
)

var stateNames = map[State]string{
	Idle:               "idle",
	AwaitingText:       "awaiting_text",
	AwaitingStyle:      "awaiting_style",
	AwaitingAddressee:  "awaiting_addressee",
	AwaitingPostAction: "awaiting_post_action",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	n, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(n), nil
}

func (s *State) UnmarshalText(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		*s = Idle
		return nil
	}
	for st, n := range stateNames {
		if n == raw {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", raw)
}

type Session struct {
	SourceText   string       `json:"source_text,omitempty" toml:"source_text,omitempty"`
	Style        prompt.Style `json:"style,omitempty" toml:"style,omitempty"`
	Addressee    string       `json:"addressee,omitempty" toml:"addressee,omitempty"`
	LastResponse string       `json:"last_response,omitempty" toml:"last_response,omitempty"`
	State        State        `json:"state" toml:"state"`
	UpdatedAt    time.Time    `json:"updated_at" toml:"updated_at"`
}

var ErrInvalidSession = errors.New("invalid session")

// Validate checks the ordering invariants between the fields.
func (s Session) Validate() error {
	if _, ok := stateNames[s.State]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidSession, s.State)
	}
	if s.Style != "" && s.SourceText == "" {
		return fmt.Errorf("%w: style set without source text", ErrInvalidSession)
	}
	if s.Style != "" && !s.Style.Valid() {
		return fmt.Errorf("%w: style %q", ErrInvalidSession, s.Style)
	}
	if s.Addressee != "" && s.Style != prompt.StyleAuto {
		return fmt.Errorf("%w: addressee set for style %q", ErrInvalidSession, s.Style)
	}
	if s.State == AwaitingPostAction && (s.SourceText == "" || s.LastResponse == "") {
		return fmt.Errorf("%w: %s without source text or response", ErrInvalidSession, s.State)
	}
	return nil
}

// Store is keyed by chat id. Implementations are safe for concurrent use;
// Get reports false for absent or expired sessions.
type Store interface {
	Get(ctx context.Context, chatID int64) (Session, bool, error)
	Put(ctx context.Context, chatID int64, s Session) error
	Delete(ctx context.Context, chatID int64) error
}

type Entry struct {
	ChatID  int64
	Session Session
}

// Admin is implemented by stores that can be inspected from the CLI.
type Admin interface {
	List(ctx context.Context) ([]Entry, error)
	Purge(ctx context.Context) (int, error)
}

// RunJanitor purges expired sessions every interval until ctx is done.
func RunJanitor(ctx context.Context, a Admin, interval time.Duration, onPurge func(n int, err error)) {
	if a == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Purge(ctx)
			if onPurge != nil {
				onPurge(n, err)
			}
		}
	}
}
