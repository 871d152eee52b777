package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaksmart/internal/prompt"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func postAction() Session {
	return Session{
		SourceText:   "Can u send this by tmrw??",
		Style:        prompt.StyleBusiness,
		LastResponse: "Could you please send this by tomorrow?",
		State:        AwaitingPostAction,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Session{}.Validate())
	assert.NoError(t, postAction().Validate())
	assert.NoError(t, Session{SourceText: "x", Style: prompt.StyleAuto, Addressee: "my boss", State: AwaitingAddressee}.Validate())

	bad := []Session{
		{Style: prompt.StyleBusiness},
		{SourceText: "x", Style: prompt.StyleBusiness, Addressee: "my boss"},
		{SourceText: "x", Style: prompt.Style("poetic")},
		{SourceText: "x", State: AwaitingPostAction},
		{State: State(42)},
	}
	for _, s := range bad {
		assert.ErrorIs(t, s.Validate(), ErrInvalidSession, "%+v", s)
	}
}

func TestStateText(t *testing.T) {
	for st, name := range stateNames {
		b, err := st.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(b))

		var back State
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, st, back)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("dancing")))
}

func TestMemoryStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore(Options{Now: clock.Now})

	_, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, 1, postAction()))
	got, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Could you please send this by tomorrow?", got.LastResponse)
	assert.Equal(t, clock.Now(), got.UpdatedAt)

	require.NoError(t, store.Delete(ctx, 1))
	require.NoError(t, store.Delete(ctx, 1))
	_, ok, _ = store.Get(ctx, 1)
	assert.False(t, ok)
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	store := NewMemoryStore(Options{})
	err := store.Put(context.Background(), 1, Session{State: AwaitingPostAction})
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore(Options{TTL: time.Hour, Now: clock.Now})

	require.NoError(t, store.Put(ctx, 1, postAction()))
	require.NoError(t, store.Put(ctx, 2, Session{State: AwaitingText}))

	clock.Advance(30 * time.Minute)
	require.NoError(t, store.Put(ctx, 2, Session{State: AwaitingText}))

	clock.Advance(45 * time.Minute)
	_, ok, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "session 1 should have expired")

	_, ok, _ = store.Get(ctx, 2)
	assert.True(t, ok)

	clock.Advance(time.Hour)
	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreEvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := NewMemoryStore(Options{MaxSessions: 2, Now: clock.Now})

	require.NoError(t, store.Put(ctx, 1, Session{State: AwaitingText}))
	clock.Advance(time.Second)
	require.NoError(t, store.Put(ctx, 2, Session{State: AwaitingText}))
	clock.Advance(time.Second)
	require.NoError(t, store.Put(ctx, 1, Session{State: AwaitingText}))
	clock.Advance(time.Second)
	require.NoError(t, store.Put(ctx, 3, Session{State: AwaitingText}))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ChatID)
	assert.Equal(t, int64(3), entries[1].ChatID)
}

func TestFileStorePersistence(t *testing.T) {
	for _, name := range []string{"sessions.json", "sessions.toml"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)

			store, err := NewFileStore(path, Options{})
			require.NoError(t, err)

			auto := Session{
				SourceText:   "need the report asap",
				Style:        prompt.StyleAuto,
				Addressee:    "my boss",
				LastResponse: "Could you share the report at your earliest convenience?",
				State:        AwaitingPostAction,
			}
			require.NoError(t, store.Put(ctx, 7, auto))
			require.NoError(t, store.Put(ctx, -100123, Session{State: AwaitingText}))

			reloaded, err := NewFileStore(path, Options{})
			require.NoError(t, err)

			got, ok, err := reloaded.Get(ctx, 7)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, auto.SourceText, got.SourceText)
			assert.Equal(t, prompt.StyleAuto, got.Style)
			assert.Equal(t, "my boss", got.Addressee)
			assert.Equal(t, auto.LastResponse, got.LastResponse)
			assert.Equal(t, AwaitingPostAction, got.State)

			got, ok, _ = reloaded.Get(ctx, -100123)
			require.True(t, ok)
			assert.Equal(t, AwaitingText, got.State)

			require.NoError(t, reloaded.Delete(ctx, 7))
			again, err := NewFileStore(path, Options{})
			require.NoError(t, err)
			_, ok, _ = again.Get(ctx, 7)
			assert.False(t, ok)
		})
	}
}

func TestFileStoreFormats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	jsonStore, err := NewFileStore(filepath.Join(dir, "s.json"), Options{})
	require.NoError(t, err)
	require.NoError(t, jsonStore.Put(ctx, 5, Session{State: AwaitingText}))
	raw, err := os.ReadFile(jsonStore.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state": "awaiting_text"`)

	tomlStore, err := NewFileStore(filepath.Join(dir, "s.toml"), Options{})
	require.NoError(t, err)
	require.NoError(t, tomlStore.Put(ctx, 5, Session{State: AwaitingText}))
	raw, err = os.ReadFile(tomlStore.Path())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "state = 'awaiting_text'") || strings.Contains(string(raw), `state = "awaiting_text"`), string(raw))
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileStore(path, Options{})
	assert.Error(t, err)

	_, err = NewFileStore("  ", Options{})
	assert.Error(t, err)
}

func TestRunJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := newClock()
	store := NewMemoryStore(Options{TTL: time.Minute, Now: clock.Now})
	require.NoError(t, store.Put(ctx, 1, Session{State: AwaitingText}))
	clock.Advance(2 * time.Minute)

	purged := make(chan int, 1)
	go RunJanitor(ctx, store, 5*time.Millisecond, func(n int, err error) {
		if n > 0 {
			select {
			case purged <- n:
			default:
			}
		}
	})

	select {
	case n := <-purged:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not purge")
	}
	cancel()
}
