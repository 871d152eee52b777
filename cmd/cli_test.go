package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaksmart/internal/prompt"
	"speaksmart/internal/session"
	"speaksmart/internal/version"
)

func executeCLI(t *testing.T, stateFile string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("STATE_FILE", stateFile)
	t.Setenv("SESSION_STORE", "file")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// writeSessionsFixture stores a fresh session for chat 100 and one for chat
// -200 that was last touched two days ago.
func writeSessionsFixture(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	stale, err := session.NewFileStore(path, session.Options{Now: func() time.Time { return old }})
	require.NoError(t, err)
	require.NoError(t, stale.Put(ctx, -200, session.Session{
		State:      session.AwaitingStyle,
		SourceText: "old draft",
	}))

	fresh, err := session.NewFileStore(path, session.Options{})
	require.NoError(t, err)
	require.NoError(t, fresh.Put(ctx, 100, session.Session{
		State:        session.AwaitingPostAction,
		SourceText:   "draft",
		Style:        prompt.StyleBusiness,
		LastResponse: "Dear team,",
	}))
}

func TestVersionPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, filepath.Join(t.TempDir(), "s.json"), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestSessionsListEmpty(t *testing.T) {
	stdout, _, err := executeCLI(t, filepath.Join(t.TempDir(), "s.json"), "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no sessions")
}

func TestSessionsListHidesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	writeSessionsFixture(t, path)

	stdout, _, err := executeCLI(t, path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "CHAT ID")
	assert.Contains(t, stdout, "100")
	assert.Contains(t, stdout, "awaiting_post_action")
	assert.Contains(t, stdout, "business")
	assert.NotContains(t, stdout, "-200")
}

func TestSessionsListJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	writeSessionsFixture(t, path)

	stdout, _, err := executeCLI(t, path, "sessions", "list", "--json")
	require.NoError(t, err)

	var views []sessionView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 1)
	assert.Equal(t, int64(100), views[0].ChatID)
	assert.Equal(t, "business", views[0].Style)
}

func TestSessionsPurgeRemovesExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	writeSessionsFixture(t, path)

	stdout, _, err := executeCLI(t, path, "sessions", "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged 1 expired sessions\n", stdout)

	reopened, err := session.NewFileStore(path, session.Options{TTL: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestStateFileFlagOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.toml")
	writeSessionsFixture(t, path)

	stdout, _, err := executeCLI(t, filepath.Join(t.TempDir(), "other.json"), "sessions", "list", "--state-file", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "100")
}

func TestSessionsRejectMemoryStore(t *testing.T) {
	_, _, err := executeCLI(t, filepath.Join(t.TempDir(), "s.json"), "sessions", "list", "--session-store", "memory")
	require.ErrorIs(t, err, errMemoryStore)
}

func TestRunRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	_, _, err := executeCLI(t, filepath.Join(t.TempDir(), "s.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), janitorInterval(0))
	assert.Equal(t, time.Minute, janitorInterval(2*time.Minute))
	assert.Equal(t, 30*time.Minute, janitorInterval(2*time.Hour))
	assert.Equal(t, time.Hour, janitorInterval(24*time.Hour))
}
