package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverpulse/agent/internal/observability/log"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"), log.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestToken_AbsentIsDistinctFromFailure(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Token()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenNotFound))
}

func TestSaveToken_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveToken("first"))
	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	// Saving again replaces rather than accumulating rows.
	require.NoError(t, s.SaveToken("second"))
	token, err = s.Token()
	require.NoError(t, err)
	assert.Equal(t, "second", token)
}

func TestAgentID_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.AgentID()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SaveAgentID("agent-123"))
	id, err = s.AgentID()
	require.NoError(t, err)
	assert.Equal(t, "agent-123", id)

	require.NoError(t, s.SaveAgentID("agent-456"))
	id, err = s.AgentID()
	require.NoError(t, err)
	assert.Equal(t, "agent-456", id)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "agent.db")
	s, err := Open(path, log.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveToken("tok"))
}
