package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tila.journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	require.NoError(t, j.Append(EventCreated, "web-1", "i-1", "t3.micro"))
	require.NoError(t, j.Append(EventDrift, "web-1", "i-1", "desired=t3.micro actual=t3.small"))
	require.NoError(t, j.Append(EventDeleted, "web-1", "i-1", ""))

	events, err := j.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, EventDrift, events[1].Type)
	assert.Equal(t, EventDeleted, events[2].Type)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, uint64(3), events[2].Sequence)
	assert.Equal(t, "web-1", events[0].Name)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestSequenceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tila.journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(EventCreated, "web-1", "i-1", ""))
	require.NoError(t, j.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = j2.Close() }()
	require.NoError(t, j2.Append(EventPruned, "web-1", "i-1", ""))

	events, err := j2.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[1].Sequence)
}
