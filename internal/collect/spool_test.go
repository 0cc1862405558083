package collect

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpool_RoundTrip(t *testing.T) {
	spool := NewSpool(filepath.Join(t.TempDir(), "spool.json"))

	sample := Sample{
		Timestamp: time.Now().UTC().Truncate(time.Second),
		CPUUsage:  55.5,
		MemUsage:  30.0,
		DiskUsage: 80.1,
		UptimeSec: 120,
	}
	require.NoError(t, spool.Put(sample))

	got, ok, err := spool.Take()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample, got)

	// Take consumes the spooled sample.
	_, ok, err = spool.Take()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpool_EmptyWhenNothingSpooled(t *testing.T) {
	spool := NewSpool(filepath.Join(t.TempDir(), "spool.json"))

	_, ok, err := spool.Take()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpool_DisabledWithoutPath(t *testing.T) {
	spool := NewSpool("")

	require.NoError(t, spool.Put(Sample{CPUUsage: 1}))
	_, ok, err := spool.Take()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSpool_PutOverwrites(t *testing.T) {
	spool := NewSpool(filepath.Join(t.TempDir(), "spool.json"))

	require.NoError(t, spool.Put(Sample{CPUUsage: 1}))
	require.NoError(t, spool.Put(Sample{CPUUsage: 2}))

	got, ok, err := spool.Take()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, got.CPUUsage)
}
