package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/model"
)

var t0 = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

func sample() []Record {
	return []Record{
		{ID: "a", TariffID: 1, Command: model.CommandRevokeTariff, Outcome: OutcomeRevoked, Timestamp: t0, Timeslot: 1},
		{ID: "b", TariffID: 2, Broker: "b1", Command: model.CommandTariffReply, Outcome: OutcomeAcknowledged, Timestamp: t0.Add(time.Minute), Timeslot: 2},
		{ID: "c", TariffID: 2, Broker: "b1", Command: model.CommandRevokeTariff, Outcome: OutcomeAlreadyRevoked, Timestamp: t0.Add(2 * time.Minute), Timeslot: 3},
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sample() {
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.True(t, all[1].Timestamp.Equal(t0.Add(time.Minute)))
	assert.Equal(t, OutcomeAcknowledged, all[1].Outcome)
	assert.Equal(t, "b1", all[1].Broker)

	byTariff, err := s.Query(ctx, Query{TariffID: 2})
	require.NoError(t, err)
	assert.Len(t, byTariff, 2)

	window, err := s.Query(ctx, Query{Start: t0.Add(30 * time.Second), End: t0.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "b", window[0].ID)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "audit.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	rec := Record{ID: "r", TariffID: 7, Command: model.CommandRevokeTariff, Outcome: OutcomeRevoked, Timestamp: t0}
	rec.Broker = strings.Repeat("x", 2048)
	for i := 0; i < 700; i++ {
		require.NoError(t, s.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(dir, "audit*.jsonl"))
	assert.Greater(t, len(files), 1, "expected rotated backups")
	out, err := s.Query(context.Background(), Query{TariffID: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
