package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_RecordAndQuery(t *testing.T) {
	h, err := OpenHistory(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		{InstrumentPath: "a.py", InstrumentHash: "sha256:aa", Timestamp: base, Verdict: "pass"},
		{InstrumentPath: "a.py", InstrumentHash: "sha256:ab", Timestamp: base.Add(time.Hour), Breaking: 2, Verdict: "breaking"},
		{InstrumentPath: "b.py", InstrumentHash: "sha256:bb", Timestamp: base.Add(2 * time.Hour), Warnings: 3, Verdict: "gate_failed"},
	}
	for _, r := range runs {
		require.NoError(t, h.RecordRun(r))
		assert.NotEmpty(t, r.ID, "RecordRun must assign an id")
	}

	got, err := h.RecentRuns("a.py", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "breaking", got[0].Verdict, "newest first")
	assert.Equal(t, 2, got[0].Breaking)
	assert.Equal(t, "pass", got[1].Verdict)

	all, err := h.RecentRuns("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := h.RecentRuns("", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b.py", limited[0].InstrumentPath)
}

func TestHistory_CorruptRowSurfacesError(t *testing.T) {
	h, err := OpenHistory(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	// SQLite's type affinity lets text sneak into the INTEGER column; a
	// corrupt row must fail the query instead of vanishing silently.
	_, err = h.db.Exec(`
		INSERT INTO runs (id, instrument_path, instrument_hash, timestamp,
			breaking, non_breaking, informational, warnings, verdict)
		VALUES ('bad', 'a.py', 'sha256:aa', '2026-03-01 12:00:00', 'abc', 0, 0, 0, 'pass')`)
	require.NoError(t, err)

	_, err = h.RecentRuns("a.py", 10)
	assert.ErrorContains(t, err, "failed to scan run")
}

func TestHistory_Reopen(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenHistory(dir)
	require.NoError(t, err)
	require.NoError(t, h.RecordRun(&Run{InstrumentPath: "a.py", InstrumentHash: "sha256:aa", Verdict: "pass"}))
	require.NoError(t, h.Close())

	h2, err := OpenHistory(dir)
	require.NoError(t, err)
	defer h2.Close()
	got, err := h2.RecentRuns("a.py", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
