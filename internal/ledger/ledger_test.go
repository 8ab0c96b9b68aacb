// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-briefing/pkg/types"
)

// --- helpers ---

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func record(id string, relevant bool, at time.Time) types.ProcessedRecord {
	return types.ProcessedRecord{
		PaperID:       id,
		Relevant:      relevant,
		Stage:         types.StageJudgeYes,
		ProcessedAt:   at,
		RubricVersion: "1.0",
		Platform:      types.PlatformArxiv,
		Title:         "Title " + id,
	}
}

// --- records ---

func TestRecordAndGet(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	inserted, err := l.Record(ctx, record("arxiv:2401.00001", true, at))
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := l.Get(ctx, "arxiv:2401.00001")
	require.NoError(t, err)
	assert.True(t, got.Relevant)
	assert.Equal(t, types.StageJudgeYes, got.Stage)
	assert.Equal(t, "1.0", got.RubricVersion)
	assert.Equal(t, types.PlatformArxiv, got.Platform)
	assert.True(t, at.Equal(got.ProcessedAt))
	assert.Equal(t, "2026-03-01", got.FirstSeen.Format(time.DateOnly))
}

func TestRecordIsAppendOnly(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	at := time.Now()

	_, err := l.Record(ctx, record("arxiv:1", true, at))
	require.NoError(t, err)

	second := record("arxiv:1", false, at.Add(time.Hour))
	second.Stage = types.StageKeywordReject
	inserted, err := l.Record(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted, "second write for the same paper is a no-op")

	got, err := l.Get(ctx, "arxiv:1")
	require.NoError(t, err)
	assert.True(t, got.Relevant, "first write wins")
	assert.Equal(t, types.StageJudgeYes, got.Stage)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordEmptyID(t *testing.T) {
	l := openTemp(t)
	_, err := l.Record(context.Background(), types.ProcessedRecord{})
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	l := openTemp(t)
	_, err := l.Get(context.Background(), "arxiv:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeen(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := l.Record(ctx, record(fmt.Sprintf("arxiv:%d", i), false, time.Now()))
		require.NoError(t, err)
	}

	seen, err := l.Seen(ctx, []string{"arxiv:0", "arxiv:2", "arxiv:9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"arxiv:0": true, "arxiv:2": true}, seen)

	empty, err := l.Seen(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	ok, err := l.IsProcessed(ctx, "arxiv:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeenLargeBatch(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	ids := make([]string, 1234)
	for i := range ids {
		ids[i] = fmt.Sprintf("biorxiv:10.1101/%04d", i)
	}
	_, err := l.Record(ctx, record(ids[0], true, time.Now()))
	require.NoError(t, err)
	_, err = l.Record(ctx, record(ids[1233], true, time.Now()))
	require.NoError(t, err)

	seen, err := l.Seen(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.True(t, seen[ids[1233]])
}

func TestConcurrentRecordsOneEntryPerPaper(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserts := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Record(ctx, record("arxiv:race", true, time.Now()))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserts)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = l.Record(ctx, record("arxiv:persist", true, time.Now()))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	ok, err := l.IsProcessed(ctx, "arxiv:persist")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, MemoryPath)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Record(ctx, record("arxiv:mem", true, time.Now()))
	require.NoError(t, err)
	ok, err := l.IsProcessed(ctx, "arxiv:mem")
	require.NoError(t, err)
	assert.True(t, ok)
}

// --- purge and stats ---

func TestPurge(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := l.Record(ctx, record("arxiv:old", false, now.AddDate(0, 0, -120)))
	require.NoError(t, err)
	_, err = l.Record(ctx, record("arxiv:new", true, now.AddDate(0, 0, -5)))
	require.NoError(t, err)
	require.NoError(t, l.SaveBriefing(ctx, types.Briefing{Date: now.AddDate(0, 0, -100)}))
	require.NoError(t, l.SaveBriefing(ctx, types.Briefing{Date: now.AddDate(0, 0, -1)}))

	papers, briefings, err := l.Purge(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), papers)
	assert.Equal(t, int64(1), briefings)

	ok, err := l.IsProcessed(ctx, "arxiv:new")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.IsProcessed(ctx, "arxiv:old")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Optimize(ctx))
}

func TestStats(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r1 := record("arxiv:1", true, t0)
	r2 := record("biorxiv:10.1101/x", false, t0.Add(48*time.Hour))
	r2.Platform = types.PlatformBiorxiv
	r2.Stage = types.StageKeywordReject
	for _, r := range []types.ProcessedRecord{r1, r2} {
		_, err := l.Record(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, l.SaveBriefing(ctx, types.Briefing{Date: t0}))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalPapers)
	assert.Equal(t, 1, stats.RelevantPapers)
	assert.Equal(t, map[string]int{"arxiv": 1, "biorxiv": 1}, stats.ByPlatform)
	assert.Equal(t, map[string]int{"judge-yes": 1, "keyword-reject": 1}, stats.ByStage)
	assert.Equal(t, 1, stats.Briefings)
	assert.True(t, t0.Equal(stats.Oldest))
	assert.True(t, t0.Add(48*time.Hour).Equal(stats.Newest))
}

func TestStatsEmpty(t *testing.T) {
	l := openTemp(t)
	stats, err := l.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPapers)
	assert.True(t, stats.Oldest.IsZero())
}

// --- briefings ---

func TestSaveAndLoadBriefing(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	day := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	b := types.Briefing{
		Date:      day,
		Platforms: []string{"arxiv"},
		Entries: []types.BriefingEntry{{
			Paper:   types.Paper{ID: "arxiv:1", Title: "Agents"},
			Summary: "An agent paper.",
		}},
	}
	require.NoError(t, l.SaveBriefing(ctx, b))

	b.Entries[0].Summary = "Revised."
	require.NoError(t, l.SaveBriefing(ctx, b), "saving the same day replaces")

	got, err := l.LoadBriefing(ctx, "2026-02-03")
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "Revised.", got.Entries[0].Summary)

	latest, err := l.LatestBriefingDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-03", latest)

	_, err = l.LoadBriefing(ctx, "1999-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
}
