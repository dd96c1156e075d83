package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkedin-scout/internal/core"
)

func setup(t testing.TB) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleRecord(url string) *core.ScrapeRecord {
	return &core.ScrapeRecord{
		TargetURL:     url,
		Name:          "Jordan Ramirez",
		Headline:      "Staff Software Engineer at Initech",
		Outcome:       string(core.OutcomeSuccess),
		EntryCount:    3,
		LastScrapedAt: time.Now(),
	}
}

func TestSaveScrapeCreatesRecord(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	record := sampleRecord("https://www.linkedin.com/in/jordan-ramirez")
	require.NoError(t, repo.SaveScrape(ctx, record))

	got, err := repo.GetScrapeByURL(ctx, record.TargetURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Jordan Ramirez", got.Name)
	require.Equal(t, 1, got.ScrapeCount)
	require.False(t, got.CreatedAt.IsZero())
	require.NotZero(t, got.ID)
}

func TestSaveScrapeUpsertsByURL(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	url := "https://www.linkedin.com/in/jordan-ramirez"

	first := sampleRecord(url)
	require.NoError(t, repo.SaveScrape(ctx, first))

	stored, err := repo.GetScrapeByURL(ctx, url)
	require.NoError(t, err)
	created := stored.CreatedAt

	second := sampleRecord(url)
	second.Headline = "Principal Engineer at Initech"
	second.RatingScore = 8
	second.RatingNote = "Strong platform background."
	require.NoError(t, repo.SaveScrape(ctx, second))

	got, err := repo.GetScrapeByURL(ctx, url)
	require.NoError(t, err)
	require.Equal(t, stored.ID, got.ID)
	require.Equal(t, 2, got.ScrapeCount)
	require.Equal(t, "Principal Engineer at Initech", got.Headline)
	require.Equal(t, 8, got.RatingScore)
	require.WithinDuration(t, created, got.CreatedAt, time.Second)

	// Still a single row for this profile.
	records, err := repo.ListRecentScrapes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestGetScrapeByURLMissing(t *testing.T) {
	repo := setup(t)

	got, err := repo.GetScrapeByURL(context.Background(), "https://www.linkedin.com/in/nobody")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestListRecentScrapesOrdersByLastScraped(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	now := time.Now()

	for i, url := range []string{
		"https://www.linkedin.com/in/oldest",
		"https://www.linkedin.com/in/middle",
		"https://www.linkedin.com/in/newest",
	} {
		record := sampleRecord(url)
		record.LastScrapedAt = now.Add(time.Duration(i-2) * time.Hour)
		require.NoError(t, repo.SaveScrape(ctx, record))
	}

	records, err := repo.ListRecentScrapes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "https://www.linkedin.com/in/newest", records[0].TargetURL)
	require.Equal(t, "https://www.linkedin.com/in/middle", records[1].TargetURL)
}

func TestLogActionFillsTimestamp(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	entry := &core.ActionLog{ActionType: core.ActionScrape, Details: "url=https://www.linkedin.com/in/a"}
	require.NoError(t, repo.LogAction(ctx, entry))
	require.False(t, entry.Timestamp.IsZero())

	entries, err := repo.GetActionsByDateRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, core.ActionScrape, entries[0].ActionType)
}

func TestGetTodayActionCount(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.LogAction(ctx, &core.ActionLog{ActionType: core.ActionScrape}))
	}
	require.NoError(t, repo.LogAction(ctx, &core.ActionLog{ActionType: core.ActionLogin}))
	require.NoError(t, repo.LogAction(ctx, &core.ActionLog{
		ActionType: core.ActionScrape,
		Timestamp:  time.Now().Add(-48 * time.Hour),
	}))

	count, err := repo.GetTodayActionCount(ctx, core.ActionScrape)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = repo.GetTodayActionCount(ctx, core.ActionCheckpoint)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCanPerformActionBudget(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	ok, err := repo.CanPerformAction(ctx, core.ActionScrape, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.LogAction(ctx, &core.ActionLog{ActionType: core.ActionScrape}))
	ok, err = repo.CanPerformAction(ctx, core.ActionScrape, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.LogAction(ctx, &core.ActionLog{ActionType: core.ActionScrape}))
	ok, err = repo.CanPerformAction(ctx, core.ActionScrape, 2)
	require.NoError(t, err)
	require.False(t, ok)

	// Other action types draw from their own budgets.
	ok, err = repo.CanPerformAction(ctx, core.ActionLogin, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetActionsByDateRange(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	now := time.Now()

	stamps := []time.Time{
		now.Add(-72 * time.Hour),
		now.Add(-36 * time.Hour),
		now.Add(-12 * time.Hour),
	}
	for _, ts := range stamps {
		require.NoError(t, repo.LogAction(ctx, &core.ActionLog{ActionType: core.ActionScrape, Timestamp: ts}))
	}

	entries, err := repo.GetActionsByDateRange(ctx, now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	require.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
}
