package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sito-labs/chatmem-go/pkg/core"
	"github.com/sito-labs/chatmem-go/pkg/storage"
)

func seedMessages(t *testing.T, store storage.Store, userID string, n int) {
	t.Helper()

	start := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		require.NoError(t, store.AppendMessage(context.Background(), &storage.Message{
			ID:        int64(i + 1),
			UserID:    userID,
			SessionID: "s1",
			Kind:      "question",
			Content:   "message",
			CreatedAt: start.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestRunTickSummarizesEligibleUser(t *testing.T) {
	provider := &fakeProvider{reply: "enjoys raiding, relaxed tone"}
	engine, store := newTestEngine(t, provider, &fakeAnalyzer{})
	seedMessages(t, store, "busy", 12)

	scheduler := core.NewSummaryScheduler(engine, core.SchedulerConfig{})
	require.NoError(t, scheduler.RunTick(context.Background()))

	summaries, err := engine.RecentSummaries(context.Background(), "busy", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "enjoys raiding, relaxed tone", summaries[0].Text)
	assert.Equal(t, core.DefaultSessionID, summaries[0].SessionID)
}

func TestRunTickSkipsFreshlySummarizedUser(t *testing.T) {
	provider := &fakeProvider{reply: "summary"}
	engine, store := newTestEngine(t, provider, &fakeAnalyzer{})
	seedMessages(t, store, "busy", 12)

	scheduler := core.NewSummaryScheduler(engine, core.SchedulerConfig{})
	ctx := context.Background()

	require.NoError(t, scheduler.RunTick(ctx))
	require.NoError(t, scheduler.RunTick(ctx))

	// The second tick sees a summary inside the freshness window.
	summaries, err := engine.RecentSummaries(ctx, "busy", 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestRunTickIgnoresQuietUsers(t *testing.T) {
	provider := &fakeProvider{reply: "summary"}
	engine, store := newTestEngine(t, provider, &fakeAnalyzer{})
	seedMessages(t, store, "quiet", 5)

	scheduler := core.NewSummaryScheduler(engine, core.SchedulerConfig{})
	require.NoError(t, scheduler.RunTick(context.Background()))

	summaries, err := engine.RecentSummaries(context.Background(), "quiet", 10)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Zero(t, provider.calls)
}

func TestRunTickSummarizesEachEligibleUser(t *testing.T) {
	provider := &fakeProvider{reply: "summary"}
	engine, store := newTestEngine(t, provider, &fakeAnalyzer{})
	seedMessages(t, store, "a", 11)
	seedMessages(t, store, "b", 15)

	scheduler := core.NewSummaryScheduler(engine, core.SchedulerConfig{})
	require.NoError(t, scheduler.RunTick(context.Background()))

	for _, userID := range []string{"a", "b"} {
		summaries, err := engine.RecentSummaries(context.Background(), userID, 10)
		require.NoError(t, err)
		assert.Len(t, summaries, 1, "user %s", userID)
	}
}

func TestRunTickUserBecomesEligibleAgainAfterWindow(t *testing.T) {
	provider := &fakeProvider{reply: "summary"}
	engine, store := newTestEngine(t, provider, &fakeAnalyzer{})
	seedMessages(t, store, "busy", 12)
	ctx := context.Background()

	// A summary older than the window does not block a new one.
	require.NoError(t, store.AppendSummary(ctx, &storage.Summary{
		ID: 999, UserID: "busy", SessionID: "s1", Text: "stale",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))

	scheduler := core.NewSummaryScheduler(engine, core.SchedulerConfig{})
	require.NoError(t, scheduler.RunTick(ctx))

	summaries, err := engine.RecentSummaries(ctx, "busy", 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}
