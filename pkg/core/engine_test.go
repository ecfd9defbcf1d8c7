package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sito-labs/chatmem-go/pkg/core"
	"github.com/sito-labs/chatmem-go/pkg/language"
	"github.com/sito-labs/chatmem-go/pkg/llm"
	"github.com/sito-labs/chatmem-go/pkg/storage"
	"github.com/sito-labs/chatmem-go/pkg/storage/sqlite"
)

// fakeProvider is an in-process generative collaborator double.
type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) Close() error { return nil }

// fakeAnalyzer is an understanding collaborator double with canned results.
type fakeAnalyzer struct {
	entities  []language.Entity
	sentiment language.Sentiment
	err       error
}

func (f *fakeAnalyzer) AnalyzeEntities(ctx context.Context, text string) ([]language.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

func (f *fakeAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (language.Sentiment, error) {
	if f.err != nil {
		return language.Sentiment{}, f.err
	}
	return f.sentiment, nil
}

func (f *fakeAnalyzer) Close() error { return nil }

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "engine_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T, provider llm.Provider, analyzer language.Analyzer) (*core.Engine, storage.Store) {
	t.Helper()

	store := newTestStore(t)
	engine, err := core.NewEngineWith(&core.Config{}, store, provider, analyzer)
	require.NoError(t, err)
	return engine, store
}

func TestEnsureProfileSeedsDefaultsOnce(t *testing.T) {
	engine, store := newTestEngine(t, &fakeProvider{reply: "ok"}, &fakeAnalyzer{})
	ctx := context.Background()

	require.NoError(t, engine.EnsureProfile(ctx, "u1"))
	require.NoError(t, engine.EnsureProfile(ctx, "u1"))

	entries, err := store.ProfileEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	prof, err := engine.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "player", prof["role"])
	assert.Equal(t, "relaxed attitude", prof["tone"])
	assert.Equal(t, "survival games", prof["interest"])
}

func TestEnsureProfileKeepsLearnedValues(t *testing.T) {
	engine, store := newTestEngine(t, &fakeProvider{reply: "ok"}, &fakeAnalyzer{})
	ctx := context.Background()

	require.NoError(t, store.UpsertProfileEntry(ctx, &storage.ProfileEntry{
		UserID: "u1", Category: "tone", Content: "annoyed",
	}))

	// An existing row, any row, blocks the bootstrap entirely.
	require.NoError(t, engine.EnsureProfile(ctx, "u1"))

	entries, err := store.ProfileEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "annoyed", entries[0].Content)
}

func TestRecordAndRespondRejectsEmptyInput(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, &fakeAnalyzer{})
	ctx := context.Background()

	_, err := engine.RecordAndRespond(ctx, "", "s1", "hello")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = engine.RecordAndRespond(ctx, "u1", "s1", "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRecordAndRespondPersistsBothTurns(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeProvider{reply: "build a wall"}, &fakeAnalyzer{})
	ctx := context.Background()

	reply, err := engine.RecordAndRespond(ctx, "u1", "s1", "what should I build?")
	require.NoError(t, err)
	assert.Equal(t, "build a wall", reply)

	messages, err := engine.RecentMessages(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, core.KindQuestion, messages[0].Kind)
	assert.Equal(t, "what should I build?", messages[0].Content)
	assert.Equal(t, core.KindAnswer, messages[1].Kind)
	assert.Equal(t, "build a wall", messages[1].Content)

	thread, err := engine.Thread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "question: what should I build?/answer: build a wall", thread)
}

func TestRecordAndRespondRecordsEntities(t *testing.T) {
	analyzer := &fakeAnalyzer{
		entities: []language.Entity{
			{Name: "raiding", Type: "OTHER", Salience: 0.8},
			{Name: "wall", Type: "OTHER", Salience: 0.3},
		},
	}
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, analyzer)
	ctx := context.Background()

	_, err := engine.RecordAndRespond(ctx, "u1", "s1", "raiding plans")
	require.NoError(t, err)

	entities, err := engine.TopEntities(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "raiding", entities[0].Name)
	assert.InDelta(t, 0.8, entities[0].Salience, 0.001)
}

func TestRecordAndRespondUpdatesProfileOnStrongSentiment(t *testing.T) {
	analyzer := &fakeAnalyzer{
		entities:  []language.Entity{{Name: "Base Raiding", Type: "OTHER", Salience: 0.9}},
		sentiment: language.Sentiment{Score: -0.4, Magnitude: 0.9},
	}
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, analyzer)
	ctx := context.Background()

	_, err := engine.RecordAndRespond(ctx, "u1", "s1", "I love base raiding")
	require.NoError(t, err)

	prof, err := engine.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "base raiding", prof["interest"])
}

func TestRecordAndRespondIgnoresFlatSentiment(t *testing.T) {
	analyzer := &fakeAnalyzer{
		entities:  []language.Entity{{Name: "raiding", Type: "OTHER", Salience: 0.9}},
		sentiment: language.Sentiment{Score: 0.1, Magnitude: 0.3},
	}
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, analyzer)
	ctx := context.Background()

	_, err := engine.RecordAndRespond(ctx, "u1", "s1", "raiding happened")
	require.NoError(t, err)

	// Profile keeps the bootstrap interest; the flat message changed nothing.
	prof, err := engine.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "survival games", prof["interest"])
}

func TestRecordAndRespondFallsBackWhenLLMFails(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	engine, _ := newTestEngine(t, provider, &fakeAnalyzer{})
	ctx := context.Background()

	reply, err := engine.RecordAndRespond(ctx, "u1", "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, core.FallbackReply, reply)

	// The question is retained even though no answer was generated.
	messages, err := engine.RecentMessages(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, core.KindQuestion, messages[0].Kind)
}

func TestRecordAndRespondSurvivesAnalyzerFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("quota exceeded")}
	engine, _ := newTestEngine(t, &fakeProvider{reply: "still here"}, analyzer)
	ctx := context.Background()

	reply, err := engine.RecordAndRespond(ctx, "u1", "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "still here", reply)
}

func TestBuildContextContainsMemoryNotIdentity(t *testing.T) {
	analyzer := &fakeAnalyzer{
		entities:  []language.Entity{{Name: "drawbridge", Type: "OTHER", Salience: 0.7}},
		sentiment: language.Sentiment{Magnitude: 0.2},
	}
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, analyzer)
	ctx := context.Background()

	_, err := engine.RecordAndRespond(ctx, "alice-7", "s1", "tell me about the drawbridge")
	require.NoError(t, err)

	block, err := engine.BuildContext(ctx, "alice-7")
	require.NoError(t, err)

	assert.Contains(t, block, "drawbridge")
	assert.Contains(t, block, "question: tell me about the drawbridge")
	assert.Contains(t, block, "'player'")
	assert.NotContains(t, block, "alice-7")
}

func TestBuildContextEmptyUserShowsDefaults(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, &fakeAnalyzer{})

	block, err := engine.BuildContext(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Contains(t, block, "Key entities: none.")
	assert.Contains(t, block, "'player'")
	assert.Contains(t, block, "'neutral'")
	assert.Contains(t, block, "'survival games'")
}

func TestRecentMessagesChronologicalOrder(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeProvider{reply: "ok"}, &fakeAnalyzer{})
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		_, err := engine.RecordAndRespond(ctx, "u1", "s1", msg)
		require.NoError(t, err)
	}

	messages, err := engine.RecentMessages(ctx, "u1", 6)
	require.NoError(t, err)
	require.Len(t, messages, 6)

	questions := make([]string, 0, 3)
	for _, m := range messages {
		if m.Kind == core.KindQuestion {
			questions = append(questions, m.Content)
		}
	}
	assert.Equal(t, []string{"first", "second", "third"}, questions)
}

func TestRecordAndRespondTrimsReply(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeProvider{reply: "  padded  "}, &fakeAnalyzer{})

	reply, err := engine.RecordAndRespond(context.Background(), "u1", "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "padded", reply)
	assert.False(t, strings.HasPrefix(reply, " "))
}
