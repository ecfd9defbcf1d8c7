package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/sito-labs/chatmem-go/pkg/language"
	googleLanguage "github.com/sito-labs/chatmem-go/pkg/language/google"
	"github.com/sito-labs/chatmem-go/pkg/llm"
	openaiLLM "github.com/sito-labs/chatmem-go/pkg/llm/openai"
	"github.com/sito-labs/chatmem-go/pkg/profile"
	"github.com/sito-labs/chatmem-go/pkg/storage"
	mysqlStore "github.com/sito-labs/chatmem-go/pkg/storage/mysql"
	postgresStore "github.com/sito-labs/chatmem-go/pkg/storage/postgres"
	sqliteStore "github.com/sito-labs/chatmem-go/pkg/storage/sqlite"
)

// FallbackReply is returned to the user when the generative collaborator
// fails. Collaborator failures never propagate past the engine.
const FallbackReply = "There was a problem processing your request. Please try again."

// replySystemPrompt is the persona instruction for generated replies. The
// conversation context block is appended to it per request.
const replySystemPrompt = "You are a helpful conversational assistant with a persistent memory of the user. " +
	"Use the context below to personalize your reply. Respond clearly and concisely."

// Engine is the conversational memory engine.
//
// It owns the message store, entity ledger, profile store, thread log and
// summary log, and coordinates the two external collaborators. All methods
// are safe for concurrent use; per-user state is protected by the store's
// atomic upsert rather than engine-level locking.
type Engine struct {
	config      *Config
	store       storage.Store
	llm         llm.Provider
	analyzer    language.Analyzer
	synthesizer *profile.Synthesizer
	node        *snowflake.Node
	logger      *slog.Logger
}

// NewEngine creates an Engine from configuration, constructing the store
// and both collaborator clients.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStore(cfg.Store)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	provider, err := initLLM(cfg.LLM)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	analyzer, err := googleLanguage.NewClient(context.Background(), &googleLanguage.Config{
		APIKey:          cfg.Language.APIKey,
		CredentialsFile: cfg.Language.CredentialsFile,
	})
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	return NewEngineWith(cfg, store, provider, analyzer)
}

// NewEngineWith creates an Engine with injected dependencies. It is the
// constructor used by tests to substitute collaborator doubles.
func NewEngineWith(cfg *Config, store storage.Store, provider llm.Provider, analyzer language.Analyzer) (*Engine, error) {
	cfg.applyDefaults()

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewEngineError("NewEngineWith", err)
	}

	return &Engine{
		config:      cfg,
		store:       store,
		llm:         provider,
		analyzer:    analyzer,
		synthesizer: profile.NewSynthesizer(cfg.Profile.Rules),
		node:        node,
		logger:      slog.Default().With(slog.String("component", "engine")),
	}, nil
}

func initStore(cfg StoreConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{DBPath: cfg.DSN})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{DSN: cfg.DSN})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unsupported store provider: %s", cfg.Provider)
	}
}

func initLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Store exposes the underlying store to transport-level callers that only
// need reads (summaries listing).
func (e *Engine) Store() storage.Store {
	return e.store
}

// LLM exposes the generative collaborator for callers outside the engine's
// own flow (image generation, file summaries).
func (e *Engine) LLM() llm.Provider {
	return e.llm
}

// Analyzer exposes the understanding collaborator.
func (e *Engine) Analyzer() language.Analyzer {
	return e.analyzer
}

// EnsureProfile seeds the default profile for a user that has no profile
// rows yet: role, tone and interest. Safe to call on every request; a user
// with any existing rows is left untouched.
func (e *Engine) EnsureProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return NewEngineError("EnsureProfile", ErrInvalidInput)
	}

	entries, err := e.store.ProfileEntries(ctx, userID)
	if err != nil {
		return NewEngineError("EnsureProfile", err)
	}
	if len(entries) > 0 {
		return nil
	}

	now := time.Now()
	defaults := []ProfileEntry{
		{UserID: userID, Category: "role", Content: e.config.Profile.DefaultRole, CreatedAt: now},
		{UserID: userID, Category: "tone", Content: e.config.Profile.DefaultTone, CreatedAt: now},
		{UserID: userID, Category: "interest", Content: e.config.Profile.DefaultInterest, CreatedAt: now},
	}

	// Upserts keep concurrent bootstraps from doubling rows.
	for i := range defaults {
		if err := e.store.UpsertProfileEntry(ctx, toStorageProfileEntry(&defaults[i])); err != nil {
			return NewEngineError("EnsureProfile", err)
		}
	}

	return nil
}

// Profile returns the user's current profile mapping. Absent categories
// are absent keys.
func (e *Engine) Profile(ctx context.Context, userID string) (Profile, error) {
	entries, err := e.store.ProfileEntries(ctx, userID)
	if err != nil {
		return nil, NewEngineError("Profile", err)
	}

	p := make(Profile, len(entries))
	for _, entry := range entries {
		p[entry.Category] = entry.Content
	}
	return p, nil
}

// RecordAndRespond runs the full request flow for one inbound message:
// remember the question, fold extracted signals into the profile, assemble
// context, generate a reply and remember it.
//
// Storage failures degrade (the turn is not retained but the user still
// gets a reply); collaborator failures produce FallbackReply. Only
// malformed input returns an error.
func (e *Engine) RecordAndRespond(ctx context.Context, userID, sessionID, message string) (string, error) {
	if userID == "" || strings.TrimSpace(message) == "" {
		return "", NewEngineError("RecordAndRespond", ErrInvalidInput)
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	if err := e.EnsureProfile(ctx, userID); err != nil {
		e.logger.Warn("profile bootstrap failed, continuing", slog.String("user_id", userID), slog.Any("error", err))
	}

	e.appendMessage(ctx, userID, sessionID, KindQuestion, message)
	e.appendThreadSegment(ctx, userID, "question: "+message)

	entities := e.analyzeAndRecord(ctx, userID, message)
	e.updateProfile(ctx, userID, message, entities)

	contextBlock, err := e.BuildContext(ctx, userID)
	if err != nil {
		e.logger.Warn("context assembly failed, replying without memory", slog.String("user_id", userID), slog.Any("error", err))
		contextBlock = ""
	}

	reply, err := e.llm.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: replySystemPrompt + "\n\n" + contextBlock},
		{Role: "user", Content: message},
	}, llm.WithTemperature(1.0), llm.WithMaxTokens(500))
	if err != nil {
		e.logger.Error("reply generation failed", slog.String("user_id", userID), slog.Any("error", err))
		return FallbackReply, nil
	}
	reply = strings.TrimSpace(reply)

	e.appendMessage(ctx, userID, sessionID, KindAnswer, reply)
	e.appendThreadSegment(ctx, userID, "answer: "+reply)

	return reply, nil
}

// appendMessage persists one turn best-effort. A failed append means the
// message is simply not retained.
func (e *Engine) appendMessage(ctx context.Context, userID, sessionID string, kind MessageKind, content string) {
	msg := &Message{
		ID:        e.node.Generate().Int64(),
		UserID:    userID,
		SessionID: sessionID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := e.store.AppendMessage(ctx, toStorageMessage(msg)); err != nil {
		e.logger.Warn("message not retained", slog.String("user_id", userID), slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

func (e *Engine) appendThreadSegment(ctx context.Context, userID, segment string) {
	seg := &storage.ThreadSegment{
		ID:        e.node.Generate().Int64(),
		UserID:    userID,
		Segment:   segment,
		CreatedAt: time.Now(),
	}
	if err := e.store.AppendThreadSegment(ctx, seg); err != nil {
		e.logger.Warn("thread segment not retained", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// analyzeAndRecord extracts entities from the message and appends them to
// the ledger. Both steps degrade on failure.
func (e *Engine) analyzeAndRecord(ctx context.Context, userID, message string) []language.Entity {
	entities, err := e.analyzer.AnalyzeEntities(ctx, message)
	if err != nil {
		e.logger.Warn("entity analysis failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}
	if len(entities) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*storage.Entity, 0, len(entities))
	for _, ent := range entities {
		rows = append(rows, toStorageEntity(&DetectedEntity{
			ID:        e.node.Generate().Int64(),
			UserID:    userID,
			Name:      ent.Name,
			Type:      ent.Type,
			Salience:  ent.Salience,
			CreatedAt: now,
		}))
	}
	if err := e.store.RecordEntities(ctx, rows); err != nil {
		e.logger.Warn("entities not retained", slog.String("user_id", userID), slog.Any("error", err))
	}

	return entities
}

// updateProfile folds sentiment and entities into the profile store.
// Updates are applied in the order the synthesizer produced them so the
// store's last-write-wins upsert decides the final value per category.
func (e *Engine) updateProfile(ctx context.Context, userID, message string, entities []language.Entity) {
	sentiment, err := e.analyzer.AnalyzeSentiment(ctx, message)
	if err != nil {
		e.logger.Warn("sentiment analysis failed", slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	updates := e.synthesizer.Synthesize(entities, sentiment.Magnitude)
	for _, update := range updates {
		entry := &ProfileEntry{
			UserID:    userID,
			Category:  update.Category,
			Content:   update.Content,
			CreatedAt: time.Now(),
		}
		if err := e.store.UpsertProfileEntry(ctx, toStorageProfileEntry(entry)); err != nil {
			e.logger.Warn("profile update not applied",
				slog.String("user_id", userID),
				slog.String("category", update.Category),
				slog.Any("error", err))
			continue
		}
		e.logger.Info("profile updated",
			slog.String("user_id", userID),
			slog.String("category", update.Category),
			slog.String("content", update.Content))
	}
}

// TopEntities returns the k highest-salience entities across the user's
// history.
func (e *Engine) TopEntities(ctx context.Context, userID string, k int) ([]*DetectedEntity, error) {
	rows, err := e.store.TopEntities(ctx, userID, k)
	if err != nil {
		return nil, NewEngineError("TopEntities", err)
	}

	entities := make([]*DetectedEntity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, fromStorageEntity(row))
	}
	return entities, nil
}

// RecentMessages returns the last limit messages in chronological
// (oldest-first) order.
func (e *Engine) RecentMessages(ctx context.Context, userID string, limit int) ([]*Message, error) {
	rows, err := e.store.RecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, NewEngineError("RecentMessages", err)
	}

	// The store pages newest-first; reverse for chronological order.
	messages := make([]*Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = fromStorageMessage(row)
	}
	return messages, nil
}

// RecentSummaries returns the user's latest summaries, newest first.
func (e *Engine) RecentSummaries(ctx context.Context, userID string, limit int) ([]*Summary, error) {
	rows, err := e.store.RecentSummaries(ctx, userID, limit)
	if err != nil {
		return nil, NewEngineError("RecentSummaries", err)
	}

	summaries := make([]*Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, fromStorageSummary(row))
	}
	return summaries, nil
}

// Close closes the store and both collaborators.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.store.Close(); err != nil {
		firstErr = err
	}
	if err := e.llm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.analyzer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
