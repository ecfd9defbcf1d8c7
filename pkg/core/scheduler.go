package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sito-labs/chatmem-go/pkg/llm"
	"github.com/sito-labs/chatmem-go/pkg/storage"
)

// summarySystemPrompt is the fixed instruction for behavioral summaries.
const summarySystemPrompt = "Summarize the user's behavior based on these messages. " +
	"Detect interests, tone and habits. Be clear and concise."

// tickTimeout bounds one scheduler tick, covering every collaborator call
// in the batch.
const tickTimeout = 10 * time.Minute

// SummaryScheduler periodically summarizes eligible users' behavior.
//
// Each tick selects users with enough messages and no summary inside the
// freshness window, generates one summary per user and persists it. A
// second freshness check runs immediately before persisting, which narrows
// but does not close the window in which two overlapping ticks could both
// summarize the same user: the guarantee is at-least-once per eligible
// period, not exactly-once.
type SummaryScheduler struct {
	engine *Engine
	cron   *cron.Cron
	logger *slog.Logger

	interval    time.Duration
	minMessages int
	window      time.Duration
	gatherLimit int
	inputBudget int
	sessionID   string
}

// NewSummaryScheduler creates a scheduler bound to an engine. The zero
// values of cfg fall back to the package defaults.
func NewSummaryScheduler(engine *Engine, cfg SchedulerConfig) *SummaryScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSummaryInterval
	}
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = DefaultSummaryMinMessages
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.GatherLimit <= 0 {
		cfg.GatherLimit = DefaultSummaryGatherLimit
	}
	if cfg.InputBudget <= 0 {
		cfg.InputBudget = DefaultSummaryInputBudget
	}
	if cfg.SessionID == "" {
		cfg.SessionID = DefaultSessionID
	}

	return &SummaryScheduler{
		engine:      engine,
		cron:        cron.New(),
		logger:      slog.Default().With(slog.String("component", "summary_scheduler")),
		interval:    cfg.Interval,
		minMessages: cfg.MinMessages,
		window:      cfg.FreshnessWindow,
		gatherLimit: cfg.GatherLimit,
		inputBudget: cfg.InputBudget,
		sessionID:   cfg.SessionID,
	}
}

// Start begins ticking at the configured interval. The first tick fires
// one interval after Start, matching a sleep-then-work loop.
func (s *SummaryScheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()

		if err := s.RunTick(ctx); err != nil {
			s.logger.Error("summary tick failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return NewEngineError("Start", err)
	}

	s.cron.Start()
	s.logger.Info("summary scheduler started", slog.Duration("interval", s.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight tick to finish.
func (s *SummaryScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("summary scheduler stopped")
}

// RunTick executes one scheduler pass: select, gather, synthesize,
// persist. A failing user is logged and skipped; the batch continues.
// Exported so tests and operators can force a pass without the cron.
func (s *SummaryScheduler) RunTick(ctx context.Context) error {
	users, err := s.engine.store.UsersDueForSummary(ctx, s.minMessages, s.window)
	if err != nil {
		return NewEngineError("RunTick", err)
	}

	for _, userID := range users {
		if err := s.summarizeUser(ctx, userID); err != nil {
			s.logger.Warn("skipping user this tick", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	return nil
}

// summarizeUser generates and persists one summary. Users with no
// messages are skipped silently.
func (s *SummaryScheduler) summarizeUser(ctx context.Context, userID string) error {
	messages, err := s.engine.store.RecentMessages(ctx, userID, s.gatherLimit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	contents := make([]string, len(messages))
	for i, m := range messages {
		contents[i] = m.Content
	}
	combined := strings.Join(contents, "\n")
	if len(combined) > s.inputBudget {
		combined = combined[:s.inputBudget]
	}

	text, err := s.engine.llm.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: combined},
	}, llm.WithTemperature(0.7), llm.WithMaxTokens(300))
	if err != nil {
		return err
	}

	// Re-check freshness right before persisting. Two racing ticks can
	// still both pass, so duplicates remain possible under overlap.
	fresh, err := s.engine.store.HasRecentSummary(ctx, userID, s.window)
	if err != nil {
		return err
	}
	if fresh {
		return nil
	}

	summary := &storage.Summary{
		ID:        s.engine.node.Generate().Int64(),
		UserID:    userID,
		SessionID: s.sessionID,
		Text:      strings.TrimSpace(text),
		CreatedAt: time.Now(),
	}
	if err := s.engine.store.AppendSummary(ctx, summary); err != nil {
		return err
	}

	s.logger.Info("summary generated", slog.String("user_id", userID))
	return nil
}
