package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sito-labs/chatmem-go/pkg/storage"
)

// Context assembly limits.
const (
	contextEntityLimit  = 5
	contextHistoryLimit = 10
	threadSegmentLimit  = 30
)

// BuildContext renders the user's memory into a single prompt-ready block:
// the top entities, the recent history and the current profile with
// defaults for absent categories. Pure projection; the user id itself is
// never echoed into the block.
func (e *Engine) BuildContext(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", NewEngineError("BuildContext", ErrInvalidInput)
	}

	entities, err := e.store.TopEntities(ctx, userID, contextEntityLimit)
	if err != nil {
		return "", NewEngineError("BuildContext", err)
	}

	entitiesText := "none"
	if len(entities) > 0 {
		entitiesText = strings.Join(lo.Map(entities, func(ent *storage.Entity, _ int) string {
			return ent.Name
		}), ", ")
	}

	recent, err := e.store.RecentMessages(ctx, userID, contextHistoryLimit)
	if err != nil {
		return "", NewEngineError("BuildContext", err)
	}

	// Newest-first page, reversed to chronological order.
	historyText := strings.Join(lo.Map(lo.Reverse(recent), func(m *storage.Message, _ int) string {
		return fmt.Sprintf("%s: %s", m.Kind, m.Content)
	}), " / ")

	prof, err := e.Profile(ctx, userID)
	if err != nil {
		return "", NewEngineError("BuildContext", err)
	}

	role := prof.Get("role", "player")
	tone := prof.Get("tone", "neutral")
	interest := prof.Get("interest", e.config.Profile.DefaultInterest)

	var b strings.Builder
	fmt.Fprintf(&b, "The user's role is '%s' and they are interested in '%s'.\n", role, interest)
	fmt.Fprintf(&b, "Speak with a '%s' tone.\n", tone)
	fmt.Fprintf(&b, "Key entities: %s.\n", entitiesText)
	fmt.Fprintf(&b, "History: %s.", historyText)

	return b.String(), nil
}

// Thread reconstructs the user's flattened multi-turn thread: the most
// recent segments joined with "/" in chronological order.
func (e *Engine) Thread(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", NewEngineError("Thread", ErrInvalidInput)
	}

	segments, err := e.store.RecentThreadSegments(ctx, userID, threadSegmentLimit)
	if err != nil {
		return "", NewEngineError("Thread", err)
	}

	return strings.Join(lo.Map(lo.Reverse(segments), func(s *storage.ThreadSegment, _ int) string {
		return s.Segment
	}), "/"), nil
}
