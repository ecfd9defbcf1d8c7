// Package profile contains the pure decision logic that folds extracted
// entities and sentiment into profile updates.
//
// The synthesizer has no side effects and no storage dependency: it maps
// (entities, sentiment magnitude) to an ordered list of category updates
// that the caller applies with last-write-wins semantics.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sito-labs/chatmem-go/pkg/language"
)

// MagnitudeThreshold is the minimum sentiment magnitude for a message to
// be considered profile-relevant. Flatter messages produce no updates.
const MagnitudeThreshold = 0.6

// Rule maps a keyword to a profile category. Rules are evaluated in order;
// the first keyword contained in an entity name wins for that entity.
type Rule struct {
	// Keyword is the lower-case substring to look for in entity names.
	Keyword string `json:"keyword"`

	// Category is the profile category the match updates.
	Category string `json:"category"`
}

// Update is one profile mutation the caller should apply. Updates must be
// applied in the order produced; the store's last-write-wins upsert decides
// the final value when several target the same category.
type Update struct {
	// Category is the profile category to write.
	Category string `json:"category"`

	// Content is the new value (the lower-cased entity name).
	Content string `json:"content"`
}

// DefaultRules is the built-in keyword table, in priority order.
var DefaultRules = []Rule{
	{Keyword: "construction", Category: "interest"},
	{Keyword: "raiding", Category: "interest"},
	{Keyword: "defense", Category: "interest"},
	{Keyword: "playing solo", Category: "style"},
	{Keyword: "team", Category: "style"},
	{Keyword: "bothers me", Category: "tone"},
	{Keyword: "hate", Category: "tone"},
}

// Synthesizer derives profile updates from understanding-collaborator
// output using an ordered keyword table.
type Synthesizer struct {
	rules []Rule
}

// NewSynthesizer creates a Synthesizer with the given rules. Nil or empty
// rules fall back to DefaultRules.
func NewSynthesizer(rules []Rule) *Synthesizer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Synthesizer{rules: rules}
}

// Synthesize decides which profile categories a message should update.
//
// When magnitude is below MagnitudeThreshold the message is emotionally
// flat and yields no updates regardless of its entities. Otherwise each
// entity name is lower-cased and tested against the rule table in order;
// the first matching rule yields one Update per entity, emitted in entity
// order.
func (s *Synthesizer) Synthesize(entities []language.Entity, magnitude float64) []Update {
	if magnitude < MagnitudeThreshold {
		return nil
	}

	var updates []Update
	for _, entity := range entities {
		name := strings.ToLower(entity.Name)
		for _, rule := range s.rules {
			if strings.Contains(name, rule.Keyword) {
				updates = append(updates, Update{
					Category: rule.Category,
					Content:  name,
				})
				break
			}
		}
	}

	return updates
}

// LoadRules reads an ordered rule table from a JSON file. The file holds an
// array of {"keyword": ..., "category": ...} objects.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}

	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("LoadRules: %w", err)
	}

	for i, r := range rules {
		if r.Keyword == "" || r.Category == "" {
			return nil, fmt.Errorf("LoadRules: rule %d is missing keyword or category", i)
		}
		rules[i].Keyword = strings.ToLower(r.Keyword)
	}

	return rules, nil
}
