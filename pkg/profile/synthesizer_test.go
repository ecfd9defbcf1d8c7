package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sito-labs/chatmem-go/pkg/language"
	"github.com/sito-labs/chatmem-go/pkg/profile"
)

func TestSynthesizeFlatMessageProducesNoUpdates(t *testing.T) {
	s := profile.NewSynthesizer(nil)

	entities := []language.Entity{
		{Name: "raiding", Type: "OTHER", Salience: 0.9},
		{Name: "I hate mondays", Type: "OTHER", Salience: 0.8},
	}

	assert.Empty(t, s.Synthesize(entities, 0.0))
	assert.Empty(t, s.Synthesize(entities, 0.59))
}

func TestSynthesizeMatchesKeywordsInOrder(t *testing.T) {
	s := profile.NewSynthesizer(nil)

	entities := []language.Entity{
		{Name: "Base Construction", Type: "OTHER", Salience: 0.9},
		{Name: "my TEAM", Type: "OTHER", Salience: 0.5},
		{Name: "weather", Type: "OTHER", Salience: 0.3},
	}

	updates := s.Synthesize(entities, 0.8)
	require.Len(t, updates, 2)

	// Updates come out in entity order with lower-cased content.
	assert.Equal(t, profile.Update{Category: "interest", Content: "base construction"}, updates[0])
	assert.Equal(t, profile.Update{Category: "style", Content: "my team"}, updates[1])
}

func TestSynthesizeFirstRuleWinsPerEntity(t *testing.T) {
	rules := []profile.Rule{
		{Keyword: "raid", Category: "first"},
		{Keyword: "raiding", Category: "second"},
	}
	s := profile.NewSynthesizer(rules)

	updates := s.Synthesize([]language.Entity{{Name: "raiding"}}, 1.0)
	require.Len(t, updates, 1)
	assert.Equal(t, "first", updates[0].Category)
}

func TestSynthesizeDuplicateCategoriesAreAllEmitted(t *testing.T) {
	s := profile.NewSynthesizer(nil)

	entities := []language.Entity{
		{Name: "raiding"},
		{Name: "defense"},
	}

	updates := s.Synthesize(entities, 0.7)
	require.Len(t, updates, 2)
	assert.Equal(t, "interest", updates[0].Category)
	assert.Equal(t, "raiding", updates[0].Content)
	assert.Equal(t, "interest", updates[1].Category)
	assert.Equal(t, "defense", updates[1].Content)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	content := `[
		{"keyword": "Fishing", "category": "interest"},
		{"keyword": "alone", "category": "style"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rules, err := profile.LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	// Keywords are normalized to lower case on load.
	assert.Equal(t, "fishing", rules[0].Keyword)
	assert.Equal(t, "interest", rules[0].Category)

	s := profile.NewSynthesizer(rules)
	updates := s.Synthesize([]language.Entity{{Name: "Deep Sea Fishing"}}, 0.9)
	require.Len(t, updates, 1)
	assert.Equal(t, "interest", updates[0].Category)
}

func TestLoadRulesRejectsIncompleteRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"keyword": "", "category": "x"}]`), 0644))

	_, err := profile.LoadRules(path)
	assert.Error(t, err)
}
