package extract_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sito-labs/chatmem-go/pkg/extract"
	"github.com/sito-labs/chatmem-go/pkg/llm"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetect(t *testing.T) {
	cases := map[string]extract.Kind{
		"notes.txt":   extract.KindText,
		"README.md":   extract.KindText,
		"data.csv":    extract.KindCSV,
		"config.json": extract.KindJSON,
		"report.pdf":  extract.KindPDF,
		"photo.PNG":   extract.KindImage,
		"binary.bin":  extract.KindUnknown,
		"noext":       extract.KindUnknown,
	}

	for name, want := range cases {
		assert.Equal(t, want, extract.Detect(name), name)
	}
}

func TestAnalyzeText(t *testing.T) {
	path := writeTemp(t, "notes.txt", "one two three\nfour five")

	report, err := extract.AnalyzeText(path)
	require.NoError(t, err)
	assert.Contains(t, report, "5 words")
	assert.Contains(t, report, "one two three")
}

func TestAnalyzeCSV(t *testing.T) {
	path := writeTemp(t, "data.csv", "name,age\nalice,30\nbob,25\n")

	report, err := extract.AnalyzeCSV(path)
	require.NoError(t, err)
	assert.Contains(t, report, "3 rows")
	assert.Contains(t, report, "2 columns")
}

func TestAnalyzeCSVToleratesRaggedRows(t *testing.T) {
	path := writeTemp(t, "data.csv", "a,b,c\nd,e\n")

	report, err := extract.AnalyzeCSV(path)
	require.NoError(t, err)
	assert.Contains(t, report, "2 rows")
	assert.Contains(t, report, "3 columns")
}

func TestAnalyzeJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `{"name": "x", "items": [1, 2]}`)

	report, err := extract.AnalyzeJSON(path)
	require.NoError(t, err)
	assert.Contains(t, report, "main keys")
	assert.Contains(t, report, "name")
	assert.Contains(t, report, "items")
}

func TestAnalyzeJSONNonObject(t *testing.T) {
	path := writeTemp(t, "config.json", `[1, 2, 3]`)

	report, err := extract.AnalyzeJSON(path)
	require.NoError(t, err)
	assert.Contains(t, report, "not a valid JSON object")
}

func TestAnalyzeDispatchesByKind(t *testing.T) {
	path := writeTemp(t, "notes.txt", "hello world")

	report, err := extract.Analyze(path)
	require.NoError(t, err)
	assert.Contains(t, report, "Text analyzed")

	_, err = extract.Analyze(filepath.Join(t.TempDir(), "mystery.bin"))
	assert.Error(t, err)
}

type staticProvider struct{ reply string }

func (p *staticProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return p.reply, nil
}

func (p *staticProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.reply, nil
}

func (p *staticProvider) Close() error { return nil }

func TestSummarize(t *testing.T) {
	path := writeTemp(t, "doc.txt", "a long document about fortifications")

	summary, err := extract.Summarize(context.Background(), &staticProvider{reply: " about forts "}, path)
	require.NoError(t, err)
	assert.Equal(t, "about forts", summary)
}

func TestSummarizeMissingFile(t *testing.T) {
	_, err := extract.Summarize(context.Background(), &staticProvider{}, filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
