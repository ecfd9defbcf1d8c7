// Package extract provides stateless file-type content extraction: quick
// structural reports per file kind and an LLM-backed free-text summary.
//
// Nothing here touches the memory engine's state; the utilities share no
// invariants with it.
package extract

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sito-labs/chatmem-go/pkg/llm"
)

// Kind is a coarse file classification.
type Kind string

const (
	KindText    Kind = "text"
	KindCSV     Kind = "csv"
	KindJSON    Kind = "json"
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

const (
	// headBytes is how much raw content a report previews.
	headBytes = 300

	// pdfPageLimit caps how many PDF pages are read.
	pdfPageLimit = 5

	// summaryInputBudget caps the text handed to the LLM, in bytes.
	summaryInputBudget = 3000
)

// Detect classifies a file by extension, falling back to the platform
// MIME table for anything uncommon.
func Detect(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".log":
		return KindText
	case ".csv":
		return KindCSV
	case ".json":
		return KindJSON
	case ".pdf":
		return KindPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return KindImage
	}

	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.Contains(mimeType, "csv"):
		return KindCSV
	case strings.Contains(mimeType, "json"):
		return KindJSON
	case strings.Contains(mimeType, "pdf"):
		return KindPDF
	case strings.HasPrefix(mimeType, "image"):
		return KindImage
	case strings.HasPrefix(mimeType, "text"):
		return KindText
	default:
		return KindUnknown
	}
}

// Analyze produces a structural report for a file according to its kind.
func Analyze(path string) (string, error) {
	switch Detect(path) {
	case KindText:
		return AnalyzeText(path)
	case KindCSV:
		return AnalyzeCSV(path)
	case KindJSON:
		return AnalyzeJSON(path)
	case KindPDF:
		return AnalyzePDF(path)
	case KindImage:
		return AnalyzeImage(path)
	default:
		return "", fmt.Errorf("Analyze: unrecognized file type: %s", filepath.Base(path))
	}
}

// AnalyzeText reports word count and the first lines of a text file.
func AnalyzeText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("AnalyzeText: %w", err)
	}

	words := len(strings.Fields(string(content)))
	return fmt.Sprintf("Text analyzed: %d words. First lines:\n%s", words, head(string(content))), nil
}

// AnalyzeCSV reports row and column counts of a CSV file.
func AnalyzeCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("AnalyzeCSV: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("AnalyzeCSV: %w", err)
	}

	columns := 0
	if len(rows) > 0 {
		columns = len(rows[0])
	}
	return fmt.Sprintf("CSV analyzed: %d rows and %d columns.", len(rows), columns), nil
}

// AnalyzeJSON reports the top-level keys of a JSON object file.
func AnalyzeJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("AnalyzeJSON: %w", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "JSON analyzed: not a valid JSON object.", nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return fmt.Sprintf("JSON analyzed: main keys: %s", strings.Join(keys, ", ")), nil
}

// AnalyzePDF reports word count and the first lines of the leading pages
// of a PDF file.
func AnalyzePDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("AnalyzePDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages := reader.NumPage()
	if pages > pdfPageLimit {
		pages = pdfPageLimit
	}

	var text strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("AnalyzePDF: page %d: %w", i, err)
		}
		text.WriteString(content)
	}

	words := len(strings.Fields(text.String()))
	return fmt.Sprintf("PDF analyzed: %d words. First lines:\n%s", words, head(text.String())), nil
}

// AnalyzeImage returns a placeholder description. OCR is not wired.
func AnalyzeImage(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("AnalyzeImage: %w", err)
	}
	return "Image analyzed: no content extraction available for images.", nil
}

// Summarize reads a file and asks the generative collaborator for a
// free-text summary, within a fixed input budget.
func Summarize(ctx context.Context, provider llm.Provider, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("Summarize: %w", err)
	}

	text := string(content)
	if len(text) > summaryInputBudget {
		text = text[:summaryInputBudget]
	}

	summary, err := provider.GenerateWithMessages(ctx, []llm.Message{
		{Role: "system", Content: "You are an assistant that summarizes documents clearly and concisely."},
		{Role: "user", Content: text},
	}, llm.WithMaxTokens(300))
	if err != nil {
		return "", fmt.Errorf("Summarize: %w", err)
	}

	return strings.TrimSpace(summary), nil
}

func head(s string) string {
	if len(s) > headBytes {
		return s[:headBytes] + "..."
	}
	return s
}
