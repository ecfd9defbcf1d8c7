package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sito-labs/chatmem-go/pkg/api"
	"github.com/sito-labs/chatmem-go/pkg/core"
	"github.com/sito-labs/chatmem-go/pkg/language"
	"github.com/sito-labs/chatmem-go/pkg/llm"
	"github.com/sito-labs/chatmem-go/pkg/storage/sqlite"
)

type stubProvider struct{ reply string }

func (p *stubProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return p.reply, nil
}

func (p *stubProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.reply, nil
}

func (p *stubProvider) Close() error { return nil }

type stubAnalyzer struct{}

func (a *stubAnalyzer) AnalyzeEntities(ctx context.Context, text string) ([]language.Entity, error) {
	return nil, nil
}

func (a *stubAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (language.Sentiment, error) {
	return language.Sentiment{}, nil
}

func (a *stubAnalyzer) Close() error { return nil }

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "api_test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	engine, err := core.NewEngineWith(&core.Config{}, store, &stubProvider{reply: "hello back"}, &stubAnalyzer{})
	require.NoError(t, err)

	return api.NewServer(engine, core.HTTPConfig{Addr: ":0"})
}

func TestAskReturnsReply(t *testing.T) {
	server := newTestServer(t)

	body := `{"user_id": "u1", "message": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello back")
}

func TestAskRejectsMissingFields(t *testing.T) {
	server := newTestServer(t)

	for _, body := range []string{
		`{"message": "hello"}`,
		`{"user_id": "u1"}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestContextEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/context/u1", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Key entities: none.")
}

func TestThreadEndpointReflectsConversation(t *testing.T) {
	server := newTestServer(t)

	body := `{"user_id": "u1", "message": "hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/v1/thread/u1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "question: hi")
	assert.Contains(t, rec.Body.String(), "answer: hello back")
}

func TestBootstrapEndpoint(t *testing.T) {
	server := newTestServer(t)

	body := `{"user_id": "u1"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/profile/bootstrap", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestImageEndpointWithoutGenerator(t *testing.T) {
	// stubProvider does not implement image generation.
	server := newTestServer(t)

	body := `{"prompt": "a castle"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/images", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSummariesEndpointEmpty(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/summaries/u1", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
