package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paperagent/internal/config"
	"paperagent/internal/domain"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGeminiClient(config.LLMConfig{
		APIKey:      "test-key",
		Model:       "gemini-2.0-flash",
		Temperature: 0.3,
		MaxTokens:   1500,
		Endpoint:    server.URL,
	}, zap.NewNop())
}

func generateReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
}

func TestAnalyzeParsesModelReply(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash:generateContent")

		reply := `{"tags": ["Oversight"], "relevance_score": 9, "key_insights": ["Strong result"], "methodology": "Ablation"}`
		json.NewEncoder(w).Encode(generateReply(reply))
	})

	analysis := client.Analyze(context.Background(), domain.Paper{Title: "A Paper"})

	assert.Equal(t, []string{"Oversight"}, analysis.Tags)
	assert.InDelta(t, 9.0, analysis.RelevanceScore, 0.001)
	assert.Equal(t, "Ablation", analysis.Methodology)
}

func TestAnalyzeServiceErrorReturnsDefault(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	analysis := client.Analyze(context.Background(), domain.Paper{Title: "A Paper"})
	assert.Equal(t, DefaultAnalysis(), analysis)
}

func TestAnalyzeMissingKeyReturnsDefault(t *testing.T) {
	t.Parallel()

	client := NewGeminiClient(config.LLMConfig{Endpoint: "http://localhost:0"}, zap.NewNop())

	analysis := client.Analyze(context.Background(), domain.Paper{Title: "A Paper"})
	assert.Equal(t, DefaultAnalysis(), analysis)
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateReply("oversight, debate, reward modeling, evaluation, safety, extra"))
	})

	tags := client.ExtractTags(context.Background(), domain.Paper{Title: "A Paper"})

	require.Len(t, tags, 5)
	assert.Equal(t, []string{"oversight", "debate", "reward modeling", "evaluation", "safety"}, tags)
}

func TestExtractTagsServiceErrorReturnsDefault(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	tags := client.ExtractTags(context.Background(), domain.Paper{Title: "A Paper"})
	assert.Equal(t, defaultTags(), tags)
}

func TestGenerateConcatenatesParts(t *testing.T) {
	t.Parallel()

	client := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Hello "},{"text":"world"}]}}]}`)
	})

	text, err := client.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}
