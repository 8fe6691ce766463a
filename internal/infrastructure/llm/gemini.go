package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperagent/internal/config"
	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

const systemPrompt = `You are an expert AI researcher specializing in scalable oversight and AI alignment.
Analyze papers for their relevance to AI agent oversight, safety, and alignment research.
Provide structured, insightful analysis focusing on practical implications for AI safety.`

// GeminiClient analyzes papers via the Gemini generateContent API. Analyze
// and ExtractTags never fail: a service error degrades to the fixed default
// analysis so a quota blip cannot abort a pipeline run.
type GeminiClient struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

var _ ports.Analyzer = (*GeminiClient)(nil)
var _ ports.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) *GeminiClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Analyze asks the model to tag, score, and summarize the paper.
func (g *GeminiClient) Analyze(ctx context.Context, paper domain.Paper) domain.Analysis {
	prompt := systemPrompt + "\n\n" + analysisPrompt(paper)

	text, err := g.generate(ctx, prompt, g.temperature, g.maxTokens)
	if err != nil {
		g.logger.Error("analyze paper", zap.String("title", paper.Title), zap.Error(err))
		return DefaultAnalysis()
	}

	analysis := ParseAnalysis(text, g.logger)
	g.logger.Info("analyzed paper", zap.String("title", paper.Title),
		zap.Float64("relevance_score", analysis.RelevanceScore))
	return analysis
}

// ExtractTags issues a lighter prompt limited to 5 tags.
func (g *GeminiClient) ExtractTags(ctx context.Context, paper domain.Paper) []string {
	prompt := fmt.Sprintf(`Extract 3-5 relevant tags for this paper related to AI agent scalable oversight:

Title: %s
Abstract: %s

Return only the tags, separated by commas.`, paper.Title, paper.Abstract)

	text, err := g.generate(ctx, prompt, 0.2, 100)
	if err != nil {
		g.logger.Error("extract tags", zap.String("title", paper.Title), zap.Error(err))
		return defaultTags()
	}

	var tags []string
	for _, tag := range strings.Split(strings.TrimSpace(text), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return defaultTags()
	}
	if len(tags) > 5 {
		tags = tags[:5]
	}
	return tags
}

// Generate exposes the raw prompt surface with the configured parameters.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, g.temperature, g.maxTokens)
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini client misconfigured: missing api key")
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
			"topP":            0.8,
			"topK":            40,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var out strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

func analysisPrompt(paper domain.Paper) string {
	return fmt.Sprintf(`Analyze this research paper for relevance to AI agent scalable oversight:

Title: %s
Authors: %s
Abstract: %s
Categories: %s

Please provide:
1. 3-5 relevant tags
2. Relevance score (0-10) for scalable oversight
3. Key insights (2-3 points)
4. Methodology used (in paragraph format)

Format your response as JSON with these fields: tags, relevance_score, key_insights, methodology`,
		paper.Title,
		strings.Join(paper.Authors, ", "),
		paper.Abstract,
		strings.Join(paper.Categories, ", "))
}
