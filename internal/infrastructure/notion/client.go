package notion

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

const notionVersion = "2022-06-28"

// Client manages the hosted paper database. The external arXiv id is unique
// across the collection; Insert enforces that with an existence check before
// creating a page. The check-then-insert sequence is not atomic against
// concurrent writers.
type Client struct {
	baseURL    string
	apiKey     string
	databaseID string
	pageSize   int
	httpClient *http.Client
	logger     *zap.Logger
}

var _ ports.PaperStore = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.NotionConfig, logger *zap.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

// requiredProperties is the schema the database must carry.
func requiredProperties() map[string]any {
	return map[string]any{
		"Title":           map[string]any{"title": map[string]any{}},
		"Authors":         map[string]any{"rich_text": map[string]any{}},
		"Abstract":        map[string]any{"rich_text": map[string]any{}},
		"ArXiv ID":        map[string]any{"rich_text": map[string]any{}},
		"Published Date":  map[string]any{"date": map[string]any{}},
		"Categories":      map[string]any{"multi_select": map[string]any{"options": []any{}}},
		"ArXiv URL":       map[string]any{"url": map[string]any{}},
		"Tags":            map[string]any{"multi_select": map[string]any{"options": []any{}}},
		"Relevance Score": map[string]any{"number": map[string]any{}},
		"Key Insights":    map[string]any{"rich_text": map[string]any{}},
		"Methodology":     map[string]any{"rich_text": map[string]any{}},
		"Status": map[string]any{"select": map[string]any{"options": []any{
			map[string]any{"name": "New", "color": "blue"},
			map[string]any{"name": "Reviewed", "color": "green"},
			map[string]any{"name": "Rejected", "color": "red"},
		}}},
	}
}

// EnsureSchema reconciles the database schema against the required property
// list, patching in whatever is missing. Idempotent; safe on every startup.
func (c *Client) EnsureSchema(ctx context.Context) error {
	var db struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/databases/"+c.databaseID, nil, &db); err != nil {
		return fmt.Errorf("retrieve database schema: %w", err)
	}

	required := requiredProperties()
	missing := map[string]any{}
	for name, payload := range required {
		if _, ok := db.Properties[name]; !ok {
			missing[name] = payload
		}
	}
	if len(missing) == 0 {
		c.logger.Info("database schema verified")
		return nil
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	c.logger.Info("patching missing database properties", zap.Strings("properties", names))

	patch := map[string]any{"properties": missing}
	if err := c.do(ctx, http.MethodPatch, "/v1/databases/"+c.databaseID, patch, nil); err != nil {
		return fmt.Errorf("patch database schema: %w", err)
	}
	return nil
}

// Exists reports whether a paper with the given arXiv id is already stored.
func (c *Client) Exists(ctx context.Context, arxivID string) bool {
	pages, err := c.queryByArxivID(ctx, arxivID)
	if err != nil {
		c.logger.Error("check paper existence", zap.String("arxiv_id", arxivID), zap.Error(err))
		return false
	}
	return len(pages) > 0
}

// Insert creates a record with Status=New. It re-checks existence first as a
// defense against concurrent callers, then returns the new record id, or
// false when the paper is already present or the service rejected the write.
func (c *Client) Insert(ctx context.Context, paper domain.Paper, analysis domain.Analysis) (string, bool) {
	if c.Exists(ctx, paper.ArxivID) {
		c.logger.Info("paper already exists in database", zap.String("arxiv_id", paper.ArxivID))
		return "", false
	}

	payload := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": buildProperties(paper, analysis),
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/pages", payload, &created); err != nil {
		c.logger.Error("insert paper", zap.String("arxiv_id", paper.ArxivID), zap.Error(err))
		return "", false
	}

	c.logger.Info("added paper to database",
		zap.String("arxiv_id", paper.ArxivID), zap.String("record_id", created.ID))
	return created.ID, true
}

// Update applies a partial property patch to the record with the given arXiv id.
func (c *Client) Update(ctx context.Context, arxivID string, patch map[string]any) bool {
	pageID, ok := c.findPageID(ctx, arxivID)
	if !ok {
		c.logger.Warn("paper not found in database", zap.String("arxiv_id", arxivID))
		return false
	}

	payload := map[string]any{"properties": patch}
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, payload, nil); err != nil {
		c.logger.Error("update paper", zap.String("arxiv_id", arxivID), zap.Error(err))
		return false
	}
	return true
}

// MarkReviewed advances the record status to Reviewed.
func (c *Client) MarkReviewed(ctx context.Context, arxivID string) bool {
	return c.Update(ctx, arxivID, statusPatch(domain.StatusReviewed))
}

// MarkRejected advances the record status to Rejected.
func (c *Client) MarkRejected(ctx context.Context, arxivID string) bool {
	return c.Update(ctx, arxivID, statusPatch(domain.StatusRejected))
}

// List returns up to limit records, optionally filtered by status. Rows that
// fail to map are logged and skipped.
func (c *Client) List(ctx context.Context, status domain.Status, limit int) []domain.RecordView {
	if limit <= 0 {
		limit = c.pageSize
	}

	query := map[string]any{"page_size": limit}
	if status != "" {
		query["filter"] = map[string]any{
			"property": "Status",
			"select":   map[string]any{"equals": string(status)},
		}
	}

	var resp struct {
		Results []page `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", query, &resp); err != nil {
		c.logger.Error("list papers", zap.Error(err))
		return nil
	}

	records := make([]domain.RecordView, 0, len(resp.Results))
	for _, pg := range resp.Results {
		record, err := mapRecordView(pg)
		if err != nil {
			c.logger.Error("map database row", zap.String("page_id", pg.ID), zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	c.logger.Info("retrieved papers from database", zap.Int("count", len(records)))
	return records
}

func (c *Client) queryByArxivID(ctx context.Context, arxivID string) ([]page, error) {
	query := map[string]any{
		"filter": map[string]any{
			"property":  "ArXiv ID",
			"rich_text": map[string]any{"equals": arxivID},
		},
	}

	var resp struct {
		Results []page `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+c.databaseID+"/query", query, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) findPageID(ctx context.Context, arxivID string) (string, bool) {
	pages, err := c.queryByArxivID(ctx, arxivID)
	if err != nil {
		c.logger.Error("find paper page", zap.String("arxiv_id", arxivID), zap.Error(err))
		return "", false
	}
	if len(pages) == 0 {
		return "", false
	}
	return pages[0].ID, true
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notion error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusPatch(status domain.Status) map[string]any {
	return map[string]any{
		"Status": map[string]any{"select": map[string]any{"name": string(status)}},
	}
}

func buildProperties(paper domain.Paper, analysis domain.Analysis) map[string]any {
	return map[string]any{
		"Title":           titleProp(paper.Title),
		"Authors":         richTextProp(strings.Join(paper.Authors, ", ")),
		"Abstract":        richTextProp(paper.Abstract),
		"ArXiv ID":        richTextProp(paper.ArxivID),
		"Published Date":  map[string]any{"date": map[string]any{"start": paper.PublishedDate.Format("2006-01-02")}},
		"Categories":      multiSelectProp(paper.Categories),
		"ArXiv URL":       map[string]any{"url": paper.ArxivURL},
		"Tags":            multiSelectProp(analysis.Tags),
		"Relevance Score": map[string]any{"number": analysis.RelevanceScore},
		"Key Insights":    richTextProp(strings.Join(analysis.KeyInsights, ", ")),
		"Methodology":     richTextProp(analysis.Methodology),
		"Status":          map[string]any{"select": map[string]any{"name": string(domain.StatusNew)}},
	}
}

func titleProp(text string) map[string]any {
	return map[string]any{
		"title": []any{map[string]any{"text": map[string]any{"content": text}}},
	}
}

func richTextProp(text string) map[string]any {
	return map[string]any{
		"rich_text": []any{map[string]any{"text": map[string]any{"content": text}}},
	}
}

func multiSelectProp(names []string) map[string]any {
	options := make([]any, 0, len(names))
	for _, name := range names {
		options = append(options, map[string]any{"name": name})
	}
	return map[string]any{"multi_select": options}
}
