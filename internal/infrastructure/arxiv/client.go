package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperagent/internal/config"
	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

// Client queries the arXiv export API sorted by submission date descending.
// The remote recency sort is not trusted as a hard cutoff; results are
// post-filtered against the lookback window client-side.
//
// All transport and service failures are logged and converted into empty
// results so callers only ever see zero new papers.
type Client struct {
	baseURL    string
	query      string
	maxResults int
	listing    *ListingScanner
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

var _ ports.PaperSource = (*Client)(nil)

// NewClient wires an API client from configuration. When listing URLs are
// configured the HTML listing scanner acts as a degraded fallback for Fetch.
func NewClient(cfg config.ArxivConfig, logger *zap.Logger) *Client {
	var listing *ListingScanner
	if len(cfg.ListingURLs) > 0 {
		listing = NewListingScanner(cfg.ListingURLs, nil, logger)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		query:      cfg.Query,
		maxResults: cfg.MaxResults,
		listing:    listing,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch returns papers matching the configured filter query published within
// the last daysBack days.
func (c *Client) Fetch(ctx context.Context, daysBack int) []domain.Paper {
	papers, err := c.search(ctx, c.query, daysBack)
	if err != nil {
		c.logger.Error("fetch papers from arxiv", zap.Error(err))
		if c.listing != nil {
			c.logger.Warn("falling back to arxiv listing pages")
			return c.listing.Scan(ctx, daysBack)
		}
		return nil
	}
	c.logger.Info("fetched papers from arxiv", zap.Int("count", len(papers)))
	return papers
}

// FetchByID retrieves a single paper via the id_list endpoint.
func (c *Client) FetchByID(ctx context.Context, arxivID string) (domain.Paper, bool) {
	feed, err := c.queryFeed(ctx, url.Values{"id_list": {arxivID}})
	if err != nil {
		c.logger.Error("fetch paper details", zap.String("arxiv_id", arxivID), zap.Error(err))
		return domain.Paper{}, false
	}
	if len(feed.Entries) == 0 {
		return domain.Paper{}, false
	}
	return paperFromEntry(feed.Entries[0]), true
}

// SearchByKeywords ORs abstract keyword clauses into the base filter query.
func (c *Client) SearchByKeywords(ctx context.Context, keywords []string, daysBack int) []domain.Paper {
	clauses := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		clauses = append(clauses, fmt.Sprintf("abs:%q", kw))
	}
	full := fmt.Sprintf("(%s) AND %s", strings.Join(clauses, " OR "), c.query)

	papers, err := c.search(ctx, full, daysBack)
	if err != nil {
		c.logger.Error("search papers by keywords", zap.Strings("keywords", keywords), zap.Error(err))
		return nil
	}
	c.logger.Info("searched papers by keywords",
		zap.Strings("keywords", keywords), zap.Int("count", len(papers)))
	return papers
}

func (c *Client) search(ctx context.Context, query string, daysBack int) ([]domain.Paper, error) {
	feed, err := c.queryFeed(ctx, url.Values{
		"search_query": {query},
		"max_results":  {strconv.Itoa(c.maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	})
	if err != nil {
		return nil, err
	}

	cutoff := dayOf(c.now().AddDate(0, 0, -daysBack))
	papers := make([]domain.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		paper := paperFromEntry(entry)
		if dayOf(paper.PublishedDate).Before(cutoff) {
			continue
		}
		papers = append(papers, paper)
	}
	return papers, nil
}

func (c *Client) queryFeed(ctx context.Context, params url.Values) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "paperagent/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &feed, nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
	Published  string         `xml:"published"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func paperFromEntry(entry atomEntry) domain.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		categories = append(categories, cat.Term)
	}

	var pdfURL string
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			pdfURL = link.Href
			break
		}
	}

	published, _ := time.Parse(time.RFC3339, entry.Published)

	// The entry id is the abs URL; the last path segment is the arXiv id.
	id := entry.ID
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}

	return domain.Paper{
		Title:         collapseWhitespace(entry.Title),
		Authors:       authors,
		Abstract:      collapseWhitespace(entry.Summary),
		ArxivID:       id,
		PublishedDate: published,
		Categories:    categories,
		PDFURL:        pdfURL,
		ArxivURL:      entry.ID,
	}
}

// collapseWhitespace folds the feed's hard-wrapped text into single lines.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
