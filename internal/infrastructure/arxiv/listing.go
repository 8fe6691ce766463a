package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"paperagent/internal/domain"
)

const arxivBaseURL = "https://arxiv.org"

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ListingScanner scrapes the arXiv HTML listing pages. It is the degraded
// transport used when the export API is unreachable; listing pages carry no
// PDF links and coarser dates than the feed.
type ListingScanner struct {
	urls     []string
	client   *http.Client
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewListingScanner wires an HTTP client; pageSize defaults to 200.
func NewListingScanner(urls []string, client *http.Client, logger *zap.Logger) *ListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ListingScanner{
		urls:     urls,
		client:   client,
		pageSize: 200,
		logger:   logger,
		now:      time.Now,
	}
}

// Scan walks each configured listing URL and returns papers published within
// the last daysBack days. Failures are logged per listing and skipped.
func (s *ListingScanner) Scan(ctx context.Context, daysBack int) []domain.Paper {
	cutoff := dayOf(s.now().AddDate(0, 0, -daysBack))
	results := make([]domain.Paper, 0)
	seen := map[string]struct{}{}

	for _, listURL := range s.urls {
		skip := 0
		for {
			pageURL, err := buildPageURL(listURL, skip, s.pageSize)
			if err != nil {
				s.logger.Error("build listing url", zap.String("url", listURL), zap.Error(err))
				break
			}

			doc, err := s.fetchDocument(ctx, pageURL)
			if err != nil {
				s.logger.Error("fetch listing page", zap.String("url", pageURL), zap.Error(err))
				break
			}

			pagePapers, shouldContinue := s.extractPapers(doc, cutoff)
			for _, paper := range pagePapers {
				if _, ok := seen[paper.ArxivID]; ok {
					continue
				}
				seen[paper.ArxivID] = struct{}{}
				results = append(results, paper)
			}

			if !shouldContinue {
				break
			}
			skip += s.pageSize
		}
	}

	s.logger.Info("scanned arxiv listings", zap.Int("count", len(results)))
	return results
}

func (s *ListingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "paperagent/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (s *ListingScanner) extractPapers(doc *goquery.Document, cutoff time.Time) ([]domain.Paper, bool) {
	var (
		collected    []domain.Paper
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, err := parseListingEntry(dt, dd)
		if err != nil {
			return true
		}

		day := dayOf(paper.PublishedDate)
		if day.Before(cutoff) {
			// Listings are date-descending; everything past here is older.
			continueScan = false
			return false
		}
		collected = append(collected, paper)
		return true
	})

	if processed < s.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseListingEntry(dt, dd *goquery.Selection) (domain.Paper, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, ok := link.Attr("href")
	if !ok {
		return domain.Paper{}, fmt.Errorf("listing entry has no identifier")
	}
	if !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}

	id := strings.TrimSpace(link.Text())
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		id = href[strings.LastIndex(href, "/")+1:]
	}
	if id == "" {
		return domain.Paper{}, fmt.Errorf("listing entry has no identifier")
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(i int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	var categories []string
	subjects := strings.TrimSpace(dd.Find(".list-subjects .primary-subject").First().Text())
	if start := strings.Index(subjects, "("); start >= 0 {
		if end := strings.Index(subjects[start:], ")"); end > 0 {
			categories = append(categories, subjects[start+1:start+end])
		}
	}

	dateText := strings.TrimSpace(dt.Parent().Prev().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-date").First().Text())
	}
	publishedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	return domain.Paper{
		Title:         title,
		Authors:       authors,
		Abstract:      abstract,
		ArxivID:       id,
		PublishedDate: publishedAt,
		Categories:    categories,
		ArxivURL:      href,
	}, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
