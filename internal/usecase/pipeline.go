package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

// PipelineDeps carries everything a pipeline run needs.
type PipelineDeps struct {
	Source    ports.PaperSource
	Analyzer  ports.Analyzer
	Store     ports.PaperStore
	Notifier  ports.Notifier
	MainQuery string
	DaysBack  int
	Logger    *zap.Logger
}

// Pipeline is the fetch-analyze-persist sequence. Each paper is processed
// independently: a failure on one never aborts the run, and papers already in
// the store are skipped before any model call is made.
type Pipeline struct {
	deps PipelineDeps
}

// StatusSummary aggregates record counts for the status report.
type StatusSummary struct {
	Total    int
	New      int
	Reviewed int
	Rejected int
	Recent   int
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{deps: deps}
}

// RunDaily executes one scheduled cycle over the configured lookback window
// and publishes a run summary when a notifier is wired.
func (p *Pipeline) RunDaily(ctx context.Context) {
	processed := p.RunManual(ctx, p.deps.DaysBack)

	if p.deps.Notifier == nil {
		return
	}
	summary := fmt.Sprintf("Paper monitor run finished: %d new papers added", len(processed))
	if err := p.deps.Notifier.PublishRunSummary(ctx, summary); err != nil {
		p.deps.Logger.Error("publish run summary", zap.Error(err))
	}
}

// RunManual executes one cycle over the given lookback window and returns the
// papers that were newly persisted.
func (p *Pipeline) RunManual(ctx context.Context, daysBack int) []domain.ProcessedPaper {
	if daysBack <= 0 {
		daysBack = 1
	}
	log := p.deps.Logger

	log.Info("fetching recent papers", zap.Int("days_back", daysBack))
	papers := p.deps.Source.Fetch(ctx, daysBack)
	log.Info("fetched papers", zap.Int("count", len(papers)))

	var processed []domain.ProcessedPaper
	for _, paper := range papers {
		if result, ok := p.processOne(ctx, paper); ok {
			processed = append(processed, result)
		}
	}

	log.Info("pipeline run complete",
		zap.Int("fetched", len(papers)), zap.Int("added", len(processed)))
	return processed
}

func (p *Pipeline) processOne(ctx context.Context, paper domain.Paper) (domain.ProcessedPaper, bool) {
	log := p.deps.Logger

	if p.deps.Store.Exists(ctx, paper.ArxivID) {
		log.Debug("skipping known paper", zap.String("arxiv_id", paper.ArxivID))
		return domain.ProcessedPaper{}, false
	}

	log.Info("analyzing paper",
		zap.String("arxiv_id", paper.ArxivID), zap.String("title", paper.Title))
	analysis := p.deps.Analyzer.Analyze(ctx, paper)

	if !shouldInclude(p.deps.MainQuery, analysis.Tags) {
		log.Info("paper filtered out by topic",
			zap.String("arxiv_id", paper.ArxivID), zap.Strings("tags", analysis.Tags))
		return domain.ProcessedPaper{}, false
	}

	recordID, ok := p.deps.Store.Insert(ctx, paper, analysis)
	if !ok {
		return domain.ProcessedPaper{}, false
	}

	return domain.ProcessedPaper{
		Title:          paper.Title,
		ArxivID:        paper.ArxivID,
		RelevanceScore: analysis.RelevanceScore,
		RecordID:       recordID,
	}, true
}

// Status summarizes the current store contents.
func (p *Pipeline) Status(ctx context.Context) StatusSummary {
	records := p.deps.Store.List(ctx, "", 1000)

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	var summary StatusSummary
	summary.Total = len(records)
	for _, record := range records {
		switch record.Status {
		case domain.StatusNew:
			summary.New++
		case domain.StatusReviewed:
			summary.Reviewed++
		case domain.StatusRejected:
			summary.Rejected++
		}
		if published, err := time.Parse("2006-01-02", record.PublishedDate); err == nil {
			if !published.Before(cutoff) {
				summary.Recent++
			}
		}
	}
	return summary
}

// shouldInclude keeps a paper when any of its tags mentions a token of the
// main topic. Tokens shorter than three characters are too noisy to match on;
// a query that yields no usable tokens matches nothing.
func shouldInclude(mainQuery string, tags []string) bool {
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(mainQuery)) {
		if len(token) > 2 {
			tokens = append(tokens, token)
		}
	}

	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				return true
			}
		}
	}
	return false
}
