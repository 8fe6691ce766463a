package ports

import (
	"context"
	"time"

	"paperagent/internal/domain"
)

// PaperSource pulls fresh papers from arXiv. Transport and service failures
// are handled inside the implementation: they are logged and yield empty
// results, so callers only ever see zero new papers.
type PaperSource interface {
	Fetch(ctx context.Context, daysBack int) []domain.Paper
	FetchByID(ctx context.Context, arxivID string) (domain.Paper, bool)
	SearchByKeywords(ctx context.Context, keywords []string, daysBack int) []domain.Paper
}

// Analyzer scores and tags papers via a generative-text service. Analyze
// never fails: unusable service output degrades to a default analysis.
type Analyzer interface {
	Analyze(ctx context.Context, paper domain.Paper) domain.Analysis
	ExtractTags(ctx context.Context, paper domain.Paper) []string
}

// PaperStore persists paper records keyed by arXiv id. The external id is
// unique across the store; Insert enforces that with an existence check, not
// a transactional constraint.
type PaperStore interface {
	EnsureSchema(ctx context.Context) error
	Exists(ctx context.Context, arxivID string) bool
	Insert(ctx context.Context, paper domain.Paper, analysis domain.Analysis) (string, bool)
	Update(ctx context.Context, arxivID string, patch map[string]any) bool
	MarkReviewed(ctx context.Context, arxivID string) bool
	MarkRejected(ctx context.Context, arxivID string) bool
	List(ctx context.Context, status domain.Status, limit int) []domain.RecordView
}

// Notifier streams run summaries to an outbound channel (Telegram).
type Notifier interface {
	PublishRunSummary(ctx context.Context, summary string) error
}

// Trigger controls when the pipeline executes.
type Trigger interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// TextGenerator exposes the raw prompt-in/text-out surface of the
// generative-text service for callers that build their own prompts.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
