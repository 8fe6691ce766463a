package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS papers (
    id              UUID PRIMARY KEY,
    external_id     TEXT NOT NULL UNIQUE,
    title           TEXT NOT NULL,
    authors         TEXT[] NOT NULL DEFAULT '{}',
    abstract        TEXT NOT NULL DEFAULT '',
    published_date  DATE,
    categories      TEXT[] NOT NULL DEFAULT '{}',
    url             TEXT NOT NULL DEFAULT '',
    tags            TEXT[] NOT NULL DEFAULT '{}',
    relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    key_insights    TEXT NOT NULL DEFAULT '',
    methodology     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'New',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore is the self-hosted alternative to the hosted database, for
// deployments without a Notion workspace. Same contract: external id unique,
// enforced by a non-atomic check before insert.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

var _ ports.PaperStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}
}

// EnsureSchema creates the papers table if it is not present. Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create papers table: %w", err)
	}
	s.logger.Info("database schema verified")
	return nil
}

// Exists reports whether a paper with the given arXiv id is already stored.
func (s *PostgresStore) Exists(ctx context.Context, arxivID string) bool {
	query, args, err := s.builder.
		Select("COUNT(1)").
		From("papers").
		Where(sq.Eq{"external_id": arxivID}).
		ToSql()
	if err != nil {
		s.logger.Error("build existence query", zap.Error(err))
		return false
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		s.logger.Error("check paper existence", zap.String("arxiv_id", arxivID), zap.Error(err))
		return false
	}
	return count > 0
}

// Insert creates a record with Status=New after re-checking existence.
func (s *PostgresStore) Insert(ctx context.Context, paper domain.Paper, analysis domain.Analysis) (string, bool) {
	if s.Exists(ctx, paper.ArxivID) {
		s.logger.Info("paper already exists in database", zap.String("arxiv_id", paper.ArxivID))
		return "", false
	}

	id := uuid.NewString()
	var published any
	if !paper.PublishedDate.IsZero() {
		published = paper.PublishedDate.Format("2006-01-02")
	}

	query, args, err := s.builder.
		Insert("papers").
		Columns("id", "external_id", "title", "authors", "abstract", "published_date",
			"categories", "url", "tags", "relevance_score", "key_insights", "methodology", "status").
		Values(id, paper.ArxivID, paper.Title, pq.StringArray(paper.Authors), paper.Abstract, published,
			pq.StringArray(paper.Categories), paper.ArxivURL, pq.StringArray(analysis.Tags),
			analysis.RelevanceScore, joinList(analysis.KeyInsights), analysis.Methodology,
			string(domain.StatusNew)).
		ToSql()
	if err != nil {
		s.logger.Error("build insert query", zap.Error(err))
		return "", false
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("insert paper", zap.String("arxiv_id", paper.ArxivID), zap.Error(err))
		return "", false
	}

	s.logger.Info("added paper to database",
		zap.String("arxiv_id", paper.ArxivID), zap.String("record_id", id))
	return id, true
}

// Update applies a partial column patch to the record with the given arXiv id.
func (s *PostgresStore) Update(ctx context.Context, arxivID string, patch map[string]any) bool {
	if len(patch) == 0 {
		return false
	}

	query, args, err := s.builder.
		Update("papers").
		SetMap(patch).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"external_id": arxivID}).
		ToSql()
	if err != nil {
		s.logger.Error("build update query", zap.Error(err))
		return false
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("update paper", zap.String("arxiv_id", arxivID), zap.Error(err))
		return false
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		s.logger.Warn("paper not found in database", zap.String("arxiv_id", arxivID))
		return false
	}
	return true
}

// MarkReviewed advances the record status to Reviewed.
func (s *PostgresStore) MarkReviewed(ctx context.Context, arxivID string) bool {
	return s.Update(ctx, arxivID, map[string]any{"status": string(domain.StatusReviewed)})
}

// MarkRejected advances the record status to Rejected.
func (s *PostgresStore) MarkRejected(ctx context.Context, arxivID string) bool {
	return s.Update(ctx, arxivID, map[string]any{"status": string(domain.StatusRejected)})
}

// List returns up to limit records ordered by published date descending,
// optionally filtered by status. Rows that fail to scan are logged and
// skipped.
func (s *PostgresStore) List(ctx context.Context, status domain.Status, limit int) []domain.RecordView {
	if limit <= 0 {
		limit = 100
	}

	builder := s.builder.
		Select("id", "title", "authors", "abstract", "external_id", "published_date",
			"categories", "url", "tags", "relevance_score", "key_insights", "methodology", "status").
		From("papers").
		OrderBy("published_date DESC NULLS LAST").
		Limit(uint64(limit))
	if status != "" {
		builder = builder.Where(sq.Eq{"status": string(status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		s.logger.Error("build list query", zap.Error(err))
		return nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("list papers", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var records []domain.RecordView
	for rows.Next() {
		var (
			record    domain.RecordView
			authors   pq.StringArray
			published sql.NullTime
			cats      pq.StringArray
			tags      pq.StringArray
			rowStatus string
		)
		if err := rows.Scan(&record.ID, &record.Title, &authors, &record.Abstract,
			&record.ArxivID, &published, &cats, &record.ArxivURL, &tags,
			&record.RelevanceScore, &record.KeyInsights, &record.Methodology, &rowStatus); err != nil {
			s.logger.Error("scan paper row", zap.Error(err))
			continue
		}
		record.Authors = joinList(authors)
		record.Categories = cats
		record.Tags = tags
		record.Status = domain.Status(rowStatus)
		if published.Valid {
			record.PublishedDate = published.Time.Format("2006-01-02")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("iterate paper rows", zap.Error(err))
	}

	s.logger.Info("retrieved papers from database", zap.Int("count", len(records)))
	return records
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
