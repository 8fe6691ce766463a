package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"paperagent/internal/config"
	"paperagent/internal/domain"
	"paperagent/internal/infrastructure/arxiv"
	"paperagent/internal/infrastructure/llm"
	"paperagent/internal/infrastructure/notion"
	"paperagent/internal/infrastructure/scheduler"
	"paperagent/internal/infrastructure/storage"
	"paperagent/internal/infrastructure/telegram"
	"paperagent/internal/ports"
	"paperagent/internal/report"
	"paperagent/internal/usecase"
)

// Application wires configuration to components and orchestrates lifecycle.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	store     ports.PaperStore
	generator ports.TextGenerator
	db        *sql.DB
}

// New validates configuration, builds the component graph, and verifies the
// store schema. Any error here is fatal to startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{cfg: cfg, logger: logger}

	store, err := app.buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.store = store

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure store schema: %w", err)
	}

	source := arxiv.NewClient(cfg.Arxiv, logger.Named("arxiv"))
	gemini := llm.NewGeminiClient(cfg.LLM, logger.Named("llm"))
	app.generator = gemini

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Analyzer:  gemini,
		Store:     store,
		Notifier:  notifier,
		MainQuery: cfg.Arxiv.MainQuery,
		DaysBack:  cfg.Arxiv.DaysBack,
		Logger:    logger.Named("pipeline"),
	})

	trigger, err := scheduler.New(cfg.Scheduler.Schedule(), logger.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	app.scheduler = usecase.NewScheduler(trigger, app.pipeline, logger.Named("scheduler"))

	return app, nil
}

func (a *Application) buildStore(cfg config.Config, logger *zap.Logger) (ports.PaperStore, error) {
	switch cfg.Store.Backend {
	case "notion":
		return notion.NewClient(cfg.Notion, logger.Named("notion")), nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		return storage.NewPostgresStore(db, logger.Named("postgres")), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// RunManual executes one pipeline cycle over the given lookback window.
func (a *Application) RunManual(ctx context.Context, daysBack int) []domain.ProcessedPaper {
	return a.pipeline.RunManual(ctx, daysBack)
}

// RunScheduled starts the trigger and blocks until the context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Status summarizes the current store contents.
func (a *Application) Status(ctx context.Context) usecase.StatusSummary {
	return a.pipeline.Status(ctx)
}

// Render writes a report over all stored records and returns the output path.
func (a *Application) Render(ctx context.Context, format report.Format) (string, error) {
	records := a.store.List(ctx, "", 1000)
	return report.WriteReport(records, a.cfg.Arxiv.MainQuery, format)
}

// RenderTaxonomy generates the tag taxonomy document.
func (a *Application) RenderTaxonomy(ctx context.Context) (string, error) {
	records := a.store.List(ctx, "", 1000)
	return report.GenerateTaxonomy(ctx, records, a.cfg.Arxiv.MainQuery, a.generator)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
