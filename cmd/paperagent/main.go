package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"paperagent/internal/app"
	"paperagent/internal/config"
	"paperagent/internal/logging"
	"paperagent/internal/report"
)

func main() {
	mode := flag.String("mode", "scheduled", "run mode: manual or scheduled")
	days := flag.Int("days", 1, "lookback window in days for manual runs")
	status := flag.Bool("status", false, "print a collection summary and exit")
	render := flag.String("render", "", "write a report and exit: markdown, html, csv, or taxonomy")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case *status:
		summary := application.Status(ctx)
		fmt.Printf("Total papers:    %d\n", summary.Total)
		fmt.Printf("  New:           %d\n", summary.New)
		fmt.Printf("  Reviewed:      %d\n", summary.Reviewed)
		fmt.Printf("  Rejected:      %d\n", summary.Rejected)
		fmt.Printf("  Last 7 days:   %d\n", summary.Recent)

	case *render != "":
		path, err := renderReport(ctx, application, *render)
		if err != nil {
			logger.Error("render failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("Report written to %s\n", path)

	case *mode == "manual":
		processed := application.RunManual(ctx, *days)
		fmt.Printf("Added %d new papers\n", len(processed))
		for _, paper := range processed {
			fmt.Printf("  [%.1f] %s (%s)\n", paper.RelevanceScore, paper.Title, paper.ArxivID)
		}

	case *mode == "scheduled":
		if err := application.RunScheduled(ctx); err != nil {
			logger.Error("scheduler failed", zap.Error(err))
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

func renderReport(ctx context.Context, application *app.Application, format string) (string, error) {
	if format == "taxonomy" {
		return application.RenderTaxonomy(ctx)
	}
	return application.Render(ctx, report.Format(format))
}
