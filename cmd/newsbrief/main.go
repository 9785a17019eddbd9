package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"NewsBrief/internal/app"
	"NewsBrief/internal/config"
	"NewsBrief/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit instead of scheduling")
	runID := flag.String("run-id", "", "run identifier, used with -resume to continue an interrupted run")
	resume := flag.Bool("resume", false, "resume the run given by -run-id, skipping completed sources")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = application.Close() }()

	if *once || *resume {
		if err := application.RunOnce(ctx, *runID, *resume); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
