package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/logger"
	"github.com/rxledger/statements/internal/postgres"
	"github.com/rxledger/statements/internal/postgres/migrations"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	if *dryRun {
		all, err := migrations.List()
		if err != nil {
			log.Fatalf("Failed to read migrations: %v", err)
		}
		for _, m := range all {
			fmt.Printf("-- %s\n%s\n", m.Version, m.SQL)
		}
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	if err := migrations.Apply(ctx, db.DB, logger); err != nil {
		logger.Fatalw("Failed to apply migrations", "error", err)
	}
	logger.Info("Migration completed successfully")
}
