package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/privacyanalyzer/privacyanalyzer/internal/jobstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Applies the scan_jobs/scan_results schema. Idempotent: safe to run on every deploy.",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := jobstore.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	fmt.Println("migration applied successfully")
	return nil
}
