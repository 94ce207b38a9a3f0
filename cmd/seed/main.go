// Command seed fills a database with the sample IndieArcade community.
//
//	go run ./cmd/seed            # uses DB_PATH (default data/indie_arcade.db)
//	go run ./cmd/seed --db x.db  # explicit file
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/indie-arcade/internal/config"
	sqliteRepo "github.com/sakif/indie-arcade/internal/repository/sqlite"
	"github.com/sakif/indie-arcade/internal/seed"
)

var (
	dbPath  string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Insert the sample users and reviews",
		Long:         "Insert ten sample users, each with one game review. Users that already exist are skipped with their reviews, so the command is safe to re-run.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runSeed,
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database file (default: DB_PATH)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log each skipped user")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if dbPath == "" {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}
		dbPath = cfg.DBPath
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sqliteRepo.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := seed.Run(cmd.Context(), db, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d users, %d posts\n", dbPath, res.UsersCreated, res.PostsCreated)
	return nil
}
