// Command reelrank ranks candidate movies and series for a single viewer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelrank/reelrank/internal/config"
	"github.com/reelrank/reelrank/internal/database"
	"github.com/reelrank/reelrank/internal/history"
	"github.com/reelrank/reelrank/internal/logger"
	"github.com/reelrank/reelrank/internal/recommend"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reelrank",
		Short:         "Rank unseen movies and series by personal preference",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./reelrank.yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newSeenCmd())
	root.AddCommand(newFeedbackCmd())
	root.AddCommand(newWeightsCmd())
	return root
}

// app holds the wired services shared by every command.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *database.DB
	history *history.Service
	svc     *recommend.Service
}

// newApp loads config, opens the log and the shown-items database, and
// builds the recommendation service.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, os.Stderr)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Close()
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	hist := history.NewService(db.Conn(), log.Logger)
	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		history: hist,
		svc:     recommend.NewService(cfg, hist, log.Logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
	a.log.Close()
}
