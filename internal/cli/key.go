package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-runner/internal/config"
	"timed-quiz-runner/internal/domain"
	pgstore "timed-quiz-runner/internal/infra/postgres"
	"timed-quiz-runner/internal/logger"
)

// NewCheckKeyCmd loads the configured answer key and reports how many answers are known.
func NewCheckKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-key [ref]",
		Short: "Load and validate an answer key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ref := cfg.Quiz.AnswerKey
			if len(args) == 1 {
				ref = args[0]
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var pool *pgxpool.Pool
			if cfg.Quiz.AnswerKeySource == "postgres" && cfg.Postgres.URL != "" {
				pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
				if err != nil {
					return err
				}
				defer pool.Close()
			}

			key, err := buildKeySource(cfg, pool, nil).LoadAnswerKey(ctx, ref)
			if err != nil {
				return err
			}
			known := 0
			for i := range key {
				if _, ok := key.Lookup(i); ok {
					known++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d answers, %d known\n", ref, len(key), known)
			if len(key) != cfg.Quiz.Questions {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: quiz has %d questions\n", cfg.Quiz.Questions)
			}
			return nil
		},
	}
}

// NewImportKeyCmd stores an answer key file in Postgres under ref.
func NewImportKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-key <ref> <file>",
		Short: "Store an answer key file in Postgres",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			log, err := logger.New(cfg.Log.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			key, err := domain.ParseAnswerKey(f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgstore.NewAnswerKeyLoader(pool).SaveAnswerKey(ctx, args[0], key); err != nil {
				return err
			}
			log.Info("answer key stored", zap.String("ref", args[0]), zap.Int("answers", len(key)))
			return nil
		},
	}
}
