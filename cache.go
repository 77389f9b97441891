package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/store"
	"github.com/mickamy/planlens/internal/store/postgres"
	"github.com/mickamy/planlens/internal/store/sqlite"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch QUERY_ID...",
	Short: "Copy queries from the inference results database into a sqlite cache",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseQueryIDs(args)
		if err != nil {
			return err
		}
		dsn, path := viper.GetString("dsn"), viper.GetString("db")
		if dsn == "" || path == "" {
			return errors.New("fetch needs both --dsn and --db")
		}

		ctx := cmd.Context()
		pg, err := postgres.Open(ctx, dsn, postgres.Options{Timeout: viper.GetDuration("timeout"), Logger: logger})
		if err != nil {
			return err
		}
		defer func() {
			_ = pg.Close()
		}()
		cache, err := sqlite.Open(ctx, path, sqlite.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer func() {
			_ = cache.Close()
		}()
		return fetchQueries(ctx, pg, cache, ids, logger)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Store local plan, explanation, prediction and evaluation documents in a sqlite cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("db")
		if path == "" {
			return errors.New("--db is required")
		}
		src := sourceFromFlags()
		if src.Plan == "" {
			return errors.New("--plan is required")
		}

		ctx := cmd.Context()
		cache, err := sqlite.Open(ctx, path, sqlite.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer func() {
			_ = cache.Close()
		}()
		queryID, err := importFiles(ctx, cache, src)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported query %d into %s\n", queryID, cache.Path())
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("dsn", "", "PostgreSQL connection string of the inference results database")
	fetchCmd.Flags().String("db", "", "sqlite cache to write")
	fetchCmd.Flags().Duration("timeout", 0, "timeout for each database read (0 disables)")

	addFileFlags(importCmd)
	importCmd.Flags().String("db", "", "sqlite cache to write")
}

func parseQueryIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid query id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fetchQueries(ctx context.Context, from store.Store, to *sqlite.Store, ids []int, logger zerolog.Logger) error {
	for _, id := range ids {
		bundle, err := store.Load(ctx, from, id, model.ExplainerTypes)
		if err != nil {
			return err
		}
		if err := to.SaveBundle(ctx, bundle); err != nil {
			return err
		}
		logger.Info().
			Int("query", id).
			Int("explanations", len(bundle.Explanations)).
			Bool("prediction", bundle.Prediction != nil).
			Int("evaluations", len(bundle.Evaluations)).
			Msg("fetched")
	}
	return nil
}

func importFiles(ctx context.Context, cache *sqlite.Store, src source) (int, error) {
	raw, err := os.ReadFile(src.Plan)
	if err != nil {
		return 0, fmt.Errorf("read plan: %w", err)
	}
	queryID, err := cache.SavePlan(ctx, raw)
	if err != nil {
		return 0, err
	}
	for _, path := range src.Explanations {
		raw, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read explanation: %w", err)
		}
		if err := cache.SaveExplanation(ctx, queryID, "", raw); err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}
	}
	if src.Prediction != "" {
		raw, err := os.ReadFile(src.Prediction)
		if err != nil {
			return 0, fmt.Errorf("read prediction: %w", err)
		}
		if err := cache.SavePrediction(ctx, queryID, raw); err != nil {
			return 0, err
		}
	}
	if src.Evaluations != "" {
		raw, err := os.ReadFile(src.Evaluations)
		if err != nil {
			return 0, fmt.Errorf("read evaluations: %w", err)
		}
		if err := cache.SaveEvaluations(ctx, queryID, raw); err != nil {
			return 0, err
		}
	}
	return queryID, nil
}
