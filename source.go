package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/store"
	"github.com/mickamy/planlens/internal/store/postgres"
	"github.com/mickamy/planlens/internal/store/sqlite"
)

// source selects where a query's documents come from. A DSN wins over a
// sqlite cache, which wins over local files.
type source struct {
	Plan         string
	Explanations []string
	Prediction   string
	Evaluations  string
	DB           string
	DSN          string
	Query        int
	Timeout      time.Duration
}

func addFileFlags(cmd *cobra.Command) {
	cmd.Flags().String("plan", "", "plan JSON document")
	cmd.Flags().StringSlice("explanation", nil, "explanation JSON document (repeatable)")
	cmd.Flags().String("prediction", "", "prediction JSON document")
	cmd.Flags().String("evaluations", "", "evaluation results JSON document")
}

func addSourceFlags(cmd *cobra.Command) {
	addFileFlags(cmd)
	cmd.Flags().String("db", "", "sqlite cache written by import or fetch")
	cmd.Flags().String("dsn", "", "PostgreSQL connection string of the inference results database")
	cmd.Flags().Int("query", 0, "query id to load from --db or --dsn")
	cmd.Flags().Duration("timeout", 30*time.Second, "timeout for each database read")
}

func sourceFromFlags() source {
	return source{
		Plan:         viper.GetString("plan"),
		Explanations: viper.GetStringSlice("explanation"),
		Prediction:   viper.GetString("prediction"),
		Evaluations:  viper.GetString("evaluations"),
		DB:           viper.GetString("db"),
		DSN:          viper.GetString("dsn"),
		Query:        viper.GetInt("query"),
		Timeout:      viper.GetDuration("timeout"),
	}
}

func (s source) files() []string {
	var out []string
	if s.Plan != "" {
		out = append(out, s.Plan)
	}
	out = append(out, s.Explanations...)
	if s.Prediction != "" {
		out = append(out, s.Prediction)
	}
	if s.Evaluations != "" {
		out = append(out, s.Evaluations)
	}
	return out
}

func loadBundle(ctx context.Context, src source, logger zerolog.Logger) (*store.Bundle, error) {
	switch {
	case src.DSN != "":
		if src.Query == 0 {
			return nil, errors.New("--query is required with --dsn")
		}
		pg, err := postgres.Open(ctx, src.DSN, postgres.Options{Timeout: src.Timeout, Logger: logger})
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = pg.Close()
		}()
		return store.Load(ctx, pg, src.Query, model.ExplainerTypes)
	case src.DB != "":
		if src.Query == 0 {
			return nil, errors.New("--query is required with --db")
		}
		db, err := sqlite.Open(ctx, src.DB, sqlite.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = db.Close()
		}()
		return store.Load(ctx, db, src.Query, model.ExplainerTypes)
	case src.Plan != "":
		return readFiles(src)
	default:
		return nil, errors.New("a source is required: --plan, --db or --dsn")
	}
}

func readFiles(src source) (*store.Bundle, error) {
	raw, err := os.ReadFile(src.Plan)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	plan, err := store.DecodePlan(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Plan, err)
	}
	bundle := &store.Bundle{QueryID: plan.ID, Plan: plan}

	for _, path := range src.Explanations {
		explanation, err := readExplanation(path, plan.ID)
		if err != nil {
			return nil, err
		}
		if explanation.QueryID != plan.ID {
			return nil, fmt.Errorf("%s: explanation is for query %d, plan is %d", path, explanation.QueryID, plan.ID)
		}
		bundle.Explanations = append(bundle.Explanations, *explanation)
	}
	if src.Prediction != "" {
		if bundle.Prediction, err = readPrediction(src.Prediction); err != nil {
			return nil, err
		}
	}
	if src.Evaluations != "" {
		if bundle.Evaluations, err = readEvaluations(src.Evaluations, plan.ID); err != nil {
			return nil, err
		}
		for _, r := range bundle.Evaluations {
			if r.QueryID != plan.ID {
				return nil, fmt.Errorf("%s: evaluation is for query %d, plan is %d", src.Evaluations, r.QueryID, plan.ID)
			}
		}
	}
	return bundle, nil
}

func readExplanation(path string, queryID int) (*model.Explanation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read explanation: %w", err)
	}
	explanation, err := store.DecodeExplanation(raw, queryID, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if explanation.Explainer == "" {
		return nil, fmt.Errorf("%s: explanation does not name its explainer type", path)
	}
	return explanation, nil
}

func readPrediction(path string) (*model.Prediction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prediction: %w", err)
	}
	prediction, err := store.DecodePrediction(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prediction, nil
}

func readEvaluations(path string, queryID int) ([]model.EvaluationResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evaluations: %w", err)
	}
	results, err := store.DecodeEvaluations(raw, queryID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}
