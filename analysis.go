package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/ranking"
	"github.com/mickamy/planlens/internal/session"
	"github.com/mickamy/planlens/internal/store"
)

// view holds the flags that change what the analysis shows.
type view struct {
	Width          int
	All            bool
	GraphMode      string
	GraphExplainer string
	// Select is the node id to highlight. Negative means no selection.
	Select int
}

func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().Int("width", 0, "bar width in pixels (defaults to bar.width)")
	cmd.Flags().Bool("all", false, "list every ranked node instead of the top rows")
	cmd.Flags().String("graph-mode", "", "plan graph fill: nodeTypes, actualRuntimes or nodeImportance")
	cmd.Flags().String("graph-explainer", "", "explainer whose scores colour the plan graph")
	cmd.Flags().Int("select", -1, "node id to highlight in every view")
}

func viewFromFlags() view {
	return view{
		Width:          viper.GetInt("width"),
		All:            viper.GetBool("all"),
		GraphMode:      viper.GetString("graph-mode"),
		GraphExplainer: viper.GetString("graph-explainer"),
		Select:         viper.GetInt("select"),
	}
}

func analyzerOptions(cfg config.Config, v view) (analyzer.Options, error) {
	opts := analyzer.Options{
		MinThreshold:  cfg.Scores.MinThreshold,
		Width:         cfg.Bar.Width,
		Limit:         ranking.Top(cfg.Ranking.Limit),
		LabelMinWidth: cfg.Bar.LabelMinWidth,
		Breakpoint:    cfg.Heat.Breakpoint,
		LegendSteps:   cfg.Heat.LegendSteps,
	}
	if v.Width > 0 {
		opts.Width = v.Width
	}
	if v.All {
		opts.Limit = ranking.All
	}

	modeName := cfg.Graph.Mode
	if v.GraphMode != "" {
		modeName = v.GraphMode
	}
	mode, err := graphview.ParseMode(modeName)
	if err != nil {
		return analyzer.Options{}, err
	}
	opts.GraphMode = mode

	if v.GraphExplainer != "" {
		explainer, err := model.ParseExplainer(v.GraphExplainer)
		if err != nil {
			return analyzer.Options{}, err
		}
		opts.GraphExplainer = explainer
	}
	return opts, nil
}

func newSession(cfg config.Config, v view, logger zerolog.Logger) (*session.Session, error) {
	opts, err := analyzerOptions(cfg, v)
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Logger:     logger,
		Palette:    cfg.Bar.Palette,
		Explainers: model.ExplainerTypes,
		Analyzer:   opts,
	}), nil
}

// applyBundle makes bundle the active query of sess.
func applyBundle(sess *session.Session, bundle *store.Bundle) (session.Key, error) {
	if bundle == nil || bundle.Plan == nil {
		return session.Key{}, errors.New("no plan to analyze")
	}
	key := sess.SetQuery(bundle.Plan.ID, bundle.Plan)
	for _, explanation := range bundle.Explanations {
		if err := sess.ApplyExplanation(key, explanation); err != nil {
			return key, err
		}
	}
	if bundle.Prediction != nil {
		if err := sess.ApplyPrediction(key, *bundle.Prediction); err != nil {
			return key, err
		}
	}
	if len(bundle.Evaluations) > 0 {
		if err := sess.ApplyEvaluations(key, bundle.Evaluations); err != nil {
			return key, err
		}
	}
	return key, nil
}

func deriveAnalysis(cfg config.Config, v view, bundle *store.Bundle, logger zerolog.Logger) (*analyzer.Analysis, error) {
	sess, err := newSession(cfg, v, logger)
	if err != nil {
		return nil, err
	}
	if _, err := applyBundle(sess, bundle); err != nil {
		return nil, err
	}
	if v.Select >= 0 {
		sess.Select(v.Select)
	}
	analysis := sess.Snapshot()
	if analysis == nil {
		return nil, fmt.Errorf("analyze query %d: no result", bundle.Plan.ID)
	}
	return analysis, nil
}
