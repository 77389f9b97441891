package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/diff"
	"github.com/mickamy/planlens/internal/insight"
	"github.com/mickamy/planlens/internal/model"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare how two explainers rank the nodes of one query",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := loadBundle(cmd.Context(), sourceFromFlags(), logger)
		if err != nil {
			return err
		}
		cfg := config.Active()
		analysis, err := deriveAnalysis(cfg, view{Select: -1}, bundle, logger)
		if err != nil {
			return err
		}
		report, err := compareExplainers(analysis, viper.GetString("base"), viper.GetString("target"), diff.Options{
			MinRankShift:  viper.GetInt("min-rank-shift"),
			MinScoreDelta: viper.GetFloat64("min-score-delta"),
			MaxItems:      viper.GetInt("max-items"),
			TopK:          viper.GetInt("top-k"),
		})
		if err != nil {
			return err
		}

		w, closeOut, err := openOutput(viper.GetString("out"))
		if err != nil {
			return err
		}
		defer func() {
			_ = closeOut()
		}()
		return writeDiff(w, viper.GetString("format"), report)
	},
}

func init() {
	addSourceFlags(diffCmd)
	diffCmd.Flags().String("base", "actual", "baseline explainer")
	diffCmd.Flags().String("target", "gradient", "explainer compared against the baseline")
	diffCmd.Flags().StringP("format", "f", "md", "output format: md, json or yaml")
	diffCmd.Flags().StringP("out", "o", "", "output path (stdout if omitted)")
	diffCmd.Flags().Int("min-rank-shift", 0, "smallest rank change reported (defaults to diff.min_rank_shift)")
	diffCmd.Flags().Float64("min-score-delta", 0, "smallest score change reported (defaults to diff.min_score_delta)")
	diffCmd.Flags().Int("max-items", 0, "rows per section (defaults to diff.max_items)")
	diffCmd.Flags().Int("top-k", 0, "size of the top set compared for overlap (defaults to diff.top_k)")
}

func compareExplainers(analysis *analyzer.Analysis, base, target string, opts diff.Options) (*diff.Report, error) {
	baseType, err := model.ParseExplainer(base)
	if err != nil {
		return nil, err
	}
	targetType, err := model.ParseExplainer(target)
	if err != nil {
		return nil, err
	}
	opts.Labeler = func(nodeID int) string {
		return insight.CompactLabel(analysis, nodeID)
	}
	return diff.CompareExplainers(analysis, baseType, targetType, opts)
}

func writeDiff(w io.Writer, format string, report *diff.Report) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "md", "markdown", "":
		data = []byte(report.Markdown())
	case "json":
		data, err = report.JSON()
	case "yaml":
		data, err = report.YAML()
	default:
		return fmt.Errorf("unknown format %q (expected md, json or yaml)", format)
	}
	if err != nil {
		return fmt.Errorf("encode diff: %w", err)
	}
	_, err = w.Write(data)
	return err
}
