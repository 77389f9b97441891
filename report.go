package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/insight"
	"github.com/mickamy/planlens/internal/ranking"
	"github.com/mickamy/planlens/internal/render/html"
	"github.com/mickamy/planlens/internal/render/svg"
	"github.com/mickamy/planlens/internal/render/tui"
)

var reportFormats = []string{"tui", "html", "svg", "png", "json", "yaml"}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the explanations of one query",
	Long: `Render the ranked tables, segmented importance bars, plan graph and
evaluation results of one query as terminal text, HTML, SVG, PNG, JSON or YAML.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := loadBundle(cmd.Context(), sourceFromFlags(), logger)
		if err != nil {
			return err
		}
		analysis, err := deriveAnalysis(config.Active(), viewFromFlags(), bundle, logger)
		if err != nil {
			return err
		}

		out := viper.GetString("out")
		format := viper.GetString("format")
		if !cmd.Flags().Changed("format") && out != "" {
			if inferred, ok := inferFormat(out); ok {
				format = inferred
			}
		}

		w, closeOut, err := openOutput(out)
		if err != nil {
			return err
		}
		defer func() {
			_ = closeOut()
		}()
		return writeReport(w, format, analysis, reportOptions{
			Title:    viper.GetString("title"),
			Color:    out == "" && colorEnabled(cmd, os.Stdout),
			MaxDepth: viper.GetInt("max-depth"),
			DOT:      viper.GetBool("dot"),
		})
	},
}

func init() {
	addSourceFlags(reportCmd)
	addViewFlags(reportCmd)
	reportCmd.Flags().StringP("format", "f", "tui", "output format: "+strings.Join(reportFormats, ", "))
	reportCmd.Flags().StringP("out", "o", "", "output path (stdout if omitted)")
	reportCmd.Flags().String("title", "", "report title (HTML, SVG, PNG)")
	reportCmd.Flags().Int("max-depth", 0, "limit plan tree depth (TUI)")
	reportCmd.Flags().Bool("dot", false, "embed the plan graph as DOT (HTML)")
}

type reportOptions struct {
	Title    string
	Color    bool
	MaxDepth int
	DOT      bool
}

func writeReport(w io.Writer, format string, analysis *analyzer.Analysis, opts reportOptions) error {
	switch strings.ToLower(format) {
	case "tui", "":
		return tui.Render(w, analysis, tui.Options{EnableColor: opts.Color, MaxDepth: opts.MaxDepth})
	case "html":
		return html.Render(w, analysis, html.Options{Title: opts.Title, IncludeStyles: true, IncludeDOT: opts.DOT})
	case "svg":
		return svg.Render(w, analysis, svg.FormatSVG, svg.Options{Title: opts.Title, BarHeight: config.Active().Bar.Height})
	case "png":
		return svg.Render(w, analysis, svg.FormatPNG, svg.Options{Title: opts.Title, BarHeight: config.Active().Bar.Height})
	case "json":
		data, err := json.MarshalIndent(newDocument(analysis), "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(analysis)); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected %s)", format, strings.Join(reportFormats, ", "))
	}
}

func inferFormat(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "html", true
	case ".svg":
		return "svg", true
	case ".png":
		return "png", true
	case ".json":
		return "json", true
	case ".yaml", ".yml":
		return "yaml", true
	case ".txt":
		return "tui", true
	}
	return "", false
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return file, file.Close, nil
}

// document is the machine-readable form of an analysis.
type document struct {
	QueryID     int                  `json:"query_id" yaml:"query_id"`
	SQL         string               `json:"sql,omitempty" yaml:"sql,omitempty"`
	Runtime     float64              `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Prediction  *predictionDocument  `json:"prediction,omitempty" yaml:"prediction,omitempty"`
	Explainers  []explainerDocument  `json:"explainers" yaml:"explainers"`
	Legend      []legendDocument     `json:"legend,omitempty" yaml:"legend,omitempty"`
	Insights    []insight.Message    `json:"insights,omitempty" yaml:"insights,omitempty"`
	Evaluations []evaluationDocument `json:"evaluations,omitempty" yaml:"evaluations,omitempty"`
	Missing     []int                `json:"missing_nodes,omitempty" yaml:"missing_nodes,omitempty"`
	Selected    *int                 `json:"selected,omitempty" yaml:"selected,omitempty"`
}

type predictionDocument struct {
	Label      float64 `json:"label" yaml:"label"`
	Prediction float64 `json:"prediction" yaml:"prediction"`
	QError     float64 `json:"qerror" yaml:"qerror"`
}

type explainerDocument struct {
	Explainer string        `json:"explainer" yaml:"explainer"`
	Label     string        `json:"label" yaml:"label"`
	Pending   bool          `json:"pending,omitempty" yaml:"pending,omitempty"`
	Rows      []ranking.Row `json:"rows,omitempty" yaml:"rows,omitempty"`
	Hidden    int           `json:"hidden_rows,omitempty" yaml:"hidden_rows,omitempty"`
}

type legendDocument struct {
	NodeID int    `json:"node_id" yaml:"node_id"`
	Label  string `json:"label" yaml:"label"`
	Color  string `json:"color" yaml:"color"`
}

type evaluationDocument struct {
	Explainer string  `json:"explainer" yaml:"explainer"`
	Metric    string  `json:"metric" yaml:"metric"`
	Score     float64 `json:"score" yaml:"score"`
	Color     string  `json:"color" yaml:"color"`
}

func newDocument(analysis *analyzer.Analysis) document {
	doc := document{
		QueryID:  analysis.Plan.ID,
		SQL:      insight.NormalizeWhitespace(analysis.Plan.SQL),
		Runtime:  analysis.Plan.Runtime,
		Insights: insight.BuildMessages(analysis),
	}
	if pred := analysis.Prediction; pred != nil {
		doc.Prediction = &predictionDocument{Label: pred.Label, Prediction: pred.Prediction, QError: pred.QError}
	}
	for _, v := range analysis.Explainers {
		doc.Explainers = append(doc.Explainers, explainerDocument{
			Explainer: string(v.Explainer),
			Label:     v.Label,
			Pending:   v.Pending,
			Rows:      v.Rows,
			Hidden:    v.TotalRows - len(v.Rows),
		})
	}
	for _, entry := range analysis.Legend {
		doc.Legend = append(doc.Legend, legendDocument{NodeID: entry.NodeID, Label: entry.Label, Color: entry.Color})
	}
	for _, row := range analysis.Evaluations {
		doc.Evaluations = append(doc.Evaluations, evaluationDocument{
			Explainer: row.Explainer.Display(),
			Metric:    row.Metric.Display(),
			Score:     row.Score,
			Color:     row.Color.Hex(),
		})
	}
	for _, missing := range analysis.Missing {
		doc.Missing = append(doc.Missing, missing.NodeID)
	}
	if analysis.Selected.Selected {
		id := analysis.Selected.NodeID
		doc.Selected = &id
	}
	return doc
}
