package html

import (
	"fmt"
	"html/template"
	"io"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/insight"
	"github.com/mickamy/planlens/internal/model"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
	// IncludeDOT embeds the Graphviz description of the coloured plan graph.
	IncludeDOT bool
}

// Render writes an HTML report with one bar and ranking table per explainer,
// the coloured plan graph and the evaluation scores. Elements describing the
// same node share a data-node-id attribute; the embedded script keeps their
// highlight in sync.
func Render(w io.Writer, analysis *analyzer.Analysis, opts Options) error {
	if analysis == nil || analysis.Plan == nil {
		return fmt.Errorf("html render: empty analysis")
	}
	if opts.Title == "" {
		opts.Title = fmt.Sprintf("planlens report: query %d", analysis.Plan.ID)
	}
	data, err := buildTemplateData(analysis, opts)
	if err != nil {
		return err
	}
	tpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("html render: compile template: %w", err)
	}
	if err := tpl.Execute(w, data); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title         string
	IncludeStyles bool
	Summary       summaryView
	Insights      []insightView
	Explainers    []explainerView
	Legend        []legendView
	Graph         graphView
	Evaluations   evaluationTable
}

type summaryView struct {
	QueryID    int
	SQL        string
	NodeCount  int
	EdgeCount  int
	Runtime    string
	Prediction string
}

type insightView struct {
	Icon     string
	Severity string
	Text     string
	Anchor   string
	NodeID   int
	HasNode  bool
}

type explainerView struct {
	Label         string
	Pending       bool
	Width         int
	Segments      []segmentView
	Remaining     int
	RemainingX    int
	Rows          []rowView
	Hidden        int
	ExecutionTime string
}

type segmentView struct {
	NodeID    int
	X         int
	Width     int
	Color     string
	Label     string
	ShowLabel bool
	Title     string
	Selected  bool
}

type rowView struct {
	Rank     int
	NodeID   int
	Label    string
	Type     string
	Score    string
	Cost     string
	Selected bool
}

type legendView struct {
	NodeID   int
	Label    string
	Color    string
	Selected bool
}

type graphView struct {
	Mode       string
	Explainer  string
	Nodes      []graphNodeView
	Edges      []edgeView
	Scale      []swatchView
	Types      []swatchView
	ShowsScale bool
	DOT        string
	HasDOT     bool
}

type graphNodeView struct {
	NodeID   int
	Label    string
	Type     string
	Fill     string
	Score    string
	Anchor   string
	Selected bool
}

type edgeView struct {
	From string
	To   string
}

type swatchView struct {
	Label string
	Color string
}

type evaluationTable struct {
	Metrics []string
	Rows    []evaluationRow
}

type evaluationRow struct {
	Explainer string
	Cells     []evaluationCell
}

type evaluationCell struct {
	Score   string
	Color   string
	Present bool
	Title   string
}

func buildTemplateData(analysis *analyzer.Analysis, opts Options) (templateData, error) {
	data := templateData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Summary:       buildSummary(analysis),
		Graph:         buildGraph(analysis),
		Evaluations:   buildEvaluations(analysis),
	}

	for _, msg := range insight.BuildMessages(analysis) {
		data.Insights = append(data.Insights, insightView{
			Icon:     severityIcon(msg.Severity),
			Severity: string(msg.Severity),
			Text:     msg.Text,
			Anchor:   msg.Anchor,
			NodeID:   msg.NodeID,
			HasNode:  msg.HasNode,
		})
	}

	for _, view := range analysis.Explainers {
		data.Explainers = append(data.Explainers, buildExplainer(analysis, view))
	}

	for _, entry := range analysis.Legend {
		data.Legend = append(data.Legend, legendView{
			NodeID:   entry.NodeID,
			Label:    insight.CompactLabel(analysis, entry.NodeID),
			Color:    entry.Color,
			Selected: isSelected(analysis, entry.NodeID),
		})
	}

	if opts.IncludeDOT {
		dot, err := graphview.DOT(analysis.Plan, analysis.Graph)
		if err != nil {
			return templateData{}, fmt.Errorf("html render: %w", err)
		}
		data.Graph.DOT = dot
		data.Graph.HasDOT = true
	}
	return data, nil
}

func buildSummary(analysis *analyzer.Analysis) summaryView {
	plan := analysis.Plan
	summary := summaryView{
		QueryID:   plan.ID,
		SQL:       insight.NormalizeWhitespace(plan.SQL),
		NodeCount: len(plan.Nodes),
		EdgeCount: len(plan.Edges),
	}
	if plan.Runtime > 0 {
		summary.Runtime = fmt.Sprintf("%.2f ms", plan.Runtime)
	}
	if p := analysis.Prediction; p != nil {
		summary.Prediction = fmt.Sprintf("%.2f ms (q-error %.2f)", p.Prediction, p.QError)
	}
	return summary
}

func buildExplainer(analysis *analyzer.Analysis, view analyzer.ExplainerView) explainerView {
	out := explainerView{
		Label:   view.Label,
		Pending: view.Pending,
		Width:   analysis.Width,
	}
	if view.ExecutionTime > 0 {
		out.ExecutionTime = fmt.Sprintf("%.2f s", view.ExecutionTime)
	}
	if view.Pending {
		return out
	}

	for _, seg := range view.Bar.Segments {
		label := insight.CompactLabel(analysis, seg.NodeID)
		out.Segments = append(out.Segments, segmentView{
			NodeID:    seg.NodeID,
			X:         seg.X,
			Width:     seg.Width,
			Color:     seg.Color,
			Label:     label,
			ShowLabel: seg.ShowsLabel(analysis.LabelMinWidth),
			Title:     fmt.Sprintf("%s: %.3f", label, seg.Score),
			Selected:  isSelected(analysis, seg.NodeID),
		})
	}
	out.RemainingX = view.Bar.Used()
	out.Remaining = view.Bar.Remaining()

	for _, row := range view.Rows {
		r := rowView{
			Rank:     row.Rank + 1,
			NodeID:   row.NodeID,
			Label:    insight.NormalizeWhitespace(row.Label),
			Type:     row.NodeTypeDisplay,
			Score:    fmt.Sprintf("%.3f", row.Score),
			Selected: isSelected(analysis, row.NodeID),
		}
		if row.Cost > 0 {
			r.Cost = fmt.Sprintf("%.2f ms", row.Cost)
		}
		out.Rows = append(out.Rows, r)
	}
	if hidden := view.TotalRows - len(view.Rows); hidden > 0 {
		out.Hidden = hidden
	}
	return out
}

func buildGraph(analysis *analyzer.Analysis) graphView {
	g := graphView{
		Mode:       string(analysis.GraphMode),
		ShowsScale: analysis.GraphMode != graphview.ModeNodeTypes,
	}
	if analysis.GraphExplainer != "" {
		g.Explainer = analysis.GraphExplainer.Display()
	}

	order, err := graphview.TopoOrder(analysis.Plan)
	if err != nil {
		// cyclic descriptions fall back to id order
		order = nil
		for _, node := range analysis.Plan.Nodes {
			order = append(order, node.ID)
		}
	}
	for _, id := range order {
		node, ok := analysis.Plan.Node(id)
		if !ok {
			continue
		}
		view := graphNodeView{
			NodeID: id,
			Label:  insight.NormalizeWhitespace(node.Label),
			Type:   node.Type.Display(),
			Anchor: insight.AnchorID(analysis, id),
		}
		if style, ok := graphview.Find(analysis.Graph, id); ok {
			view.Fill = style.Fill.Hex()
			view.Selected = style.Selected
			if style.HasScore {
				view.Score = fmt.Sprintf("%.3f", style.Score)
			}
		}
		g.Nodes = append(g.Nodes, view)
	}

	for _, e := range analysis.Plan.Edges {
		g.Edges = append(g.Edges, edgeView{
			From: insight.CompactLabel(analysis, e.From),
			To:   insight.CompactLabel(analysis, e.To),
		})
	}
	for _, step := range analysis.ImportanceLegend {
		g.Scale = append(g.Scale, swatchView{Label: step.Label, Color: step.Color.Hex()})
	}
	for _, entry := range analysis.TypeLegend {
		g.Types = append(g.Types, swatchView{Label: entry.Label, Color: entry.Color.Hex()})
	}
	return g
}

func buildEvaluations(analysis *analyzer.Analysis) evaluationTable {
	if len(analysis.Evaluations) == 0 {
		return evaluationTable{}
	}

	var metrics []model.MetricType
	var explainers []model.ExplainerType
	cells := map[model.ExplainerType]map[model.MetricType]analyzer.EvaluationRow{}
	for _, row := range analysis.Evaluations {
		if _, ok := cells[row.Explainer]; !ok {
			cells[row.Explainer] = map[model.MetricType]analyzer.EvaluationRow{}
			explainers = append(explainers, row.Explainer)
		}
		if !containsMetric(metrics, row.Metric) {
			metrics = append(metrics, row.Metric)
		}
		cells[row.Explainer][row.Metric] = row
	}

	table := evaluationTable{}
	for _, m := range metrics {
		table.Metrics = append(table.Metrics, m.Display())
	}
	for _, e := range explainers {
		row := evaluationRow{Explainer: e.Display()}
		for _, m := range metrics {
			result, ok := cells[e][m]
			if !ok {
				row.Cells = append(row.Cells, evaluationCell{})
				continue
			}
			cell := evaluationCell{
				Score:   fmt.Sprintf("%.2f", result.Score),
				Color:   result.Color.Hex(),
				Present: true,
			}
			if result.RelativeChange != 0 {
				cell.Title = fmt.Sprintf("relative change %.2f, outputs equal %t", result.RelativeChange, result.OutputsEqual)
			}
			row.Cells = append(row.Cells, cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func containsMetric(metrics []model.MetricType, m model.MetricType) bool {
	for _, existing := range metrics {
		if existing == m {
			return true
		}
	}
	return false
}

func isSelected(analysis *analyzer.Analysis, nodeID int) bool {
	return analysis.Selected.Selected && analysis.Selected.NodeID == nodeID
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
