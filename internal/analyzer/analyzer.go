package analyzer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mickamy/planlens/internal/bar"
	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/heat"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/ranking"
	"github.com/mickamy/planlens/internal/score"
	"github.com/mickamy/planlens/internal/selection"
)

// ErrNoPlan is returned when there is nothing to analyze.
var ErrNoPlan = errors.New("analyze: missing plan")

// DefaultWidth is the bar width in pixels when none is given.
const DefaultWidth = 600

// Input is everything known about the active query.
type Input struct {
	Plan         *model.Plan
	Explanations []model.Explanation
	// Explainers fixes the display order. Explainers without an explanation
	// get a pending view. When empty, Explanations order is used.
	Explainers  []model.ExplainerType
	Prediction  *model.Prediction
	Evaluations []model.EvaluationResult
}

// Options tune the derivation. Zero values fall back to defaults.
type Options struct {
	Logger       zerolog.Logger
	MinThreshold float64
	Width        int
	// Limit caps table rows. Zero means ranking.DefaultTop.
	Limit         ranking.Limit
	LabelMinWidth int
	GraphMode     graphview.Mode
	// GraphExplainer picks the scores painted on the graph. Defaults to the
	// first explainer with data.
	GraphExplainer model.ExplainerType
	Breakpoint     float64
	LegendSteps    int
	Selected       selection.State
}

func (o Options) withDefaults() Options {
	if o.MinThreshold <= 0 {
		o.MinThreshold = score.DefaultMinThreshold
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Limit == 0 {
		o.Limit = ranking.Top(ranking.DefaultTop)
	}
	if o.LabelMinWidth <= 0 {
		o.LabelMinWidth = bar.DefaultLabelMinWidth
	}
	if o.GraphMode == "" {
		o.GraphMode = graphview.ModeNodeImportance
	}
	if o.Breakpoint <= 0 {
		o.Breakpoint = heat.DefaultBreakpoint
	}
	if o.LegendSteps < 2 {
		o.LegendSteps = heat.DefaultLegendSteps
	}
	return o
}

// Analysis is one consistent snapshot of every presentation of a query.
type Analysis struct {
	Plan             *model.Plan
	Explainers       []ExplainerView
	UnionOrder       []int
	Legend           []LegendEntry
	GraphMode        graphview.Mode
	GraphExplainer   model.ExplainerType
	Graph            []graphview.NodeStyle
	ImportanceLegend []heat.LegendStep
	TypeLegend       []heat.TypeLegendEntry
	Prediction       *model.Prediction
	Evaluations      []EvaluationRow
	Missing          []model.MissingReferenceError
	Selected         selection.State
	Width            int
	LabelMinWidth    int
	PaletteExhausted bool
}

// ExplainerView is the bar and table of a single explainer.
type ExplainerView struct {
	Explainer     model.ExplainerType
	Label         string
	Pending       bool
	Ranked        []score.RankedEntry
	Bar           bar.Bar
	Rows          []ranking.Row
	TotalRows     int
	ExecutionTime float64
}

// LegendEntry pairs a coloured node with its label.
type LegendEntry struct {
	NodeID int
	Label  string
	Color  string
}

// EvaluationRow is one evaluation score coloured for display.
type EvaluationRow struct {
	Explainer      model.ExplainerType
	Metric         model.MetricType
	Score          float64
	RelativeChange float64
	OutputsEqual   bool
	Color          heat.RGB
}

// View returns the view for explainer.
func (a *Analysis) View(explainer model.ExplainerType) (*ExplainerView, bool) {
	if a == nil {
		return nil, false
	}
	for i := range a.Explainers {
		if a.Explainers[i].Explainer == explainer {
			return &a.Explainers[i], true
		}
	}
	return nil, false
}

// NodeLabel returns the plan label of nodeID, or a placeholder.
func (a *Analysis) NodeLabel(nodeID int) string {
	if a != nil {
		if node, ok := a.Plan.Node(nodeID); ok && node.Label != "" {
			return node.Label
		}
	}
	return fmt.Sprintf("node %d", nodeID)
}

// Analyze derives every presentation for in. colors is consulted for bar and
// legend colours and may be nil.
func Analyze(in Input, colors bar.ColorSource, opts Options) (*Analysis, error) {
	if in.Plan == nil {
		return nil, ErrNoPlan
	}
	opts = opts.withDefaults()
	logger := opts.Logger

	byExplainer := make(map[model.ExplainerType]model.Explanation, len(in.Explanations))
	order := append([]model.ExplainerType(nil), in.Explainers...)
	for _, e := range in.Explanations {
		if len(in.Explainers) > 0 && !slices.Contains(in.Explainers, e.Explainer) {
			logger.Warn().
				Int("plan_id", in.Plan.ID).
				Str("explainer", string(e.Explainer)).
				Msg("ignoring explanation from unlisted explainer")
			continue
		}
		if _, dup := byExplainer[e.Explainer]; !dup && len(in.Explainers) == 0 {
			order = append(order, e.Explainer)
		}
		byExplainer[e.Explainer] = e
	}

	nodes := in.Plan.NodeIndex()
	analysis := &Analysis{
		Plan:             in.Plan,
		Prediction:       in.Prediction,
		Selected:         opts.Selected,
		Width:            opts.Width,
		LabelMinWidth:    opts.LabelMinWidth,
		GraphMode:        opts.GraphMode,
		ImportanceLegend: heat.Mapper{Breakpoint: opts.Breakpoint}.ImportanceLegend(opts.LegendSteps),
		TypeLegend:       heat.NodeTypeLegend(),
	}

	var rankedAll [][]score.RankedEntry
	for _, explainer := range order {
		view := ExplainerView{Explainer: explainer, Label: explainer.Display()}
		e, ok := byExplainer[explainer]
		if !ok || e.ScaledImportance == nil {
			view.Pending = true
			analysis.Explainers = append(analysis.Explainers, view)
			continue
		}

		known := make(model.ScoreMap, 0, len(e.ScaledImportance))
		for _, entry := range e.ScaledImportance {
			if _, ok := nodes[entry.NodeID]; !ok {
				analysis.Missing = append(analysis.Missing, model.MissingReferenceError{PlanID: in.Plan.ID, NodeID: entry.NodeID})
				logger.Warn().
					Int("plan_id", in.Plan.ID).
					Int("node_id", entry.NodeID).
					Str("explainer", string(explainer)).
					Msg("skipping score for unknown plan node")
				continue
			}
			known = append(known, entry)
		}

		view.Ranked = score.Normalize(known, opts.MinThreshold)
		view.ExecutionTime = e.ExecutionTime
		rows, _ := ranking.BuildRows(view.Ranked, in.Plan.Nodes, ranking.All)
		view.TotalRows = len(rows)
		if !opts.Limit.IsAll() && len(rows) > int(opts.Limit) {
			rows = rows[:opts.Limit]
		}
		if in.Plan.Runtime > 0 {
			rows = ranking.WithCost(rows, in.Plan.Runtime)
		}
		view.Rows = rows
		analysis.Explainers = append(analysis.Explainers, view)
		rankedAll = append(rankedAll, view.Ranked)
	}

	analysis.UnionOrder = bar.UnionOrder(rankedAll)
	bars := bar.Stack(rankedAll, opts.Width, colors)
	next := 0
	for i := range analysis.Explainers {
		if analysis.Explainers[i].Pending {
			analysis.Explainers[i].Bar = bar.Bar{Width: opts.Width}
			continue
		}
		analysis.Explainers[i].Bar = bars[next]
		next++
	}

	if colors != nil {
		drawn := make(map[int]struct{})
		for _, b := range bars {
			for _, seg := range b.Segments {
				drawn[seg.NodeID] = struct{}{}
			}
		}
		for _, id := range analysis.UnionOrder {
			if _, ok := drawn[id]; !ok {
				continue
			}
			color, ok := colors.ColorFor(id)
			if !ok {
				break
			}
			analysis.Legend = append(analysis.Legend, LegendEntry{NodeID: id, Label: analysis.NodeLabel(id), Color: color})
		}
		if ex, ok := colors.(interface{ Exhausted() bool }); ok && ex.Exhausted() {
			for _, id := range analysis.UnionOrder {
				if _, ok := drawn[id]; !ok && visible(rankedAll, id, opts.Width) {
					analysis.PaletteExhausted = true
					break
				}
			}
		}
	}

	analysis.GraphExplainer = opts.GraphExplainer
	var graphRanked []score.RankedEntry
	if view, ok := analysis.View(opts.GraphExplainer); ok && !view.Pending {
		graphRanked = view.Ranked
	} else {
		analysis.GraphExplainer = ""
		for _, view := range analysis.Explainers {
			if !view.Pending {
				analysis.GraphExplainer = view.Explainer
				graphRanked = view.Ranked
				break
			}
		}
	}
	styler := graphview.Styler{Mapper: heat.Mapper{Breakpoint: opts.Breakpoint}}
	analysis.Graph = styler.Styles(in.Plan, graphRanked, opts.GraphMode, opts.Selected)

	analysis.Evaluations = evaluationRows(in.Evaluations, order)
	return analysis, nil
}

func evaluationRows(results []model.EvaluationResult, order []model.ExplainerType) []EvaluationRow {
	if len(results) == 0 {
		return nil
	}
	pos := make(map[model.ExplainerType]int, len(order))
	for i, e := range order {
		pos[e] = i
	}
	metricPos := map[model.MetricType]int{
		model.MetricFidelityPlus:  0,
		model.MetricFidelityMinus: 1,
		model.MetricPearson:       2,
		model.MetricSpearman:      3,
	}
	rank := func(m map[model.ExplainerType]int, e model.ExplainerType) int {
		if p, ok := m[e]; ok {
			return p
		}
		return len(m)
	}

	out := make([]EvaluationRow, 0, len(results))
	for _, r := range results {
		out = append(out, EvaluationRow{
			Explainer:      r.Explainer,
			Metric:         r.Metric,
			Score:          r.Score,
			RelativeChange: r.RelativeChange,
			OutputsEqual:   r.OutputsEqual,
			Color:          heat.GreenRed(r.Score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := rank(pos, out[i].Explainer), rank(pos, out[j].Explainer)
		if pi != pj {
			return pi < pj
		}
		mi, ok := metricPos[out[i].Metric]
		if !ok {
			mi = len(metricPos)
		}
		mj, ok := metricPos[out[j].Metric]
		if !ok {
			mj = len(metricPos)
		}
		return mi < mj
	})
	return out
}

// visible reports whether id is wide enough to draw in any of the bars.
func visible(rankedAll [][]score.RankedEntry, id, width int) bool {
	for _, ranked := range rankedAll {
		for _, entry := range ranked {
			if entry.NodeID == id && math.Round(float64(width)*entry.Score) > 0 {
				return true
			}
		}
	}
	return false
}
