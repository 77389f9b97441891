package diff

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
)

// Options configures the diff sensitivity.
type Options struct {
	MinRankShift  int
	MinScoreDelta float64
	MaxItems      int
	TopK          int
	// Labeler names nodes in the report. Defaults to "node <id>".
	Labeler func(nodeID int) string
}

// Report summarises how two explainers rank the same plan differently.
type Report struct {
	Base       string           `json:"base" yaml:"base"`
	Target     string           `json:"target" yaml:"target"`
	Summary    Summary          `json:"summary" yaml:"summary"`
	Risers     []Entry          `json:"risers" yaml:"risers"`
	Fallers    []Entry          `json:"fallers" yaml:"fallers"`
	OnlyBase   []Entry          `json:"only_base" yaml:"only_base"`
	OnlyTarget []Entry          `json:"only_target" yaml:"only_target"`
	Insights   []insightMessage `json:"insights" yaml:"insights"`
	Options    Options          `json:"-" yaml:"-"`
}

// Summary covers overall agreement.
type Summary struct {
	BaseNodes   int     `json:"base_nodes" yaml:"base_nodes"`
	TargetNodes int     `json:"target_nodes" yaml:"target_nodes"`
	SharedNodes int     `json:"shared_nodes" yaml:"shared_nodes"`
	TopK        int     `json:"top_k" yaml:"top_k"`
	TopKOverlap int     `json:"top_k_overlap" yaml:"top_k_overlap"`
	SameTopNode bool    `json:"same_top_node" yaml:"same_top_node"`
	MeanAbsDiff float64 `json:"mean_abs_score_delta" yaml:"mean_abs_score_delta"`
}

// Entry captures one node's position under both explainers. Ranks are -1 when absent.
type Entry struct {
	NodeID      int     `json:"node_id" yaml:"node_id"`
	Label       string  `json:"label" yaml:"label"`
	BaseRank    int     `json:"base_rank" yaml:"base_rank"`
	TargetRank  int     `json:"target_rank" yaml:"target_rank"`
	BaseScore   float64 `json:"base_score" yaml:"base_score"`
	TargetScore float64 `json:"target_score" yaml:"target_score"`
	RankShift   int     `json:"rank_shift" yaml:"rank_shift"`
	ScoreDelta  float64 `json:"score_delta" yaml:"score_delta"`
}

type insightMessage struct {
	Severity string `json:"severity" yaml:"severity"`
	Icon     string `json:"icon" yaml:"icon"`
	Message  string `json:"message" yaml:"message"`
}

// CompareExplainers diffs two explainer views of the same analysis.
func CompareExplainers(analysis *analyzer.Analysis, base, target model.ExplainerType, opts Options) (*Report, error) {
	b, ok := analysis.View(base)
	if !ok || b.Pending {
		return nil, fmt.Errorf("diff: no data for base explainer %s", base)
	}
	t, ok := analysis.View(target)
	if !ok || t.Pending {
		return nil, fmt.Errorf("diff: no data for target explainer %s", target)
	}
	if opts.Labeler == nil {
		opts.Labeler = analysis.NodeLabel
	}
	return Compare(b, t, opts)
}

// Compare builds a rank diff between two explainer views.
func Compare(base, target *analyzer.ExplainerView, opts Options) (*Report, error) {
	if base == nil {
		return nil, fmt.Errorf("diff: base view missing")
	}
	if target == nil {
		return nil, fmt.Errorf("diff: target view missing")
	}

	opts = applyDefaults(opts)

	baseIdx := score.Lookup(base.Ranked)
	targetIdx := score.Lookup(target.Ranked)

	report := &Report{
		Base:   base.Label,
		Target: target.Label,
		Summary: Summary{
			BaseNodes:   len(base.Ranked),
			TargetNodes: len(target.Ranked),
			TopK:        opts.TopK,
		},
		Options: opts,
	}

	var absSum float64
	for _, id := range unionIDs(base.Ranked, target.Ranked) {
		b, inBase := baseIdx[id]
		t, inTarget := targetIdx[id]
		entry := Entry{NodeID: id, Label: opts.Labeler(id), BaseRank: -1, TargetRank: -1}
		if inBase {
			entry.BaseRank, entry.BaseScore = b.Rank, b.Score
		}
		if inTarget {
			entry.TargetRank, entry.TargetScore = t.Rank, t.Score
		}
		entry.ScoreDelta = entry.TargetScore - entry.BaseScore
		absSum += math.Abs(entry.ScoreDelta)

		switch {
		case inBase && inTarget:
			report.Summary.SharedNodes++
			if b.Rank < opts.TopK && t.Rank < opts.TopK {
				report.Summary.TopKOverlap++
			}
			entry.RankShift = b.Rank - t.Rank
			if !passes(entry, opts) {
				continue
			}
			if entry.RankShift > 0 || (entry.RankShift == 0 && entry.ScoreDelta > 0) {
				report.Risers = append(report.Risers, entry)
			} else {
				report.Fallers = append(report.Fallers, entry)
			}
		case inBase:
			report.OnlyBase = append(report.OnlyBase, entry)
		default:
			report.OnlyTarget = append(report.OnlyTarget, entry)
		}
	}
	if n := report.Summary.BaseNodes + report.Summary.TargetNodes - report.Summary.SharedNodes; n > 0 {
		report.Summary.MeanAbsDiff = absSum / float64(n)
	}
	if len(base.Ranked) > 0 && len(target.Ranked) > 0 {
		report.Summary.SameTopNode = base.Ranked[0].NodeID == target.Ranked[0].NodeID
	}

	sort.SliceStable(report.Risers, func(i, j int) bool {
		if report.Risers[i].RankShift != report.Risers[j].RankShift {
			return report.Risers[i].RankShift > report.Risers[j].RankShift
		}
		return report.Risers[i].ScoreDelta > report.Risers[j].ScoreDelta
	})
	sort.SliceStable(report.Fallers, func(i, j int) bool {
		if report.Fallers[i].RankShift != report.Fallers[j].RankShift {
			return report.Fallers[i].RankShift < report.Fallers[j].RankShift
		}
		return report.Fallers[i].ScoreDelta < report.Fallers[j].ScoreDelta
	})

	report.Risers = truncate(report.Risers, opts.MaxItems)
	report.Fallers = truncate(report.Fallers, opts.MaxItems)
	report.OnlyBase = truncate(report.OnlyBase, opts.MaxItems)
	report.OnlyTarget = truncate(report.OnlyTarget, opts.MaxItems)

	report.Insights = synthesizeInsights(report)
	return report, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "# planlens diff: %s → %s\n\n", r.Base, r.Target)
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Nodes: %d → %d (%d shared)\n", r.Summary.BaseNodes, r.Summary.TargetNodes, r.Summary.SharedNodes)
	_, _ = fmt.Fprintf(&b, "- Top-%d overlap: %d\n", r.Summary.TopK, r.Summary.TopKOverlap)
	_, _ = fmt.Fprintf(&b, "- Mean |Δ score|: %.3f\n\n", r.Summary.MeanAbsDiff)

	b.WriteString("### Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- Explainers rank the plan alike\n")
	} else {
		for _, insight := range r.Insights {
			b.WriteString(fmt.Sprintf("- %s %s\n", insight.Icon, insight.Message))
		}
	}

	writeTable(&b, "Risers", r.Risers)
	writeTable(&b, "Fallers", r.Fallers)
	writeTable(&b, "Only in "+r.Base, r.OnlyBase)
	writeTable(&b, "Only in "+r.Target, r.OnlyTarget)
	return b.String()
}

func writeTable(b *strings.Builder, title string, entries []Entry) {
	_, _ = fmt.Fprintf(b, "\n### %s\n", title)
	if len(entries) == 0 {
		b.WriteString("- None above threshold\n")
		return
	}
	b.WriteString("| Node | Base rank | Target rank | Base score | Target score | Δ score |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, entry := range entries {
		_, _ = fmt.Fprintf(b, "| %s | %s | %s | %.3f | %.3f | %+.3f |\n",
			entry.Label,
			formatRank(entry.BaseRank),
			formatRank(entry.TargetRank),
			entry.BaseScore,
			entry.TargetScore,
			entry.ScoreDelta)
	}
}

func formatRank(rank int) string {
	if rank < 0 {
		return "–"
	}
	return fmt.Sprintf("#%d", rank+1)
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

// YAML marshals the diff report into a YAML document.
func (r *Report) YAML() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	return yaml.Marshal(r)
}

func synthesizeInsights(r *Report) []insightMessage {
	var insights []insightMessage
	if !r.Summary.SameTopNode && r.Summary.BaseNodes > 0 && r.Summary.TargetNodes > 0 {
		insights = append(insights, insightMessage{
			Severity: "warning",
			Icon:     "⚠️",
			Message:  fmt.Sprintf("%s and %s disagree on the most important node", r.Base, r.Target),
		})
	}
	maxItems := 3
	for i, entry := range r.Risers {
		if i >= maxItems {
			break
		}
		insights = append(insights, insightMessage{
			Severity: "info",
			Icon:     "⬆",
			Message:  fmt.Sprintf("%s moves up %d place(s) (%+.3f)", entry.Label, entry.RankShift, entry.ScoreDelta),
		})
	}
	for i, entry := range r.Fallers {
		if i >= maxItems {
			break
		}
		insights = append(insights, insightMessage{
			Severity: "info",
			Icon:     "⬇",
			Message:  fmt.Sprintf("%s moves down %d place(s) (%+.3f)", entry.Label, -entry.RankShift, entry.ScoreDelta),
		})
	}
	if n := len(r.OnlyTarget); n > 0 {
		insights = append(insights, insightMessage{
			Severity: "info",
			Icon:     "➕",
			Message:  fmt.Sprintf("%d node(s) only scored by %s", n, r.Target),
		})
	}
	return insights
}

func passes(entry Entry, opts Options) bool {
	shift := entry.RankShift
	if shift < 0 {
		shift = -shift
	}
	return shift >= opts.MinRankShift || math.Abs(entry.ScoreDelta) >= opts.MinScoreDelta
}

func unionIDs(base, target []score.RankedEntry) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, list := range [][]score.RankedEntry{base, target} {
		for _, entry := range list {
			if _, ok := seen[entry.NodeID]; ok {
				continue
			}
			seen[entry.NodeID] = struct{}{}
			out = append(out, entry.NodeID)
		}
	}
	return out
}

func truncate(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func applyDefaults(opts Options) Options {
	cfg := config.Active().Diff
	if opts.MinRankShift <= 0 {
		opts.MinRankShift = cfg.MinRankShift
	}
	if opts.MinScoreDelta <= 0 {
		opts.MinScoreDelta = cfg.MinScoreDelta
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = cfg.MaxItems
	}
	if opts.TopK <= 0 {
		opts.TopK = cfg.TopK
	}
	if opts.Labeler == nil {
		opts.Labeler = func(nodeID int) string { return fmt.Sprintf("node %d", nodeID) }
	}
	return opts
}
