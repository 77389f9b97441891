package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
)

// Severity expresses the urgency of an insight message.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message represents an observation about a query's explanations.
type Message struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Text     string   `json:"text" yaml:"text"`
	Anchor   string   `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	// NodeID is the node the message is about, when HasNode is set.
	NodeID  int  `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	HasNode bool `json:"-" yaml:"-"`
}

// BuildMessages derives human-readable insight messages for an analysis.
func BuildMessages(analysis *analyzer.Analysis) []Message {
	if analysis == nil {
		return nil
	}
	var out []Message

	out = append(out, topNodeMessages(analysis)...)

	if msg := disagreementMessage(analysis); msg != nil {
		out = append(out, *msg)
	}

	if msg := predictionMessage(analysis); msg != nil {
		out = append(out, *msg)
	}

	out = append(out, evaluationMessages(analysis)...)

	if msg := missingMessage(analysis); msg != nil {
		out = append(out, *msg)
	}

	if analysis.PaletteExhausted {
		out = append(out, Message{
			Severity: SeverityInfo,
			Text:     fmt.Sprintf("Colour palette exhausted: %d of %d nodes drawn", len(analysis.Legend), len(analysis.UnionOrder)),
		})
	}

	return out
}

func topNodeMessages(analysis *analyzer.Analysis) []Message {
	cfg := config.Active().Insights
	var msgs []Message
	for _, view := range analysis.Explainers {
		if view.Pending || len(view.Ranked) == 0 {
			continue
		}
		top := view.Ranked[0]
		share := top.Score
		if total := score.Total(view.Ranked); total > 1 {
			share = top.Score / total
		}
		text := fmt.Sprintf("%s: top node %s (%.1f%% of importance)", view.Label, CompactLabel(analysis, top.NodeID), share*100)
		severity := SeverityInfo
		if cfg.DominantShare > 0 && share >= cfg.DominantShare {
			severity = SeverityWarning
			text += ", dominates the explanation"
		}
		msgs = append(msgs, Message{
			Severity: severity,
			Text:     text,
			Anchor:   AnchorID(analysis, top.NodeID),
			NodeID:   top.NodeID,
			HasNode:  true,
		})
	}
	return msgs
}

func disagreementMessage(analysis *analyzer.Analysis) *Message {
	tops := map[int][]string{}
	var order []int
	for _, view := range analysis.Explainers {
		if view.Pending || len(view.Ranked) == 0 {
			continue
		}
		id := view.Ranked[0].NodeID
		if _, ok := tops[id]; !ok {
			order = append(order, id)
		}
		tops[id] = append(tops[id], view.Label)
	}
	if len(order) < 2 {
		return nil
	}
	parts := make([]string, 0, len(order))
	for _, id := range order {
		parts = append(parts, fmt.Sprintf("%s (%s)", CompactLabel(analysis, id), strings.Join(tops[id], ", ")))
	}
	return &Message{
		Severity: SeverityWarning,
		Text:     "Explainers disagree on the most important node: " + strings.Join(parts, " vs "),
	}
}

func predictionMessage(analysis *analyzer.Analysis) *Message {
	p := analysis.Prediction
	if p == nil || p.QError <= 0 {
		return nil
	}
	cfg := config.Active().Insights
	text := fmt.Sprintf("Cost model predicted %.2f ms for an actual %.2f ms (q-error %.2f)", p.Prediction, p.Label, p.QError)
	severity := SeverityInfo
	switch {
	case p.QError >= cfg.QErrorCritical:
		severity = SeverityCritical
		text += "; explanations describe a poor prediction"
	case p.QError >= cfg.QErrorWarning:
		severity = SeverityWarning
	}
	return &Message{Severity: severity, Text: text}
}

func evaluationMessages(analysis *analyzer.Analysis) []Message {
	cfg := config.Active().Insights
	var msgs []Message
	for _, row := range analysis.Evaluations {
		switch row.Metric {
		case model.MetricFidelityPlus:
			if row.Score < cfg.FidelityWarning {
				msgs = append(msgs, Message{
					Severity: SeverityWarning,
					Text:     fmt.Sprintf("Low fidelity: %s scores %.2f on %s", row.Explainer.Display(), row.Score, row.Metric.Display()),
				})
			}
		case model.MetricPearson, model.MetricSpearman:
			if row.Score < cfg.CorrelationWarning {
				msgs = append(msgs, Message{
					Severity: SeverityWarning,
					Text:     fmt.Sprintf("Weak correlation with actual runtimes: %s %s %.2f", row.Explainer.Display(), row.Metric.Display(), row.Score),
				})
			}
		}
	}
	return msgs
}

func missingMessage(analysis *analyzer.Analysis) *Message {
	if len(analysis.Missing) == 0 {
		return nil
	}
	ids := make([]int, 0, len(analysis.Missing))
	seen := map[int]struct{}{}
	for _, m := range analysis.Missing {
		if _, ok := seen[m.NodeID]; ok {
			continue
		}
		seen[m.NodeID] = struct{}{}
		ids = append(ids, m.NodeID)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return &Message{
		Severity: SeverityWarning,
		Text:     fmt.Sprintf("Skipped %d score(s) for nodes missing from plan %d: %s", len(analysis.Missing), analysis.Plan.ID, strings.Join(parts, ", ")),
	}
}

// CompactLabel shortens long node labels for inline summaries.
func CompactLabel(analysis *analyzer.Analysis, nodeID int) string {
	label := NormalizeWhitespace(analysis.NodeLabel(nodeID))
	if len(label) > 60 {
		return label[:57] + "..."
	}
	return label
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AnchorID returns the HTML anchor of a node.
func AnchorID(analysis *analyzer.Analysis, nodeID int) string {
	label := strings.ToLower(analysis.NodeLabel(nodeID))
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", "(", "", ")", "", ",", "", "*", "", "'", "", "=", "eq")
	label = replacer.Replace(label)
	for strings.Contains(label, "--") {
		label = strings.ReplaceAll(label, "--", "-")
	}
	return fmt.Sprintf("node-%d-%s", nodeID, strings.Trim(label, "-"))
}
