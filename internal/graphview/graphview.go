// Package graphview computes per-node fills for the plan graph and exports it
// as annotated DOT for an external layout engine.
package graphview

import (
	"fmt"
	"math"
	"strings"

	"github.com/mickamy/planlens/internal/heat"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
	"github.com/mickamy/planlens/internal/selection"
)

// Mode selects how graph nodes are filled.
type Mode string

const (
	ModeNodeTypes      Mode = "nodeTypes"
	ModeNodeImportance Mode = "nodeImportance"
	ModeActualRuntimes Mode = "actualRuntimes"
)

// Modes lists the view modes in toolbar order.
var Modes = []Mode{ModeNodeTypes, ModeActualRuntimes, ModeNodeImportance}

// ParseMode accepts a mode name. An empty string means node types.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeNodeTypes, nil
	}
	for _, m := range Modes {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("graphview: unknown mode %q", s)
}

// RuntimeAttributes are the node attributes read in runtime mode, in lookup order.
var RuntimeAttributes = []string{"actTime", "act_time"}

// NodeStyle is the visual state of one graph node.
type NodeStyle struct {
	NodeID   int      `json:"node_id" yaml:"node_id"`
	Fill     heat.RGB `json:"-" yaml:"-"`
	Score    float64  `json:"score" yaml:"score"`
	HasScore bool     `json:"has_score" yaml:"has_score"`
	Selected bool     `json:"selected" yaml:"selected"`
}

// Styler fills nodes using Mapper for the continuous modes.
type Styler struct {
	Mapper heat.Mapper
}

// Styles uses the default heat scale.
func Styles(plan *model.Plan, ranked []score.RankedEntry, mode Mode, selected selection.State) []NodeStyle {
	return Styler{}.Styles(plan, ranked, mode, selected)
}

// Styles returns one style per plan node in plan order.
func (s Styler) Styles(plan *model.Plan, ranked []score.RankedEntry, mode Mode, selected selection.State) []NodeStyle {
	if plan == nil {
		return nil
	}

	var values map[int]float64
	switch mode {
	case ModeNodeImportance:
		values = make(map[int]float64, len(ranked))
		for _, entry := range ranked {
			values[entry.NodeID] = entry.Score
		}
	case ModeActualRuntimes:
		values = runtimes(plan)
	}

	out := make([]NodeStyle, 0, len(plan.Nodes))
	for _, node := range plan.Nodes {
		style := NodeStyle{
			NodeID:   node.ID,
			Selected: selected.Selected && selected.NodeID == node.ID,
		}
		switch mode {
		case ModeNodeImportance, ModeActualRuntimes:
			v, ok := values[node.ID]
			style.Score, style.HasScore = v, ok
			if ok {
				style.Fill = s.Mapper.Heat(v)
			} else {
				style.Fill = heat.White
			}
		default:
			style.Fill = heat.Categorical(node.Type)
		}
		out = append(out, style)
	}
	return out
}

// runtimes normalises each node's runtime by the plan maximum.
func runtimes(plan *model.Plan) map[int]float64 {
	raw := make(map[int]float64)
	peak := 0.0
	for _, node := range plan.Nodes {
		v, ok := Runtime(node)
		if !ok {
			continue
		}
		raw[node.ID] = v
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		return raw
	}
	for id, v := range raw {
		raw[id] = v / peak
	}
	return raw
}

// Runtime reads the node's actual runtime, either top-level or under planParameters.
func Runtime(node model.PlanNode) (float64, bool) {
	if v, ok := lookup(node.Attributes); ok {
		return v, true
	}
	for _, key := range []string{"planParameters", "plan_parameters"} {
		if params, ok := node.Attributes[key].(map[string]any); ok {
			return lookup(params)
		}
	}
	return 0, false
}

func lookup(attrs map[string]any) (float64, bool) {
	for _, key := range RuntimeAttributes {
		if v, ok := number(attrs[key]); ok {
			return v, true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Find returns the style for nodeID.
func Find(styles []NodeStyle, nodeID int) (NodeStyle, bool) {
	for _, s := range styles {
		if s.NodeID == nodeID {
			return s, true
		}
	}
	return NodeStyle{}, false
}
