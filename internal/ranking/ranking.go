// Package ranking joins ranked scores with plan nodes into table rows.
package ranking

import (
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
)

// DefaultTop is the row count of the collapsed explanation card.
const DefaultTop = 5

// Limit caps the number of rows. Use Top or All.
type Limit int

// All keeps every row.
const All Limit = -1

// Top keeps at most n rows. Negative n means All.
func Top(n int) Limit {
	if n < 0 {
		return All
	}
	return Limit(n)
}

// IsAll reports whether the limit keeps every row.
func (l Limit) IsAll() bool {
	return l < 0
}

// Row is one line of the ranking table.
type Row struct {
	NodeID          int            `json:"node_id" yaml:"node_id"`
	Rank            int            `json:"rank" yaml:"rank"`
	Label           string         `json:"label" yaml:"label"`
	NodeType        model.NodeType `json:"node_type" yaml:"node_type"`
	NodeTypeDisplay string         `json:"node_type_display" yaml:"node_type_display"`
	Score           float64        `json:"score" yaml:"score"`
	Cost            float64        `json:"cost,omitempty" yaml:"cost,omitempty"`
}

// BuildRows joins ranked entries to nodes in rank order and applies limit.
// Entries without a plan node are skipped and their ids returned as missing.
func BuildRows(ranked []score.RankedEntry, nodes []model.PlanNode, limit Limit) ([]Row, []int) {
	index := make(map[int]model.PlanNode, len(nodes))
	for _, node := range nodes {
		index[node.ID] = node
	}

	var (
		rows    []Row
		missing []int
	)
	for _, entry := range ranked {
		node, ok := index[entry.NodeID]
		if !ok {
			missing = append(missing, entry.NodeID)
			continue
		}
		if !limit.IsAll() && len(rows) >= int(limit) {
			continue
		}
		rows = append(rows, Row{
			NodeID:          entry.NodeID,
			Rank:            entry.Rank,
			Label:           node.Label,
			NodeType:        node.Type,
			NodeTypeDisplay: node.Type.Display(),
			Score:           entry.Score,
		})
	}
	return rows, missing
}

// WithCost attributes fullCost to rows by score.
func WithCost(rows []Row, fullCost float64) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		row.Cost = fullCost * row.Score
		out[i] = row
	}
	return out
}

// Find returns the row for nodeID.
func Find(rows []Row, nodeID int) (Row, bool) {
	for _, row := range rows {
		if row.NodeID == nodeID {
			return row, true
		}
	}
	return Row{}, false
}
