// Package score turns a raw node score map into a ranked display sequence.
package score

import (
	"math"
	"sort"

	"github.com/mickamy/planlens/internal/model"
)

// DefaultMinThreshold drops near-zero contributions so bars and tables stay readable.
const DefaultMinThreshold = 0.01

// RankedEntry is a score entry with its position in the descending order.
type RankedEntry struct {
	NodeID int     `json:"node_id" yaml:"node_id"`
	Score  float64 `json:"score" yaml:"score"`
	Rank   int     `json:"rank" yaml:"rank"`
}

// Normalize filters entries below minThreshold and ranks the rest by descending score.
// Equal scores are ordered by node id, so the result does not depend on input order.
func Normalize(scores model.ScoreMap, minThreshold float64) []RankedEntry {
	if len(scores) == 0 {
		return nil
	}

	out := make([]RankedEntry, 0, len(scores))
	for _, entry := range scores {
		if math.IsNaN(entry.Score) || entry.Score < minThreshold {
			continue
		}
		out = append(out, RankedEntry{NodeID: entry.NodeID, Score: entry.Score})
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	for i := range out {
		out[i].Rank = i
	}
	return out
}

// Lookup indexes ranked entries by node id.
func Lookup(ranked []RankedEntry) map[int]RankedEntry {
	out := make(map[int]RankedEntry, len(ranked))
	for _, entry := range ranked {
		out[entry.NodeID] = entry
	}
	return out
}

// Total sums the scores of the ranked entries.
func Total(ranked []RankedEntry) float64 {
	var total float64
	for _, entry := range ranked {
		total += entry.Score
	}
	return total
}
