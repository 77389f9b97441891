// Package bar lays ranked scores out as a segmented bar of fixed pixel width.
package bar

import (
	"math"
	"sort"

	"github.com/mickamy/planlens/internal/score"
)

// DefaultLabelMinWidth is the narrowest segment that still gets a text label.
const DefaultLabelMinWidth = 30

// Segment is one node's slice of the bar.
type Segment struct {
	NodeID int     `json:"node_id" yaml:"node_id"`
	X      int     `json:"x" yaml:"x"`
	Width  int     `json:"width" yaml:"width"`
	Score  float64 `json:"score" yaml:"score"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty"`
}

// End is the first pixel after the segment.
func (s Segment) End() int {
	return s.X + s.Width
}

// ShowsLabel reports whether the segment is wide enough for a label.
func (s Segment) ShowsLabel(minWidth int) bool {
	return s.Width >= minWidth
}

// Bar is a laid out sequence of contiguous segments starting at x=0.
type Bar struct {
	Segments []Segment `json:"segments" yaml:"segments"`
	Width    int       `json:"width" yaml:"width"`
}

// Used is the number of pixels covered by segments.
func (b Bar) Used() int {
	if len(b.Segments) == 0 {
		return 0
	}
	return b.Segments[len(b.Segments)-1].End()
}

// Remaining is the trailing space left for a filler.
func (b Bar) Remaining() int {
	if rest := b.Width - b.Used(); rest > 0 {
		return rest
	}
	return 0
}

// At maps a pointer x-coordinate to the node drawn there.
func (b Bar) At(x int) (int, bool) {
	for _, seg := range b.Segments {
		if x >= seg.X && x < seg.End() {
			return seg.NodeID, true
		}
	}
	return 0, false
}

// Empty reports whether nothing was laid out.
func (b Bar) Empty() bool {
	return len(b.Segments) == 0
}

// OrderFunc yields the left-to-right sort key of a node. Lower keys come first.
type OrderFunc func(nodeID int) float64

// ByRank keeps the ranked order.
func ByRank(entries []score.RankedEntry) OrderFunc {
	ranks := make(map[int]int, len(entries))
	for _, entry := range entries {
		ranks[entry.NodeID] = entry.Rank
	}
	return func(nodeID int) float64 {
		if rank, ok := ranks[nodeID]; ok {
			return float64(rank)
		}
		return math.Inf(1)
	}
}

// ByPosition orders nodes by their index in ids. Unlisted nodes go last.
func ByPosition(ids []int) OrderFunc {
	pos := make(map[int]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}
	return func(nodeID int) float64 {
		if p, ok := pos[nodeID]; ok {
			return float64(p)
		}
		return math.Inf(1)
	}
}

// ColorSource hands out segment colours. palette.Assigner implements it.
type ColorSource interface {
	ColorFor(nodeID int) (string, bool)
}

// Layout packs entries into a bar of pixelWidth pixels.
//
// Entries are reordered by order (nil keeps rank order) and each gets
// round(pixelWidth*score) pixels. Packing stops when the bar is full or when
// colors has no colour for the next node. The last segment is cut so it never
// runs past pixelWidth. A nil colors leaves segments uncoloured without limit.
func Layout(entries []score.RankedEntry, pixelWidth int, order OrderFunc, colors ColorSource) Bar {
	out := Bar{Width: max(pixelWidth, 0)}
	if len(entries) == 0 || pixelWidth <= 0 {
		return out
	}

	sorted := append([]score.RankedEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})
	if order != nil {
		sort.SliceStable(sorted, func(i, j int) bool {
			return order(sorted[i].NodeID) < order(sorted[j].NodeID)
		})
	}

	x := 0
	for _, entry := range sorted {
		if x >= pixelWidth {
			break
		}
		width := int(math.Round(float64(pixelWidth) * entry.Score))
		if width <= 0 {
			continue
		}
		var color string
		if colors != nil {
			c, ok := colors.ColorFor(entry.NodeID)
			if !ok {
				break
			}
			color = c
		}
		if x+width > pixelWidth {
			width = pixelWidth - x
		}
		out.Segments = append(out.Segments, Segment{
			NodeID: entry.NodeID,
			X:      x,
			Width:  width,
			Score:  entry.Score,
			Color:  color,
		})
		x += width
	}
	return out
}

// UnionOrder lists every node id across explanations. Nodes are grouped by the
// first explanation that contains them and ordered by score within it.
func UnionOrder(explanations [][]score.RankedEntry) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, ranked := range explanations {
		for _, entry := range ranked {
			if _, ok := seen[entry.NodeID]; ok {
				continue
			}
			seen[entry.NodeID] = struct{}{}
			out = append(out, entry.NodeID)
		}
	}
	return out
}

// Stack lays out one bar per explanation. All bars share the union order and
// draw from the same colour source, so a node has one colour across bars.
// Colours are taken as segments are drawn; a node that is never drawn takes none.
func Stack(explanations [][]score.RankedEntry, pixelWidth int, colors ColorSource) []Bar {
	order := ByPosition(UnionOrder(explanations))
	out := make([]Bar, 0, len(explanations))
	for _, ranked := range explanations {
		out = append(out, Layout(ranked, pixelWidth, order, colors))
	}
	return out
}
