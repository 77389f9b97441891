// Package palette hands out stable per-node colours for one colour session.
package palette

import (
	"github.com/rs/zerolog"
)

// Default is the ordered bar palette used by the dashboard.
var Default = []string{
	"#B34962", "#5EC353", "#9957CA", "#9CB835", "#5B6FD9", "#409538",
	"#D561C5", "#69882B", "#D5448E", "#5DC08A", "#D33B55", "#40C0BC",
	"#C64221", "#48A8D7", "#DE882F", "#6D8ED3", "#CBAA3E", "#6C60A6",
	"#A1B56D", "#9F4D8F", "#408147", "#CF90D0", "#626A2A", "#E2828C",
	"#308266", "#E56E4F", "#944C68", "#977D33", "#9D5930", "#DC9A6C",
}

// Assignment pairs a node with the colour it received.
type Assignment struct {
	NodeID int    `json:"node_id" yaml:"node_id"`
	Color  string `json:"color" yaml:"color"`
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithLogger sets the logger used to report palette exhaustion.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Assigner) {
		a.logger = logger
	}
}

// Assigner is an append-only node id to colour mapping.
// It is not safe for concurrent use.
type Assigner struct {
	palette  []string
	assigned map[int]string
	order    []int
	warned   bool
	logger   zerolog.Logger
}

// NewAssigner returns an assigner drawing from palette, or Default when palette is empty.
func NewAssigner(palette []string, opts ...Option) *Assigner {
	if len(palette) == 0 {
		palette = Default
	}
	a := &Assigner{
		palette:  append([]string(nil), palette...),
		assigned: make(map[int]string),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ColorFor returns the node's colour, assigning the next free one on first use.
// Once the palette is exhausted new nodes get no colour.
func (a *Assigner) ColorFor(nodeID int) (string, bool) {
	if color, ok := a.assigned[nodeID]; ok {
		return color, true
	}
	if len(a.order) >= len(a.palette) {
		if !a.warned {
			a.warned = true
			a.logger.Warn().
				Int("palette_size", len(a.palette)).
				Int("node_id", nodeID).
				Msg("palette exhausted; further nodes stay uncoloured")
		}
		return "", false
	}
	color := a.palette[len(a.order)]
	a.assigned[nodeID] = color
	a.order = append(a.order, nodeID)
	return color, true
}

// Peek returns the node's colour without assigning one.
func (a *Assigner) Peek(nodeID int) (string, bool) {
	color, ok := a.assigned[nodeID]
	return color, ok
}

// Assignments lists handed-out colours in assignment order.
func (a *Assigner) Assignments() []Assignment {
	out := make([]Assignment, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, Assignment{NodeID: id, Color: a.assigned[id]})
	}
	return out
}

// Len is the number of assigned colours.
func (a *Assigner) Len() int {
	return len(a.order)
}

// Size is the palette size.
func (a *Assigner) Size() int {
	return len(a.palette)
}

// Exhausted reports whether every palette entry has been handed out.
func (a *Assigner) Exhausted() bool {
	return len(a.order) >= len(a.palette)
}

// Reset clears all assignments. Call it when the active query changes.
func (a *Assigner) Reset() {
	a.assigned = make(map[int]string)
	a.order = nil
	a.warned = false
}
