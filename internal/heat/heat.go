// Package heat maps node types and scores to fill colours.
package heat

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/mickamy/planlens/internal/model"
)

// DefaultBreakpoint splits the white-yellow band from the yellow-red band.
const DefaultBreakpoint = 0.33

// DefaultLegendSteps is the number of swatches in the importance legend.
const DefaultLegendSteps = 10

// RGB is an opaque 8-bit colour.
type RGB struct {
	R, G, B uint8
}

var (
	White = RGB{255, 255, 255}
	Black = RGB{0, 0, 0}
	Red   = RGB{255, 0, 0}
)

// String renders the colour as a CSS rgb() value.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders the colour as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBA converts to an opaque image/color value.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// ParseHex reads #rgb or #rrggbb.
func ParseHex(s string) (RGB, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) == 3 {
		raw = string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	}
	if len(raw) != 6 {
		return RGB{}, fmt.Errorf("heat: invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("heat: invalid hex colour %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

var categorical = map[model.NodeType]RGB{
	model.NodeTypePlan:             {0xF5, 0xF5, 0xF5},
	model.NodeTypeColumn:           {0xD5, 0xE8, 0xD4},
	model.NodeTypeFilterColumn:     {0xD5, 0xE8, 0xD4},
	model.NodeTypeLogicalPredicate: {0xF8, 0xCE, 0xCC},
	model.NodeTypeOutputColumn:     {0xFF, 0xF2, 0xCC},
	model.NodeTypeTable:            {0xDA, 0xE8, 0xFC},
}

// Categorical returns the fixed fill for a node type. Unknown types are white.
func Categorical(t model.NodeType) RGB {
	if c, ok := categorical[t]; ok {
		return c
	}
	return White
}

// Mapper is the continuous heat scale. The zero value uses DefaultBreakpoint.
type Mapper struct {
	Breakpoint float64
}

// Heat maps a score in [0,1] to white, through yellow, to red.
// The score is used directly in both bands, so the ramp jumps at the breakpoint.
func (m Mapper) Heat(score float64) RGB {
	breakpoint := m.Breakpoint
	if breakpoint <= 0 || math.IsNaN(breakpoint) {
		breakpoint = DefaultBreakpoint
	}
	s := clamp(score)
	v := uint8(math.Round(255 - s*255))
	if s < breakpoint {
		return RGB{255, 255, v}
	}
	return RGB{255, v, 0}
}

// Heat uses the default mapper.
func Heat(score float64) RGB {
	return Mapper{}.Heat(score)
}

// GreenRed ramps from green at 0 to red at 1. Used for evaluation scores.
func GreenRed(value float64) RGB {
	v := clamp(value)
	r := math.Min(255, math.Round(v*255))
	g := math.Max(0, math.Round(255-v*255))
	return RGB{uint8(r), uint8(g), 0}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// LegendStep is one swatch of the importance legend.
type LegendStep struct {
	Score float64
	Label string
	Color RGB
}

// ImportanceLegend samples the heat scale at evenly spaced scores from 0 to 1.
func (m Mapper) ImportanceLegend(steps int) []LegendStep {
	if steps < 2 {
		steps = DefaultLegendSteps
	}
	out := make([]LegendStep, 0, steps)
	for i := 0; i < steps; i++ {
		s := float64(i) / float64(steps-1)
		out = append(out, LegendStep{
			Score: s,
			Label: fmt.Sprintf("%.1f", s),
			Color: m.Heat(s),
		})
	}
	return out
}

// ImportanceLegend uses the default mapper.
func ImportanceLegend(steps int) []LegendStep {
	return Mapper{}.ImportanceLegend(steps)
}

// TypeLegendEntry is one swatch of the node type legend.
type TypeLegendEntry struct {
	Type  model.NodeType
	Label string
	Color RGB
}

// NodeTypeLegend lists the categorical fills. Filter columns share the column swatch.
func NodeTypeLegend() []TypeLegendEntry {
	return []TypeLegendEntry{
		{Type: model.NodeTypePlan, Label: "Physical Operator", Color: Categorical(model.NodeTypePlan)},
		{Type: model.NodeTypeColumn, Label: "Column", Color: Categorical(model.NodeTypeColumn)},
		{Type: model.NodeTypeLogicalPredicate, Label: "Logical Predicate", Color: Categorical(model.NodeTypeLogicalPredicate)},
		{Type: model.NodeTypeOutputColumn, Label: "Output Column", Color: Categorical(model.NodeTypeOutputColumn)},
		{Type: model.NodeTypeTable, Label: "Table", Color: Categorical(model.NodeTypeTable)},
	}
}
