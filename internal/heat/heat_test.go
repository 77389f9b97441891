package heat_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mickamy/planlens/internal/heat"
	"github.com/mickamy/planlens/internal/model"
)

func TestHeatEndpoints(t *testing.T) {
	assert.Equal(t, "rgb(255, 255, 255)", heat.Heat(0).String())
	assert.Equal(t, "rgb(255, 0, 0)", heat.Heat(1).String())
}

func TestHeatBreakpoint(t *testing.T) {
	assert.Equal(t, heat.RGB{255, 171, 0}, heat.Heat(0.33))
	assert.Equal(t, heat.RGB{255, 255, 171}, heat.Heat(0.3299))
	assert.Equal(t, heat.RGB{255, 128, 0}, heat.Heat(0.5))
}

func TestHeatClampsInput(t *testing.T) {
	assert.Equal(t, heat.White, heat.Heat(-3))
	assert.Equal(t, heat.White, heat.Heat(math.NaN()))
	assert.Equal(t, heat.Red, heat.Heat(7))
}

func TestMapperBreakpoint(t *testing.T) {
	m := heat.Mapper{Breakpoint: 0.6}
	assert.Equal(t, heat.RGB{255, 255, 128}, m.Heat(0.5))
	assert.Equal(t, heat.RGB{255, 102, 0}, m.Heat(0.6))
}

func TestCategorical(t *testing.T) {
	assert.Equal(t, "#f5f5f5", heat.Categorical(model.NodeTypePlan).Hex())
	assert.Equal(t, heat.Categorical(model.NodeTypeColumn), heat.Categorical(model.NodeTypeFilterColumn))
	assert.Equal(t, "#dae8fc", heat.Categorical(model.NodeTypeTable).Hex())
	assert.Equal(t, heat.White, heat.Categorical(model.NodeType("window")))
	for _, nt := range model.NodeTypes {
		assert.NotEqual(t, heat.White, heat.Categorical(nt), nt)
	}
}

func TestGreenRed(t *testing.T) {
	assert.Equal(t, heat.RGB{0, 255, 0}, heat.GreenRed(0))
	assert.Equal(t, heat.RGB{255, 0, 0}, heat.GreenRed(1))
	assert.Equal(t, heat.RGB{255, 0, 0}, heat.GreenRed(2.5))
}

func TestImportanceLegend(t *testing.T) {
	legend := heat.ImportanceLegend(heat.DefaultLegendSteps)
	require.Len(t, legend, 10)
	assert.Equal(t, "0.0", legend[0].Label)
	assert.Equal(t, "1.0", legend[9].Label)
	assert.Equal(t, heat.White, legend[0].Color)
	assert.Equal(t, heat.Red, legend[9].Color)

	assert.Len(t, heat.ImportanceLegend(0), heat.DefaultLegendSteps)
}

func TestNodeTypeLegend(t *testing.T) {
	legend := heat.NodeTypeLegend()
	require.Len(t, legend, 5)
	assert.Equal(t, "Physical Operator", legend[0].Label)
}

func TestParseHex(t *testing.T) {
	c, err := heat.ParseHex("#B34962")
	require.NoError(t, err)
	assert.Equal(t, heat.RGB{0xB3, 0x49, 0x62}, c)

	c, err = heat.ParseHex("fff")
	require.NoError(t, err)
	assert.Equal(t, heat.White, c)

	_, err = heat.ParseHex("#12345")
	assert.Error(t, err)
	_, err = heat.ParseHex("#zzzzzz")
	assert.Error(t, err)
}

func TestHeatIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Float64().Draw(t, "score")
		c := heat.Heat(s)
		if c.R != 255 {
			t.Fatalf("red channel %d for score %v", c.R, s)
		}
		if c.B != 0 && c.G != 255 {
			t.Fatalf("both bands active for score %v: %v", s, c)
		}
	})
}
