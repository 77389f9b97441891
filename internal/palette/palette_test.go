package palette_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mickamy/planlens/internal/palette"
)

func TestColorForIsIdempotent(t *testing.T) {
	a := palette.NewAssigner(nil)

	first, ok := a.ColorFor(42)
	require.True(t, ok)
	again, ok := a.ColorFor(42)
	require.True(t, ok)

	assert.Equal(t, first, again)
	assert.Equal(t, palette.Default[0], first)
	assert.Equal(t, 1, a.Len())
}

func TestPaletteExhaustion(t *testing.T) {
	var logs bytes.Buffer
	a := palette.NewAssigner([]string{"#111111", "#222222"}, palette.WithLogger(zerolog.New(&logs)))

	c1, _ := a.ColorFor(1)
	c2, _ := a.ColorFor(2)
	assert.NotEqual(t, c1, c2)

	c3, ok := a.ColorFor(3)
	assert.False(t, ok)
	assert.Empty(t, c3)
	assert.True(t, a.Exhausted())

	// Already assigned nodes keep their colour.
	again, ok := a.ColorFor(1)
	assert.True(t, ok)
	assert.Equal(t, c1, again)

	_, _ = a.ColorFor(4)
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("palette exhausted")))
}

func TestPeekDoesNotAssign(t *testing.T) {
	a := palette.NewAssigner(nil)
	_, ok := a.Peek(5)
	assert.False(t, ok)
	assert.Equal(t, 0, a.Len())
}

func TestResetStartsNewSession(t *testing.T) {
	a := palette.NewAssigner(nil)
	_, _ = a.ColorFor(10)
	_, _ = a.ColorFor(11)

	a.Reset()

	assert.Equal(t, 0, a.Len())
	color, ok := a.ColorFor(11)
	require.True(t, ok)
	assert.Equal(t, palette.Default[0], color)
	assert.Equal(t, []palette.Assignment{{NodeID: 11, Color: palette.Default[0]}}, a.Assignments())
}

func TestAssignerProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 12).Draw(t, "size")
		colors := make([]string, size)
		for i := range colors {
			colors[i] = string(rune('a' + i))
		}
		a := palette.NewAssigner(colors)
		ids := rapid.SliceOf(rapid.IntRange(0, 40)).Draw(t, "ids")

		seen := map[int]string{}
		owners := map[string]int{}
		for _, id := range ids {
			color, ok := a.ColorFor(id)
			if prev, had := seen[id]; had {
				if !ok || prev != color {
					t.Fatalf("node %d changed colour from %q to %q", id, prev, color)
				}
				continue
			}
			if !ok {
				if len(seen) < size {
					t.Fatalf("node %d refused while palette has room", id)
				}
				continue
			}
			if owner, taken := owners[color]; taken {
				t.Fatalf("colour %q reused for %d and %d", color, owner, id)
			}
			seen[id] = color
			owners[color] = id
		}
	})
}
