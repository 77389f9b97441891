package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/ranking"
	"github.com/mickamy/planlens/internal/score"
)

var nodes = []model.PlanNode{
	{ID: 1, Label: "Seq Scan", Type: model.NodeTypePlan},
	{ID: 2, Label: "title.id", Type: model.NodeTypeColumn},
	{ID: 3, Label: "title", Type: model.NodeTypeTable},
}

func TestBuildRowsTopOne(t *testing.T) {
	ranked := score.Normalize(model.ScoreMap{
		{NodeID: 1, Score: 0.5},
		{NodeID: 2, Score: 0.3},
		{NodeID: 3, Score: 0.005},
	}, score.DefaultMinThreshold)

	rows, missing := ranking.BuildRows(ranked, nodes, ranking.Top(1))

	assert.Empty(t, missing)
	assert.Equal(t, []ranking.Row{{
		NodeID:          1,
		Rank:            0,
		Label:           "Seq Scan",
		NodeType:        model.NodeTypePlan,
		NodeTypeDisplay: "Plan",
		Score:           0.5,
	}}, rows)
}

func TestBuildRowsSkipsMissing(t *testing.T) {
	ranked := []score.RankedEntry{
		{NodeID: 9, Score: 0.7, Rank: 0},
		{NodeID: 2, Score: 0.2, Rank: 1},
		{NodeID: 8, Score: 0.1, Rank: 2},
	}

	rows, missing := ranking.BuildRows(ranked, nodes, ranking.All)

	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].NodeID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "Column", rows[0].NodeTypeDisplay)
	assert.Equal(t, []int{9, 8}, missing)
}

func TestBuildRowsLimitAppliesAfterSkipping(t *testing.T) {
	ranked := []score.RankedEntry{
		{NodeID: 9, Score: 0.7, Rank: 0},
		{NodeID: 1, Score: 0.2, Rank: 1},
		{NodeID: 3, Score: 0.1, Rank: 2},
		{NodeID: 2, Score: 0.05, Rank: 3},
	}

	rows, missing := ranking.BuildRows(ranked, nodes, ranking.Top(2))

	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].NodeID)
	assert.Equal(t, 3, rows[1].NodeID)
	assert.Equal(t, []int{9}, missing)
}

func TestBuildRowsEmpty(t *testing.T) {
	rows, missing := ranking.BuildRows(nil, nodes, ranking.Top(ranking.DefaultTop))
	assert.Empty(t, rows)
	assert.Empty(t, missing)

	rows, _ = ranking.BuildRows([]score.RankedEntry{{NodeID: 1, Score: 1}}, nodes, ranking.Top(0))
	assert.Empty(t, rows)
}

func TestTopNegativeIsAll(t *testing.T) {
	assert.True(t, ranking.Top(-4).IsAll())
	assert.False(t, ranking.Top(3).IsAll())
}

func TestWithCost(t *testing.T) {
	rows := []ranking.Row{{NodeID: 1, Score: 0.5}, {NodeID: 2, Score: 0.25}}

	got := ranking.WithCost(rows, 400)

	assert.InDelta(t, 200, got[0].Cost, 1e-9)
	assert.InDelta(t, 100, got[1].Cost, 1e-9)
	assert.Zero(t, rows[0].Cost, "input rows are not modified")

	row, ok := ranking.Find(got, 2)
	assert.True(t, ok)
	assert.Equal(t, 2, row.NodeID)
}
