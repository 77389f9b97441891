package score_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
)

func TestNormalizeDropsNoiseAndRanks(t *testing.T) {
	scores := model.ScoreMap{
		{NodeID: 1, Score: 0.5},
		{NodeID: 2, Score: 0.3},
		{NodeID: 3, Score: 0.005},
	}

	got := score.Normalize(scores, score.DefaultMinThreshold)

	assert.Equal(t, []score.RankedEntry{
		{NodeID: 1, Score: 0.5, Rank: 0},
		{NodeID: 2, Score: 0.3, Rank: 1},
	}, got)
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Empty(t, score.Normalize(nil, score.DefaultMinThreshold))
	assert.Empty(t, score.Normalize(model.ScoreMap{}, score.DefaultMinThreshold))
	assert.Empty(t, score.Normalize(model.ScoreMap{{NodeID: 4, Score: 0.001}}, score.DefaultMinThreshold))
}

func TestNormalizeKeepsThresholdValue(t *testing.T) {
	got := score.Normalize(model.ScoreMap{{NodeID: 9, Score: 0.01}}, 0.01)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].NodeID)
}

func TestNormalizeTiesAreStable(t *testing.T) {
	a := model.ScoreMap{{NodeID: 7, Score: 0.2}, {NodeID: 3, Score: 0.2}, {NodeID: 5, Score: 0.4}}
	b := model.ScoreMap{{NodeID: 3, Score: 0.2}, {NodeID: 5, Score: 0.4}, {NodeID: 7, Score: 0.2}}

	got := score.Normalize(a, 0.01)
	assert.Equal(t, got, score.Normalize(b, 0.01))
	assert.Equal(t, []int{5, 3, 7}, []int{got[0].NodeID, got[1].NodeID, got[2].NodeID})
}

func scoreMapGen() *rapid.Generator[model.ScoreMap] {
	return rapid.Custom(func(t *rapid.T) model.ScoreMap {
		ids := rapid.SliceOfDistinct(rapid.IntRange(0, 200), rapid.ID[int]).Draw(t, "ids")
		out := make(model.ScoreMap, 0, len(ids))
		for _, id := range ids {
			out = append(out, model.ScoreEntry{NodeID: id, Score: rapid.Float64Range(0, 1).Draw(t, "score")})
		}
		return out
	})
}

func TestNormalizeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		scores := scoreMapGen().Draw(t, "scores")
		threshold := rapid.Float64Range(0, 0.5).Draw(t, "threshold")

		got := score.Normalize(scores, threshold)
		for i, entry := range got {
			if entry.Score < threshold {
				t.Fatalf("entry %d below threshold: %v < %v", i, entry.Score, threshold)
			}
			if entry.Rank != i {
				t.Fatalf("entry %d has rank %d", i, entry.Rank)
			}
			if i > 0 && got[i-1].Score < entry.Score {
				t.Fatalf("entries %d and %d out of order", i-1, i)
			}
		}

		again := score.Normalize(scores, threshold)
		if len(again) != len(got) {
			t.Fatalf("normalize not idempotent")
		}
		for i := range got {
			if got[i] != again[i] {
				t.Fatalf("normalize not idempotent at %d", i)
			}
		}

		shuffled := rapid.Permutation(scores).Draw(t, "shuffled")
		permuted := score.Normalize(shuffled, threshold)
		for i := range got {
			if got[i] != permuted[i] {
				t.Fatalf("input order changed output at %d", i)
			}
		}
	})
}
