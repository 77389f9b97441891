package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/store"
)

type fakeStore struct {
	plan        *model.Plan
	explained   map[model.ExplainerType]model.ScoreMap
	predictErr  error
	evaluations []model.EvaluationResult
	calls       atomic.Int32
}

func (f *fakeStore) Plan(context.Context, int) (*model.Plan, error) {
	f.calls.Add(1)
	if f.plan == nil {
		return nil, store.ErrNotFound
	}
	return f.plan, nil
}

func (f *fakeStore) Explanation(_ context.Context, queryID int, explainer model.ExplainerType) (*model.Explanation, error) {
	f.calls.Add(1)
	scores, ok := f.explained[explainer]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.Explanation{QueryID: queryID, Explainer: explainer, ScaledImportance: scores}, nil
}

func (f *fakeStore) Prediction(context.Context, int) (*model.Prediction, error) {
	f.calls.Add(1)
	if f.predictErr != nil {
		return nil, f.predictErr
	}
	return &model.Prediction{QError: 1.5}, nil
}

func (f *fakeStore) Evaluations(context.Context, int) ([]model.EvaluationResult, error) {
	f.calls.Add(1)
	if f.evaluations == nil {
		return nil, store.ErrNotFound
	}
	return f.evaluations, nil
}

func (f *fakeStore) Close() error { return nil }

func TestLoadKeepsExplainerOrder(t *testing.T) {
	f := &fakeStore{
		plan: &model.Plan{ID: 3},
		explained: map[model.ExplainerType]model.ScoreMap{
			model.ExplainerGNN:    {{NodeID: 1, Score: 0.2}},
			model.ExplainerActual: {{NodeID: 1, Score: 0.9}},
		},
	}

	bundle, err := store.Load(context.Background(), f, 3, nil)
	require.NoError(t, err)
	require.Len(t, bundle.Explanations, 2)
	assert.Equal(t, model.ExplainerActual, bundle.Explanations[0].Explainer)
	assert.Equal(t, model.ExplainerGNN, bundle.Explanations[1].Explainer)
	assert.NotNil(t, bundle.Prediction)
	assert.Nil(t, bundle.Evaluations)
	assert.Equal(t, int32(3+len(model.ExplainerTypes)), f.calls.Load())

	in := bundle.Input(model.ExplainerTypes)
	assert.Same(t, bundle.Plan, in.Plan)
	assert.Len(t, in.Explanations, 2)
}

func TestLoadPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	_, err := store.Load(context.Background(), &fakeStore{plan: &model.Plan{}, predictErr: boom}, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	_, err = store.Load(context.Background(), &fakeStore{}, 1, nil)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = store.Load(context.Background(), nil, 1, nil)
	assert.Error(t, err)
}
