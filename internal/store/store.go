package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/model"
)

// ErrNotFound is returned when a store holds no document for the request.
var ErrNotFound = errors.New("store: not found")

// Store reads the documents the backend produces for a query.
// Implementations must be safe for concurrent use.
type Store interface {
	Plan(ctx context.Context, queryID int) (*model.Plan, error)
	Explanation(ctx context.Context, queryID int, explainer model.ExplainerType) (*model.Explanation, error)
	Prediction(ctx context.Context, queryID int) (*model.Prediction, error)
	Evaluations(ctx context.Context, queryID int) ([]model.EvaluationResult, error)
	Close() error
}

// Bundle is everything known about one query.
type Bundle struct {
	QueryID      int
	Plan         *model.Plan
	Explanations []model.Explanation
	Prediction   *model.Prediction
	Evaluations  []model.EvaluationResult
}

// Input converts the bundle into analyzer input.
func (b *Bundle) Input(explainers []model.ExplainerType) analyzer.Input {
	return analyzer.Input{
		Plan:         b.Plan,
		Explanations: b.Explanations,
		Explainers:   explainers,
		Prediction:   b.Prediction,
		Evaluations:  b.Evaluations,
	}
}

// Load fetches the plan and every requested explanation concurrently.
// Only a missing plan is an error; absent explanations, predictions and
// evaluations are left empty so renderers can show placeholders.
func Load(ctx context.Context, s Store, queryID int, explainers []model.ExplainerType) (*Bundle, error) {
	if s == nil {
		return nil, errors.New("store: nil store")
	}
	if len(explainers) == 0 {
		explainers = model.ExplainerTypes
	}

	bundle := &Bundle{QueryID: queryID}
	slots := make([]*model.Explanation, len(explainers))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		plan, err := s.Plan(ctx, queryID)
		if err != nil {
			return fmt.Errorf("store: plan %d: %w", queryID, err)
		}
		bundle.Plan = plan
		return nil
	})
	for i, explainer := range explainers {
		g.Go(func() error {
			explanation, err := s.Explanation(ctx, queryID, explainer)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("store: %s explanation: %w", explainer, err)
			}
			slots[i] = explanation
			return nil
		})
	}
	g.Go(func() error {
		prediction, err := s.Prediction(ctx, queryID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: prediction: %w", err)
		}
		bundle.Prediction = prediction
		return nil
	})
	g.Go(func() error {
		evals, err := s.Evaluations(ctx, queryID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: evaluations: %w", err)
		}
		bundle.Evaluations = evals
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, explanation := range slots {
		if explanation != nil {
			bundle.Explanations = append(bundle.Explanations, *explanation)
		}
	}
	return bundle, nil
}
