package store

import (
	"bytes"
	"fmt"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/parser"
)

// Kind names the document types kept by the stores.
type Kind string

const (
	KindPlan        Kind = "plan"
	KindExplanation Kind = "explanation"
	KindPrediction  Kind = "prediction"
	KindEvaluations Kind = "evaluations"
)

// DecodePlan parses a stored plan document.
func DecodePlan(raw []byte) (*model.Plan, error) {
	plan, err := parser.ParsePlan(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("store: decode plan: %w", err)
	}
	return plan, nil
}

// DecodeExplanation parses a stored explanation document. Documents that
// omit their query or explainer inherit the key they were stored under.
func DecodeExplanation(raw []byte, queryID int, explainer model.ExplainerType) (*model.Explanation, error) {
	explanation, err := parser.ParseExplanation(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("store: decode explanation: %w", err)
	}
	if explanation.QueryID == 0 {
		explanation.QueryID = queryID
	}
	if explanation.Explainer == "" {
		explanation.Explainer = explainer
	}
	return explanation, nil
}

// DecodePrediction parses a stored prediction document.
func DecodePrediction(raw []byte) (*model.Prediction, error) {
	prediction, err := parser.ParsePrediction(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("store: decode prediction: %w", err)
	}
	return prediction, nil
}

// DecodeEvaluations parses a stored evaluation document.
func DecodeEvaluations(raw []byte, queryID int) ([]model.EvaluationResult, error) {
	evals, err := parser.ParseEvaluations(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("store: decode evaluations: %w", err)
	}
	for i := range evals {
		if evals[i].QueryID == 0 {
			evals[i].QueryID = queryID
		}
	}
	return evals, nil
}
