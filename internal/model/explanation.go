package model

import (
	"fmt"
	"strings"
)

// ScoreEntry is one node's importance score.
type ScoreEntry struct {
	NodeID int     `json:"nodeId" yaml:"node_id"`
	Score  float64 `json:"score" yaml:"score"`
}

// ScoreMap is a set of score entries with unique node ids.
type ScoreMap []ScoreEntry

// IDs returns the node ids in input order.
func (m ScoreMap) IDs() []int {
	out := make([]int, 0, len(m))
	for _, entry := range m {
		out = append(out, entry.NodeID)
	}
	return out
}

// ExplainerType names an explainer algorithm hosted by the inference service.
type ExplainerType string

const (
	ExplainerActual                ExplainerType = "BaseExplainer"
	ExplainerGradient              ExplainerType = "GradientExplainer"
	ExplainerGuidedBackpropagation ExplainerType = "GuidedBPExplainer"
	ExplainerGNN                   ExplainerType = "GNNExplainer"
)

// ExplainerTypes lists the explainers in dashboard order.
var ExplainerTypes = []ExplainerType{
	ExplainerActual,
	ExplainerGradient,
	ExplainerGuidedBackpropagation,
	ExplainerGNN,
}

// Display returns the label shown next to an explainer's bar.
func (e ExplainerType) Display() string {
	switch e {
	case ExplainerActual:
		return "Actual"
	case ExplainerGradient:
		return "Gradient"
	case ExplainerGuidedBackpropagation:
		return "Guided Backpropagation"
	case ExplainerGNN:
		return "GNNExplainer"
	default:
		return string(e)
	}
}

// Prediction is the cost model's output for one query.
type Prediction struct {
	Label         float64 `json:"label"`
	Prediction    float64 `json:"prediction"`
	QError        float64 `json:"qerror"`
	ExecutionTime float64 `json:"executionTime"`
}

// Explanation holds the scores one explainer produced for one query.
type Explanation struct {
	QueryID          int
	Explainer        ExplainerType
	ScaledImportance ScoreMap
	ExecutionTime    float64
}

// MetricType names an evaluation metric computed by the backend.
type MetricType string

const (
	MetricFidelityPlus  MetricType = "fidelity_plus"
	MetricFidelityMinus MetricType = "fidelity_minus"
	MetricPearson       MetricType = "pearson"
	MetricSpearman      MetricType = "spearman"
)

// Display returns the column header for a metric.
func (m MetricType) Display() string {
	switch m {
	case MetricFidelityPlus:
		return "Fidelity Plus"
	case MetricFidelityMinus:
		return "Fidelity Minus"
	case MetricPearson:
		return "Pearson"
	case MetricSpearman:
		return "Spearman"
	default:
		return string(m)
	}
}

// EvaluationResult is an opaque quality score for one explainer on one query.
type EvaluationResult struct {
	QueryID        int           `json:"queryId"`
	Explainer      ExplainerType `json:"explainerType"`
	Metric         MetricType    `json:"metricType"`
	Score          float64       `json:"score"`
	RelativeChange float64       `json:"relativeChange,omitempty"`
	OutputsEqual   bool          `json:"outputsEqual,omitempty"`
}

// ParseExplainer resolves an explainer from its type name, display label or
// a short alias (actual, gradient, guided, gnn). Matching ignores case.
func ParseExplainer(s string) (ExplainerType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "actual", "base":
		return ExplainerActual, nil
	case "gradient", "grad":
		return ExplainerGradient, nil
	case "guided", "guidedbp", "guided-backpropagation":
		return ExplainerGuidedBackpropagation, nil
	case "gnn":
		return ExplainerGNN, nil
	}
	for _, e := range ExplainerTypes {
		if name == strings.ToLower(string(e)) || name == strings.ToLower(e.Display()) {
			return e, nil
		}
	}
	return "", fmt.Errorf("model: unknown explainer %q", s)
}
