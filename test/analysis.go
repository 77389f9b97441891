package test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/palette"
	"github.com/mickamy/planlens/internal/parser"
)

var (
	rootPath string
	once     sync.Once
)

// SampleExplanations are the explanation fixtures in dashboard order.
var SampleExplanations = []string{
	"explanation_actual.json",
	"explanation_gradient.json",
	"explanation_guided.json",
}

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// SamplePath returns the path of a file under samples/.
func SamplePath(t *testing.T, rel string) string {
	t.Helper()
	return filepath.Join(RootPath(t), "samples", rel)
}

func open(t *testing.T, rel string) *os.File {
	t.Helper()
	f, err := os.Open(SamplePath(t, rel))
	if err != nil {
		t.Fatalf("open sample: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// LoadSamplePlan parses a plan fixture.
func LoadSamplePlan(t *testing.T, rel string) *model.Plan {
	t.Helper()
	plan, err := parser.ParsePlan(open(t, rel))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return plan
}

// LoadSampleExplanation parses an explanation fixture.
func LoadSampleExplanation(t *testing.T, rel string) model.Explanation {
	t.Helper()
	e, err := parser.ParseExplanation(open(t, rel))
	if err != nil {
		t.Fatalf("parse explanation: %v", err)
	}
	return *e
}

// LoadSampleInput assembles the plan, every explanation, the prediction and the evaluations.
func LoadSampleInput(t *testing.T) analyzer.Input {
	t.Helper()
	in := analyzer.Input{Plan: LoadSamplePlan(t, "plan.json")}
	for _, rel := range SampleExplanations {
		in.Explanations = append(in.Explanations, LoadSampleExplanation(t, rel))
	}
	prediction, err := parser.ParsePrediction(open(t, "prediction.json"))
	if err != nil {
		t.Fatalf("parse prediction: %v", err)
	}
	in.Prediction = prediction
	evals, err := parser.ParseEvaluations(open(t, "evaluations.json"))
	if err != nil {
		t.Fatalf("parse evaluations: %v", err)
	}
	in.Evaluations = evals
	return in
}

// LoadSampleAnalysis analyzes the full sample input with a fresh palette.
func LoadSampleAnalysis(t *testing.T) *analyzer.Analysis {
	t.Helper()
	analysis, err := analyzer.Analyze(LoadSampleInput(t), palette.NewAssigner(nil), analyzer.Options{})
	if err != nil {
		t.Fatalf("analyze sample: %v", err)
	}
	return analysis
}

// LoadSampleDashboard analyzes the sample input with every dashboard explainer,
// so explainers without a fixture show up as pending.
func LoadSampleDashboard(t *testing.T) *analyzer.Analysis {
	t.Helper()
	in := LoadSampleInput(t)
	in.Explainers = model.ExplainerTypes
	analysis, err := analyzer.Analyze(in, palette.NewAssigner(nil), analyzer.Options{})
	if err != nil {
		t.Fatalf("analyze sample: %v", err)
	}
	return analysis
}
