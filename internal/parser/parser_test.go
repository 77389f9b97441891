package parser_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/parser"
	"github.com/mickamy/planlens/test"
)

func openSample(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join(test.RootPath(t), "samples", name))
	if err != nil {
		t.Fatalf("open sample: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestParsePlanSample(t *testing.T) {
	plan, err := parser.ParsePlan(openSample(t, "plan.json"))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}

	if plan.ID != 42 {
		t.Fatalf("expected plan id 42, got %d", plan.ID)
	}
	if len(plan.Nodes) != 7 {
		t.Fatalf("expected 7 nodes, got %d", len(plan.Nodes))
	}
	if len(plan.Edges) != 6 {
		t.Fatalf("expected 6 edges from dot graph, got %d", len(plan.Edges))
	}
	if plan.Runtime != 1532.4 {
		t.Fatalf("expected plan runtime, got %v", plan.Runtime)
	}
	if _, ok := plan.Extra["queryStats"]; !ok {
		t.Fatalf("expected queryStats to be kept in extra")
	}

	scan, ok := plan.Node(1)
	if !ok {
		t.Fatalf("expected node 1")
	}
	if scan.Type != model.NodeTypePlan {
		t.Fatalf("expected plan node type, got %q", scan.Type)
	}
	if _, ok := scan.Attributes["actTime"]; !ok {
		t.Fatalf("expected planParameters to be flattened, got %v", scan.Attributes)
	}
	if _, ok := scan.Attributes["nodeType"]; ok {
		t.Fatalf("nodeType should not be duplicated into attributes")
	}

	col, _ := plan.Node(6)
	if col.Attributes["attname"] != "kind_id" {
		t.Fatalf("expected columnStats to be flattened, got %v", col.Attributes)
	}
	if _, ok := col.Attributes["comment"]; ok {
		t.Fatalf("expected null attributes to be dropped")
	}
	out, _ := plan.Node(2)
	if _, ok := out.Attributes["columns"]; ok {
		t.Fatalf("expected empty list attributes to be dropped")
	}
}

func TestParsePlanDuplicateNode(t *testing.T) {
	doc := `{"id": 1, "graphNodes": [{"nodeId": 3, "label": "a"}, {"nodeId": 3, "label": "b"}]}`
	if _, err := parser.ParsePlan(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected duplicate node error")
	}
}

func TestParsePlanExplicitEdges(t *testing.T) {
	doc := `{"id": 1, "dotGraph": "0 -> 1", "graphNodes": [{"nodeId": 0}, {"nodeId": 1}, {"nodeId": 2}],
		"edges": [{"from": 2, "to": 1}]}`
	plan, err := parser.ParsePlan(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	if len(plan.Edges) != 1 || plan.Edges[0] != (model.Edge{From: 2, To: 1}) {
		t.Fatalf("expected explicit edges to win, got %v", plan.Edges)
	}
}

func TestParsePlanRejectsGarbage(t *testing.T) {
	if _, err := parser.ParsePlan(strings.NewReader(`[1, 2]`)); err == nil {
		t.Fatalf("expected error for non-object plan")
	}
	if _, err := parser.ParsePlan(strings.NewReader(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseExplanationFormats(t *testing.T) {
	cases := []struct {
		file      string
		explainer model.ExplainerType
		count     int
		node      int
		score     float64
	}{
		{"explanation_actual.json", model.ExplainerActual, 5, 1, 0.55},
		{"explanation_gradient.json", model.ExplainerGradient, 4, 4, 0.3},
		{"explanation_guided.json", model.ExplainerGuidedBackpropagation, 3, 3, 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			e, err := parser.ParseExplanation(openSample(t, tc.file))
			if err != nil {
				t.Fatalf("parse explanation: %v", err)
			}
			if e.Explainer != tc.explainer {
				t.Fatalf("expected %s, got %s", tc.explainer, e.Explainer)
			}
			if e.QueryID != 42 {
				t.Fatalf("expected query 42, got %d", e.QueryID)
			}
			if len(e.ScaledImportance) != tc.count {
				t.Fatalf("expected %d scores, got %d", tc.count, len(e.ScaledImportance))
			}
			found := false
			for _, entry := range e.ScaledImportance {
				if entry.NodeID == tc.node {
					found = true
					if entry.Score != tc.score {
						t.Fatalf("expected node %d score %v, got %v", tc.node, tc.score, entry.Score)
					}
				}
			}
			if !found {
				t.Fatalf("node %d not parsed", tc.node)
			}
		})
	}
}

func TestParseExplanationDuplicateScore(t *testing.T) {
	doc := `{"scaledImportance": [{"nodeId": 1, "score": 0.2}, {"nodeId": 1, "score": 0.4}]}`
	if _, err := parser.ParseExplanation(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected duplicate score error")
	}
}

func TestParseExplanationRejectsBadNodeIDs(t *testing.T) {
	for _, doc := range []string{
		`{"scaledImportance": [{"score": 0.7}]}`,
		`{"scaledImportance": [{"nodeId": "x", "score": 0.2}]}`,
		`{"scaledImportance": [{"nodeId": 1.5, "score": 0.2}]}`,
		`{"scaledImportance": [{"score": 0.7}, {"nodeId": "x", "score": 0.2}]}`,
	} {
		_, err := parser.ParseExplanation(strings.NewReader(doc))
		if err == nil {
			t.Fatalf("expected error for %s", doc)
		}
		if strings.Contains(err.Error(), "duplicate") {
			t.Fatalf("expected node id error for %s, got %v", doc, err)
		}
	}

	e, err := parser.ParseExplanation(strings.NewReader(`{"scaledImportance": [{"nodeId": 2.0, "score": 0.2}]}`))
	if err != nil {
		t.Fatalf("parse explanation: %v", err)
	}
	if e.ScaledImportance[0].NodeID != 2 {
		t.Fatalf("expected node 2, got %d", e.ScaledImportance[0].NodeID)
	}
}

func TestParseExplanationNormalizesExplainer(t *testing.T) {
	for name, want := range map[string]model.ExplainerType{
		"gradient":          model.ExplainerGradient,
		"Gradient":          model.ExplainerGradient,
		"GradientExplainer": model.ExplainerGradient,
		"guidedbp":          model.ExplainerGuidedBackpropagation,
		"":                  "",
	} {
		doc := `{"explainerType": "` + name + `", "scaledImportance": [{"nodeId": 1, "score": 0.9}]}`
		e, err := parser.ParseExplanation(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if e.Explainer != want {
			t.Fatalf("expected %q for %q, got %q", want, name, e.Explainer)
		}
	}

	if _, err := parser.ParseExplanation(strings.NewReader(`{"explainerType": "oracle"}`)); err == nil {
		t.Fatalf("expected unknown explainer error")
	}
	if _, err := parser.ParseEvaluations(strings.NewReader(`[{"explainerType": "oracle", "metricType": "pearson"}]`)); err == nil {
		t.Fatalf("expected unknown explainer error in evaluations")
	}
	evals, err := parser.ParseEvaluations(strings.NewReader(`[{"explainerType": "grad", "metricType": "pearson", "score": 0.5}]`))
	if err != nil {
		t.Fatalf("parse evaluations: %v", err)
	}
	if evals[0].Explainer != model.ExplainerGradient {
		t.Fatalf("expected %s, got %s", model.ExplainerGradient, evals[0].Explainer)
	}
}

func TestParseExplanationEmpty(t *testing.T) {
	e, err := parser.ParseExplanation(strings.NewReader(`{"queryId": 3}`))
	if err != nil {
		t.Fatalf("parse explanation: %v", err)
	}
	if len(e.ScaledImportance) != 0 {
		t.Fatalf("expected no scores, got %v", e.ScaledImportance)
	}
}

func TestParsePredictionAndEvaluations(t *testing.T) {
	p, err := parser.ParsePrediction(openSample(t, "prediction.json"))
	if err != nil {
		t.Fatalf("parse prediction: %v", err)
	}
	if p.QError != 1.266 {
		t.Fatalf("expected qerror 1.266, got %v", p.QError)
	}

	evals, err := parser.ParseEvaluations(openSample(t, "evaluations.json"))
	if err != nil {
		t.Fatalf("parse evaluations: %v", err)
	}
	if len(evals) != 4 {
		t.Fatalf("expected 4 evaluations, got %d", len(evals))
	}
	if evals[2].Metric != model.MetricFidelityPlus || !evals[2].OutputsEqual {
		t.Fatalf("unexpected evaluation %+v", evals[2])
	}

	single, err := parser.ParseEvaluations(strings.NewReader(`{"metricType": "spearman", "score": 0.4}`))
	if err != nil {
		t.Fatalf("parse single evaluation: %v", err)
	}
	if len(single) != 1 || single[0].Metric != model.MetricSpearman {
		t.Fatalf("unexpected single evaluation %v", single)
	}
}
