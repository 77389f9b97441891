package diff_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/diff"
	"github.com/mickamy/planlens/internal/model"
	"github.com/mickamy/planlens/internal/score"
	"github.com/mickamy/planlens/test"
)

func TestCompareSamplesAndJSON(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t)

	report, err := diff.CompareExplainers(analysis, model.ExplainerActual, model.ExplainerGradient, diff.Options{})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !report.Summary.SameTopNode {
		t.Fatalf("expected both explainers to rank Seq Scan first")
	}
	if report.Summary.SharedNodes != 2 || report.Summary.TopKOverlap != 2 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if len(report.Risers) != 1 || report.Risers[0].NodeID != 5 {
		t.Fatalf("expected node 5 to rise, got %+v", report.Risers)
	}
	if len(report.Fallers) != 1 || report.Fallers[0].Label != "Seq Scan" {
		t.Fatalf("expected Seq Scan to fall, got %+v", report.Fallers)
	}
	if len(report.OnlyBase) != 2 || len(report.OnlyTarget) != 1 {
		t.Fatalf("unexpected exclusive nodes base=%v target=%v", report.OnlyBase, report.OnlyTarget)
	}
	if report.OnlyTarget[0].BaseRank != -1 {
		t.Fatalf("expected absent base rank to be -1")
	}

	jsonOut, err := report.JSON()
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	if !strings.Contains(string(jsonOut), `"only_target"`) {
		t.Fatalf("expected json payload, got %s", jsonOut)
	}

	yamlOut, err := report.YAML()
	if err != nil {
		t.Fatalf("yaml marshal: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(yamlOut, &decoded); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if decoded["target"] != "Gradient" {
		t.Fatalf("expected target label in yaml, got %v", decoded["target"])
	}

	md := report.Markdown()
	if !strings.Contains(md, "# planlens diff: Actual → Gradient") || !strings.Contains(md, "### Risers") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
}

func TestCompareDisagreement(t *testing.T) {
	base := &analyzer.ExplainerView{Label: "A", Ranked: []score.RankedEntry{{NodeID: 1, Score: 0.6, Rank: 0}, {NodeID: 2, Score: 0.3, Rank: 1}}}
	target := &analyzer.ExplainerView{Label: "B", Ranked: []score.RankedEntry{{NodeID: 2, Score: 0.7, Rank: 0}, {NodeID: 1, Score: 0.2, Rank: 1}}}

	report, err := diff.Compare(base, target, diff.Options{})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if report.Summary.SameTopNode {
		t.Fatalf("expected top node disagreement")
	}
	if len(report.Insights) == 0 || !strings.Contains(report.Insights[0].Message, "disagree") {
		t.Fatalf("expected disagreement insight, got %+v", report.Insights)
	}
	if report.Risers[0].Label != "node 2" || report.Risers[0].RankShift != 1 {
		t.Fatalf("unexpected riser %+v", report.Risers[0])
	}
}

func TestCompareRequiresData(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t)
	if _, err := diff.CompareExplainers(analysis, model.ExplainerActual, model.ExplainerGNN, diff.Options{}); err == nil {
		t.Fatalf("expected error for explainer without data")
	}
	if _, err := diff.Compare(nil, &analyzer.ExplainerView{}, diff.Options{}); err == nil {
		t.Fatalf("expected error for nil base")
	}
}
