package html_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/palette"
	"github.com/mickamy/planlens/internal/render/html"
	"github.com/mickamy/planlens/internal/selection"
	"github.com/mickamy/planlens/test"
)

func TestRenderSampleHTML(t *testing.T) {
	analysis := test.LoadSampleDashboard(t)

	var buf bytes.Buffer
	if err := html.Render(&buf, analysis, html.Options{Title: "test", IncludeStyles: true, IncludeDOT: true}); err != nil {
		t.Fatalf("render html: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Insights",
		`data-node-id="1"`,
		"Seq Scan",
		"No explanation yet",
		"Fidelity Plus",
		"digraph plan_42",
		`id="node-1-seq-scan"`,
		"<style>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in html output", want)
		}
	}
	if strings.Contains(out, "ZgotmplZ") {
		t.Fatalf("template rejected a value")
	}
}

func TestRenderMarksSelection(t *testing.T) {
	in := test.LoadSampleInput(t)
	analysis, err := analyzer.Analyze(in, palette.NewAssigner(nil), analyzer.Options{
		Selected: selection.State{NodeID: 5, Selected: true},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, analysis, html.Options{}); err != nil {
		t.Fatalf("render html: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `data-node-id="5" class="selected"`) {
		t.Fatalf("expected selected node 5 in output")
	}
	if strings.Contains(out, `data-node-id="1" class="selected"`) {
		t.Fatalf("node 1 should not be selected")
	}
	if !strings.Contains(out, "planlens report: query 42") {
		t.Fatalf("expected default title")
	}
}

func TestRenderReselectKeepsSelection(t *testing.T) {
	var buf bytes.Buffer
	if err := html.Render(&buf, test.LoadSampleDashboard(t), html.Options{}); err != nil {
		t.Fatalf("render html: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "current === id ? null") {
		t.Fatalf("clicking the selected node must not clear it")
	}
	for _, want := range []string{"current = id;", "ev.key === 'Escape'"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in html script", want)
		}
	}
}

func TestRenderRejectsEmptyAnalysis(t *testing.T) {
	if err := html.Render(&bytes.Buffer{}, nil, html.Options{}); err == nil {
		t.Fatalf("expected error for nil analysis")
	}
}
