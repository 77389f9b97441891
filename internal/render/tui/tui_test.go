package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/palette"
	"github.com/mickamy/planlens/internal/render/tui"
	"github.com/mickamy/planlens/internal/selection"
	"github.com/mickamy/planlens/test"
)

func TestRenderSampleTUI(t *testing.T) {
	analysis := test.LoadSampleDashboard(t)

	var buf bytes.Buffer
	if err := tui.Render(&buf, analysis, tui.Options{BarWidth: 40}); err != nil {
		t.Fatalf("render tui: %v", err)
	}
	output := buf.String()
	for _, want := range []string{
		"Query 42 | nodes 7",
		"Insights:",
		"(no explanation yet)",
		"Aggregate (Plan)",
		"|-- Seq Scan (Plan)",
		"`-- count(*) (Output)",
		"Legend:",
		"Fidelity Plus",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in tui output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\x1b[") {
		t.Fatalf("expected no escape codes with colour disabled")
	}
}

func TestRenderBarProportions(t *testing.T) {
	analysis := test.LoadSampleAnalysis(t)

	var buf bytes.Buffer
	if err := tui.Render(&buf, analysis, tui.Options{BarWidth: 60}); err != nil {
		t.Fatalf("render tui: %v", err)
	}
	// the first bar is Actual: Seq Scan covers 330 of 600 pixels
	var barLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "  [") {
			barLine = strings.TrimSuffix(strings.TrimPrefix(line, "  ["), "]")
			break
		}
	}
	if len(barLine) != 60 {
		t.Fatalf("expected 60 columns, got %q", barLine)
	}
	if got := strings.Count(barLine, "#"); got != 33 {
		t.Fatalf("expected 33 columns for the top node, got %d in %q", got, barLine)
	}
	if !strings.HasSuffix(barLine, "---") {
		t.Fatalf("expected trailing filler, got %q", barLine)
	}
}

func TestRenderMarksSelection(t *testing.T) {
	analysis, err := analyzer.Analyze(test.LoadSampleInput(t), palette.NewAssigner(nil), analyzer.Options{
		Selected: selection.State{NodeID: 3, Selected: true},
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var buf bytes.Buffer
	if err := tui.Render(&buf, analysis, tui.Options{MaxDepth: 1}); err != nil {
		t.Fatalf("render tui: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "  > 2   =") {
		t.Fatalf("expected selected row marker:\n%s", output)
	}
	if !strings.Contains(output, "... (") {
		t.Fatalf("expected truncated tree with MaxDepth:\n%s", output)
	}
}

func TestRenderRejectsEmptyAnalysis(t *testing.T) {
	if err := tui.Render(&bytes.Buffer{}, nil, tui.Options{}); err == nil {
		t.Fatalf("expected error for nil analysis")
	}
	if err := tui.Render(nil, &analyzer.Analysis{}, tui.Options{}); err == nil {
		t.Fatalf("expected error for nil writer")
	}
}
