package tui

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/bar"
	"github.com/mickamy/planlens/internal/graphview"
	"github.com/mickamy/planlens/internal/insight"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor bool
	// BarWidth is the number of terminal columns a full bar spans.
	BarWidth int
	// MaxDepth truncates the plan tree. Zero prints everything.
	MaxDepth int
}

const (
	defaultBarWidth = 60
	labelWidth      = 28
	fillerGlyph     = "-"
	selectedMarker  = ">"
)

// glyphs stand in for segment colours when colour is disabled.
var glyphs = []string{"#", "=", "*", "+", "%", "@", "&", "$", "~", "o"}

type printer struct {
	w        io.Writer
	analysis *analyzer.Analysis
	opts     Options
	renderer *lipgloss.Renderer
	glyphOf  map[int]string
}

// Render prints the explainer bars, ranking tables, plan tree and evaluations.
func Render(w io.Writer, analysis *analyzer.Analysis, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if analysis == nil || analysis.Plan == nil {
		return errors.New("tui: empty analysis")
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = defaultBarWidth
	}

	p := &printer{
		w:        w,
		analysis: analysis,
		opts:     opts,
		renderer: lipgloss.NewRenderer(w),
		glyphOf:  map[int]string{},
	}
	for i, entry := range analysis.Legend {
		p.glyphOf[entry.NodeID] = glyphs[i%len(glyphs)]
	}

	p.header()
	p.insights()
	for _, view := range analysis.Explainers {
		p.explainer(view)
	}
	p.legend()
	p.tree()
	p.evaluations()
	return nil
}

func (p *printer) styled(style lipgloss.Style, text string) string {
	if !p.opts.EnableColor {
		return text
	}
	return style.Render(text)
}

func (p *printer) bold(text string) string {
	return p.styled(p.renderer.NewStyle().Bold(true), text)
}

func (p *printer) println(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) header() {
	plan := p.analysis.Plan
	parts := []string{
		fmt.Sprintf("Query %d", plan.ID),
		fmt.Sprintf("nodes %d", len(plan.Nodes)),
	}
	if plan.Runtime > 0 {
		parts = append(parts, fmt.Sprintf("runtime %.2f ms", plan.Runtime))
	}
	if pred := p.analysis.Prediction; pred != nil {
		parts = append(parts, fmt.Sprintf("predicted %.2f ms (q-error %.2f)", pred.Prediction, pred.QError))
	}
	p.println("%s", p.bold(strings.Join(parts, " | ")))
	if plan.SQL != "" {
		p.println("%s", insight.NormalizeWhitespace(plan.SQL))
	}
	p.println("")
}

func (p *printer) insights() {
	messages := insight.BuildMessages(p.analysis)
	if len(messages) == 0 {
		return
	}
	p.println("%s", p.bold("Insights:"))
	for _, msg := range messages {
		text := msg.Text
		switch msg.Severity {
		case insight.SeverityCritical:
			text = p.styled(p.renderer.NewStyle().Foreground(lipgloss.Color("#F44747")), text)
		case insight.SeverityWarning:
			text = p.styled(p.renderer.NewStyle().Foreground(lipgloss.Color("#FAAE32")), text)
		}
		p.println("  - %s %s", severityIcon(msg.Severity), text)
	}
	p.println("")
}

func (p *printer) explainer(view analyzer.ExplainerView) {
	title := view.Label
	if view.ExecutionTime > 0 {
		title += fmt.Sprintf(" (computed in %.2f s)", view.ExecutionTime)
	}
	p.println("%s", p.bold(title))
	if view.Pending {
		p.println("  (no explanation yet)")
		p.println("")
		return
	}

	p.println("  [%s]", p.drawBar(view.Bar))

	if len(view.Rows) == 0 {
		p.println("  no node above the importance threshold")
		p.println("")
		return
	}
	p.println("    %-3s %-*s %-18s %10s %12s", "#", labelWidth, "node", "type", "importance", "cost")
	for _, row := range view.Rows {
		marker := " "
		if p.isSelected(row.NodeID) {
			marker = selectedMarker
		}
		cost := ""
		if row.Cost > 0 {
			cost = fmt.Sprintf("%.2f ms", row.Cost)
		}
		label := runewidth.FillRight(truncate(insight.NormalizeWhitespace(row.Label), labelWidth), labelWidth)
		line := fmt.Sprintf("  %s %-3d %s %-18s %10.3f %12s",
			marker, row.Rank+1, label, row.NodeTypeDisplay, row.Score, cost)
		if marker == selectedMarker {
			line = p.bold(line)
		}
		p.println("%s", line)
	}
	if hidden := view.TotalRows - len(view.Rows); hidden > 0 {
		p.println("    ... %d more node(s)", hidden)
	}
	p.println("")
}

// drawBar samples the pixel layout at the centre of every terminal column.
func (p *printer) drawBar(b bar.Bar) string {
	cols := p.opts.BarWidth
	if b.Width <= 0 {
		return strings.Repeat(fillerGlyph, cols)
	}
	colorOf := map[int]string{}
	for _, seg := range b.Segments {
		colorOf[seg.NodeID] = seg.Color
	}

	var sb strings.Builder
	for c := 0; c < cols; c++ {
		x := (2*c + 1) * b.Width / (2 * cols)
		id, ok := b.At(x)
		if !ok {
			sb.WriteString(fillerGlyph)
			continue
		}
		glyph := p.glyphOf[id]
		if glyph == "" {
			glyph = glyphs[0]
		}
		if p.isSelected(id) {
			glyph = "^"
		}
		if p.opts.EnableColor && colorOf[id] != "" {
			glyph = p.renderer.NewStyle().Background(lipgloss.Color(colorOf[id])).Render(" ")
		}
		sb.WriteString(glyph)
	}
	return sb.String()
}

func (p *printer) legend() {
	if len(p.analysis.Legend) == 0 {
		return
	}
	parts := make([]string, 0, len(p.analysis.Legend))
	for _, entry := range p.analysis.Legend {
		swatch := p.glyphOf[entry.NodeID]
		if p.opts.EnableColor {
			swatch = p.renderer.NewStyle().Background(lipgloss.Color(entry.Color)).Render("  ")
		}
		label := insight.CompactLabel(p.analysis, entry.NodeID)
		if p.isSelected(entry.NodeID) {
			label = selectedMarker + label
		}
		parts = append(parts, swatch+" "+label)
	}
	p.println("%s %s", p.bold("Legend:"), strings.Join(parts, "  "))
	p.println("")
}

// tree prints the plan with each node under the node its edge points to.
func (p *printer) tree() {
	plan := p.analysis.Plan
	g := graphview.Build(plan)

	var tops []int
	for _, node := range plan.Nodes {
		if g.From(int64(node.ID)).Len() == 0 {
			tops = append(tops, node.ID)
		}
	}
	children := func(id int) []int {
		var out []int
		it := g.To(int64(id))
		for it.Next() {
			out = append(out, int(it.Node().ID()))
		}
		sort.Ints(out)
		return out
	}

	title := fmt.Sprintf("Plan graph (%s", p.analysis.GraphMode)
	if p.analysis.GraphMode != graphview.ModeNodeTypes && p.analysis.GraphExplainer != "" {
		title += ", " + p.analysis.GraphExplainer.Display()
	}
	p.println("%s", p.bold(title+"):"))

	onPath := map[int]bool{}
	var walk func(id int, prefix string, depth int)
	walk = func(id int, prefix string, depth int) {
		kids := children(id)
		if p.opts.MaxDepth > 0 && depth >= p.opts.MaxDepth {
			if len(kids) > 0 {
				p.println("%s`-- ... (%d more nodes)", prefix, len(kids))
			}
			return
		}
		for i, child := range kids {
			connector, next := "|-- ", prefix+"|   "
			if i == len(kids)-1 {
				connector, next = "`-- ", prefix+"    "
			}
			p.println("%s%s%s", prefix, connector, p.nodeLine(child))
			if onPath[child] {
				continue
			}
			onPath[child] = true
			walk(child, next, depth+1)
			onPath[child] = false
		}
	}
	for _, id := range tops {
		p.println("%s", p.nodeLine(id))
		onPath[id] = true
		walk(id, "", 1)
		onPath[id] = false
	}
	p.println("")
}

func (p *printer) nodeLine(id int) string {
	node, _ := p.analysis.Plan.Node(id)
	line := fmt.Sprintf("%s (%s)", insight.NormalizeWhitespace(p.analysis.NodeLabel(id)), node.Type.Display())
	if style, ok := graphview.Find(p.analysis.Graph, id); ok {
		if style.HasScore {
			line += fmt.Sprintf(" [%.3f]", style.Score)
		}
		if p.opts.EnableColor {
			line = p.renderer.NewStyle().Foreground(lipgloss.Color("#202124")).Background(lipgloss.Color(style.Fill.Hex())).Render(line)
		}
		if style.Selected {
			line = selectedMarker + " " + line
		}
	}
	return line
}

func (p *printer) evaluations() {
	rows := p.analysis.Evaluations
	if len(rows) == 0 {
		p.println("%s (no evaluation results yet)", p.bold("Evaluation:"))
		return
	}
	p.println("%s", p.bold("Evaluation:"))
	for _, row := range rows {
		value := fmt.Sprintf("%.2f", row.Score)
		if p.opts.EnableColor {
			value = p.renderer.NewStyle().Foreground(lipgloss.Color(row.Color.Hex())).Render(value)
		}
		p.println("  %-24s %-16s %s", row.Explainer.Display(), row.Metric.Display(), value)
	}
}

func (p *printer) isSelected(id int) bool {
	return p.analysis.Selected.Selected && p.analysis.Selected.NodeID == id
}

// truncate cuts s to width terminal cells, marking the cut with "...".
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
