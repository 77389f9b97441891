// Package svg exports the explainer bars and their legend as a static SVG or PNG image.
package svg

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/heat"
	"github.com/mickamy/planlens/internal/insight"
)

// Format selects the image encoding.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// Options configures the image export.
type Options struct {
	Title     string
	BarHeight int
	// LegendColumns is the number of legend entries per row.
	LegendColumns int
}

const (
	margin        = 16
	labelColumn   = 170
	headerHeight  = 48
	rowGap        = 14
	legendRow     = 20
	scaleHeight   = 44
	swatchSize    = 14
	defaultHeight = 28
	defaultCols   = 4
)

var (
	colorBackdrop = color.RGBA{R: 0xf7, G: 0xf7, B: 0xf8, A: 0xff}
	colorFiller   = color.RGBA{R: 0xec, G: 0xef, B: 0xf3, A: 0xff}
	colorText     = color.RGBA{R: 0x20, G: 0x21, B: 0x24, A: 0xff}
	colorSubtle   = color.RGBA{R: 0x5b, G: 0x70, B: 0x83, A: 0xff}
	colorStroke   = color.RGBA{R: 0x21, G: 0x2a, B: 0x3b, A: 0xff}
)

type layoutBar struct {
	Label    string
	Pending  bool
	Y        int
	Segments []layoutSegment
	FillerX  int
	FillerW  int
}

type layoutSegment struct {
	NodeID   int
	X        int
	Width    int
	Color    color.RGBA
	Label    string
	ShowText bool
	Selected bool
}

type layoutLegend struct {
	X, Y  int
	Color color.RGBA
	Label string
}

type layoutResult struct {
	Width, Height int
	Title         string
	Subtitle      string
	BarX          int
	BarHeight     int
	Bars          []layoutBar
	LegendY       int
	Legend        []layoutLegend
	ScaleY        int
	Scale         []heat.LegendStep
	ScaleStep     int
}

func buildLayout(analysis *analyzer.Analysis, opts Options) layoutResult {
	if opts.BarHeight <= 0 {
		opts.BarHeight = defaultHeight
	}
	if opts.LegendColumns <= 0 {
		opts.LegendColumns = defaultCols
	}
	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("planlens: query %d", analysis.Plan.ID)
	}

	l := layoutResult{
		Width:     2*margin + labelColumn + analysis.Width,
		Title:     title,
		Subtitle:  fmt.Sprintf("nodes: %d  edges: %d  explainers: %d", len(analysis.Plan.Nodes), len(analysis.Plan.Edges), len(analysis.Explainers)),
		BarX:      margin + labelColumn,
		BarHeight: opts.BarHeight,
		Scale:     analysis.ImportanceLegend,
	}

	y := headerHeight
	for _, view := range analysis.Explainers {
		b := layoutBar{Label: view.Label, Pending: view.Pending, Y: y}
		for _, seg := range view.Bar.Segments {
			c, err := heat.ParseHex(seg.Color)
			if err != nil {
				c = heat.White
			}
			label := insight.CompactLabel(analysis, seg.NodeID)
			b.Segments = append(b.Segments, layoutSegment{
				NodeID:   seg.NodeID,
				X:        l.BarX + seg.X,
				Width:    seg.Width,
				Color:    c.RGBA(),
				Label:    truncate(label, seg.Width/7),
				ShowText: seg.ShowsLabel(analysis.LabelMinWidth),
				Selected: analysis.Selected.Selected && analysis.Selected.NodeID == seg.NodeID,
			})
		}
		b.FillerX = l.BarX + view.Bar.Used()
		b.FillerW = analysis.Width - view.Bar.Used()
		if view.Pending {
			b.FillerX, b.FillerW = l.BarX, analysis.Width
		}
		l.Bars = append(l.Bars, b)
		y += opts.BarHeight + rowGap
	}

	l.LegendY = y + 8
	colW := (l.Width - 2*margin) / opts.LegendColumns
	for i, entry := range analysis.Legend {
		c, err := heat.ParseHex(entry.Color)
		if err != nil {
			c = heat.White
		}
		l.Legend = append(l.Legend, layoutLegend{
			X:     margin + (i%opts.LegendColumns)*colW,
			Y:     l.LegendY + (i/opts.LegendColumns)*legendRow,
			Color: c.RGBA(),
			Label: truncate(insight.CompactLabel(analysis, entry.NodeID), colW/7-3),
		})
	}
	rows := (len(analysis.Legend) + opts.LegendColumns - 1) / opts.LegendColumns
	l.ScaleY = l.LegendY + rows*legendRow + 8
	if len(l.Scale) > 0 {
		l.ScaleStep = analysis.Width / len(l.Scale)
	}
	l.Height = l.ScaleY + scaleHeight + margin
	return l
}

// Save writes the image to path, choosing the format from the extension.
func Save(path string, analysis *analyzer.Analysis, opts Options) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Render(&buf, analysis, format, opts); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("svg: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("svg: write %s: %w", path, err)
	}
	return nil
}

// FormatFor infers the image format from a file name.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return FormatSVG, nil
	case ".png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("svg: unsupported image extension %q", filepath.Ext(path))
	}
}

// Render encodes the analysis as format.
func Render(w io.Writer, analysis *analyzer.Analysis, format Format, opts Options) error {
	if analysis == nil || analysis.Plan == nil {
		return fmt.Errorf("svg: empty analysis")
	}
	layout := buildLayout(analysis, opts)
	switch format {
	case FormatSVG, "":
		renderSVG(w, layout)
		return nil
	case FormatPNG:
		return renderPNG(w, layout)
	default:
		return fmt.Errorf("svg: unsupported format %q", format)
	}
}

func renderSVG(w io.Writer, layout layoutResult) {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Text(margin, 24, layout.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(margin, 40, layout.Subtitle, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	for _, b := range layout.Bars {
		mid := b.Y + layout.BarHeight/2 + 4
		canvas.Text(margin, mid, b.Label, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorText)))
		for _, seg := range b.Segments {
			style := fmt.Sprintf("fill:%s", css(seg.Color))
			if seg.Selected {
				style += fmt.Sprintf(";stroke:%s;stroke-width:3", css(colorStroke))
			}
			canvas.Rect(seg.X, b.Y, seg.Width, layout.BarHeight, fmt.Sprintf(`data-node-id="%d"`, seg.NodeID), style)
			if seg.ShowText {
				canvas.Text(seg.X+4, mid, seg.Label, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorText)))
			}
		}
		if b.FillerW > 0 {
			canvas.Rect(b.FillerX, b.Y, b.FillerW, layout.BarHeight, fmt.Sprintf("fill:%s", css(colorFiller)))
		}
		if b.Pending {
			canvas.Text(b.FillerX+8, mid, "no explanation yet", fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-style:italic", css(colorSubtle)))
		}
	}

	for _, entry := range layout.Legend {
		canvas.Roundrect(entry.X, entry.Y, swatchSize, swatchSize, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(entry.Color), css(colorStroke)))
		canvas.Text(entry.X+swatchSize+6, entry.Y+11, entry.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}

	for i, step := range layout.Scale {
		x := layout.BarX + i*layout.ScaleStep
		canvas.Rect(x, layout.ScaleY, layout.ScaleStep, swatchSize, fmt.Sprintf("fill:%s", css(step.Color.RGBA())))
		canvas.Text(x, layout.ScaleY+swatchSize+14, step.Label, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}
	if len(layout.Scale) > 0 {
		canvas.Text(margin, layout.ScaleY+11, "importance", fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}
	canvas.End()
}

func renderPNG(w io.Writer, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Title, margin, 20, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(layout.Subtitle, margin, 38, 0, 0.5)

	for _, b := range layout.Bars {
		mid := float64(b.Y) + float64(layout.BarHeight)/2
		dc.SetColor(colorText)
		dc.DrawStringAnchored(b.Label, margin, mid, 0, 0.5)
		for _, seg := range b.Segments {
			dc.SetColor(seg.Color)
			dc.DrawRectangle(float64(seg.X), float64(b.Y), float64(seg.Width), float64(layout.BarHeight))
			dc.Fill()
			if seg.Selected {
				dc.SetColor(colorStroke)
				dc.SetLineWidth(3)
				dc.DrawRectangle(float64(seg.X)+1.5, float64(b.Y)+1.5, float64(seg.Width)-3, float64(layout.BarHeight)-3)
				dc.Stroke()
			}
			if seg.ShowText {
				dc.SetColor(colorText)
				dc.DrawStringAnchored(seg.Label, float64(seg.X)+4, mid, 0, 0.5)
			}
		}
		if b.FillerW > 0 {
			dc.SetColor(colorFiller)
			dc.DrawRectangle(float64(b.FillerX), float64(b.Y), float64(b.FillerW), float64(layout.BarHeight))
			dc.Fill()
		}
		if b.Pending {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored("no explanation yet", float64(b.FillerX)+8, mid, 0, 0.5)
		}
	}

	for _, entry := range layout.Legend {
		drawLegendRow(dc, float64(entry.X), float64(entry.Y), entry.Color, entry.Label)
	}

	for i, step := range layout.Scale {
		x := float64(layout.BarX + i*layout.ScaleStep)
		dc.SetColor(step.Color.RGBA())
		dc.DrawRectangle(x, float64(layout.ScaleY), float64(layout.ScaleStep), swatchSize)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(step.Label, x, float64(layout.ScaleY+swatchSize+10), 0, 0.5)
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("svg: encode png: %w", err)
	}
	return nil
}

func drawLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y, swatchSize, swatchSize, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, swatchSize, swatchSize, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+swatchSize+6, y+swatchSize/2, 0, 0.5)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
