// backend/src/parsers/receipt/lines.go
package receipt

import (
	"math"
	"sort"
	"strings"

	"github.com/username/merchantguard/backend/src/models"
)

// minLineTolerance is the smallest vertical distance, in pixels, within which two
// token centers are considered to sit on the same printed line.
const minLineTolerance = 8.0

// Line is a row of tokens read left to right.
type Line struct {
	Text       string
	Tokens     []models.OCRToken
	CenterY    float64
	Confidence float64 // Mean token confidence
}

// Layout is the grouped view of one receipt that strategies work on.
type Layout struct {
	Lines  []Line
	Top    float64
	Bottom float64
}

// Height is the vertical extent covered by recognized text.
func (l Layout) Height() float64 { return l.Bottom - l.Top }

// GroupLines drops empty tokens and groups the rest into top-down lines by the
// vertical proximity of their centers.
func GroupLines(tokens []models.OCRToken) Layout {
	kept := make([]models.OCRToken, 0, len(tokens))
	for _, t := range tokens {
		t.Text = strings.TrimSpace(t.Text)
		if t.Text == "" {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return Layout{}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Box.CenterY() < kept[j].Box.CenterY() })

	tol := lineTolerance(kept)
	layout := Layout{Top: math.Inf(1), Bottom: math.Inf(-1)}

	var current []models.OCRToken
	var sumY float64
	flush := func() {
		if len(current) > 0 {
			layout.Lines = append(layout.Lines, newLine(current, sumY/float64(len(current))))
		}
		current, sumY = nil, 0
	}

	for _, t := range kept {
		cy := t.Box.CenterY()
		if len(current) > 0 && math.Abs(cy-sumY/float64(len(current))) > tol {
			flush()
		}
		current = append(current, t)
		sumY += cy

		layout.Top = math.Min(layout.Top, t.Box.Top)
		layout.Bottom = math.Max(layout.Bottom, t.Box.Bottom)
	}
	flush()

	return layout
}

func newLine(tokens []models.OCRToken, centerY float64) Line {
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Box.Left < tokens[j].Box.Left })

	parts := make([]string, len(tokens))
	var conf float64
	for i, t := range tokens {
		parts[i] = t.Text
		conf += t.Confidence
	}
	return Line{
		Text:       strings.Join(parts, " "),
		Tokens:     tokens,
		CenterY:    centerY,
		Confidence: conf / float64(len(tokens)),
	}
}

// lineTolerance scales with text size: max(8px, half the median token height).
func lineTolerance(tokens []models.OCRToken) float64 {
	heights := make([]float64, len(tokens))
	for i, t := range tokens {
		heights[i] = t.Box.Height()
	}
	sort.Float64s(heights)

	n := len(heights)
	median := heights[n/2]
	if n%2 == 0 {
		median = (heights[n/2-1] + heights[n/2]) / 2
	}
	return math.Max(minLineTolerance, 0.5*median)
}
