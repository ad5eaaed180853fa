package display

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// GlyphMetrics is a deterministic text measurer: every rune advances a fixed
// fraction of the font size, scaled by its terminal cell width so East-Asian
// double-width glyphs take twice the advance. Line height is a fixed fraction
// above the font size. Fractions are kept as integer ratios to avoid float
// drift between measurements.
type GlyphMetrics struct {
	AdvanceNum    int // advance per cell = size * AdvanceNum / AdvanceDen
	AdvanceDen    int
	LineHeightNum int // line height = size * LineHeightNum / LineHeightDen
	LineHeightDen int
}

// DefaultMetrics approximates a bold sans-serif: 0.6em advance, 1.3 line
// height.
func DefaultMetrics() GlyphMetrics {
	return GlyphMetrics{
		AdvanceNum:    3,
		AdvanceDen:    5,
		LineHeightNum: 13,
		LineHeightDen: 10,
	}
}

func (g GlyphMetrics) cellAdvance(sizePx int) int {
	adv := (sizePx*g.AdvanceNum + g.AdvanceDen - 1) / g.AdvanceDen
	if adv < 1 {
		adv = 1
	}
	return adv
}

func (g GlyphMetrics) lineHeight(sizePx int) int {
	lh := (sizePx*g.LineHeightNum + g.LineHeightDen - 1) / g.LineHeightDen
	if lh < 1 {
		lh = 1
	}
	return lh
}

func (g GlyphMetrics) stringWidth(s string, sizePx int) int {
	adv := g.cellAdvance(sizePx)
	width := 0
	for _, r := range s {
		width += adv * runewidth.RuneWidth(r)
	}
	return width
}

// Measure wraps the text greedily on spaces at wrapWidth and returns the
// bounding width and height in pixels. A word wider than wrapWidth sits on
// its own line and overflows; empty text still occupies one line box.
func (g GlyphMetrics) Measure(text string, sizePx, wrapWidth int) (int, int) {
	spaceW := g.cellAdvance(sizePx)
	lineH := g.lineHeight(sizePx)

	maxWidth := 0
	lines := 0
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines++
			continue
		}
		current := 0
		for _, word := range words {
			w := g.stringWidth(word, sizePx)
			switch {
			case current == 0:
				current = w
			case current+spaceW+w <= wrapWidth:
				current += spaceW + w
			default:
				if current > maxWidth {
					maxWidth = current
				}
				lines++
				current = w
			}
		}
		if current > maxWidth {
			maxWidth = current
		}
		lines++
	}
	if lines == 0 {
		lines = 1
	}
	return maxWidth, lines * lineH
}
