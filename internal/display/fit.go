package display

import "sync"

// Font size bounds in pixels. Below the floor, overflow is accepted rather
// than prevented.
const (
	MinFontSize = 10
	MaxFontSize = 150
)

// Measurer reports the rendered bounds of text at a font size, with greedy
// word wrapping applied at wrapWidth. A single token wider than wrapWidth is
// not broken; it widens the reported width past wrapWidth instead.
type Measurer interface {
	Measure(text string, sizePx, wrapWidth int) (width, height int)
}

// FitBox is the recomputed display value: the text, the container it must fit
// in, and the largest font size that keeps it inside.
type FitBox struct {
	Text            string
	ContainerWidth  int
	ContainerHeight int
	FontSizePx      int
}

// Fit returns the largest size in [MinFontSize, MaxFontSize] whose rendered
// bounds fit the container, or MinFontSize when nothing fits. The scan is a
// linear walk down from the ceiling: overflow is monotonic in size, and
// triggers are user-paced, so at most 140 measurements per call is fine.
func Fit(m Measurer, text string, containerWidth, containerHeight int) int {
	size := MaxFontSize
	w, h := m.Measure(text, size, containerWidth)
	for (w > containerWidth || h > containerHeight) && size > MinFontSize {
		size--
		w, h = m.Measure(text, size, containerWidth)
	}
	return size
}

// Engine tracks the current text and container and recomputes the fit box on
// every trigger: text change or container resize. Consumers receive a
// coalesced notification and re-read Current.
type Engine struct {
	measurer Measurer

	mu  sync.Mutex
	box FitBox

	updates chan struct{}
}

func NewEngine(m Measurer, containerWidth, containerHeight int) *Engine {
	e := &Engine{
		measurer: m,
		updates:  make(chan struct{}, 1),
	}
	e.box = FitBox{
		ContainerWidth:  containerWidth,
		ContainerHeight: containerHeight,
		FontSizePx:      Fit(m, "", containerWidth, containerHeight),
	}
	return e
}

// SetText recomputes the fit box for new display text.
func (e *Engine) SetText(text string) FitBox {
	e.mu.Lock()
	if e.box.Text == text {
		box := e.box
		e.mu.Unlock()
		return box
	}
	e.box.Text = text
	e.box.FontSizePx = Fit(e.measurer, text, e.box.ContainerWidth, e.box.ContainerHeight)
	box := e.box
	e.mu.Unlock()
	e.notify()
	return box
}

// Resize recomputes the fit box for new container dimensions. Text unchanged
// still requires recomputation.
func (e *Engine) Resize(containerWidth, containerHeight int) FitBox {
	e.mu.Lock()
	if e.box.ContainerWidth == containerWidth && e.box.ContainerHeight == containerHeight {
		box := e.box
		e.mu.Unlock()
		return box
	}
	e.box.ContainerWidth = containerWidth
	e.box.ContainerHeight = containerHeight
	e.box.FontSizePx = Fit(e.measurer, e.box.Text, containerWidth, containerHeight)
	box := e.box
	e.mu.Unlock()
	e.notify()
	return box
}

// Current returns the latest fit box.
func (e *Engine) Current() FitBox {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.box
}

// Updates signals that the fit box changed since the last read.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
