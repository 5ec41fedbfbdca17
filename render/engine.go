package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/values"
	"github.com/timzifer/microdash/runtime/widgets"
)

// Patch carries the minimal markup fragment for one changed widget. The
// fragment contains replacement elements addressed by their sub-identifier
// (w{id}-fill, w{id}-needle, ...) so the client swaps them without touching
// the rest of the widget.
type Patch struct {
	Widget   widgets.ID
	Fragment string
}

// Engine renders bootstrap documents and patch fragments. It caches the last
// rendered version per bound key so repeated writes between flushes collapse
// into a single patch reflecting the latest value.
type Engine struct {
	title    string
	model    *widgets.Model
	store    *values.Store
	rendered map[widgets.ID]map[values.Key]uint64
	traces   map[widgets.ID]*Trace
}

// NewEngine creates a render engine over the given model and store.
func NewEngine(title string, model *widgets.Model, store *values.Store) *Engine {
	return &Engine{
		title:    title,
		model:    model,
		store:    store,
		rendered: make(map[widgets.ID]map[values.Key]uint64),
		traces:   make(map[widgets.ID]*Trace),
	}
}

// WidgetDOMID returns the deterministic root identifier of a widget.
func WidgetDOMID(id widgets.ID) string {
	return fmt.Sprintf("w%d", id)
}

func partID(id widgets.ID, part string) string {
	return fmt.Sprintf("w%d-%s", id, part)
}

// Bootstrap produces the self-contained document a newly connected client
// needs: one container per widget in layout order, each showing the current
// store contents or a placeholder glyph.
func (e *Engine) Bootstrap() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<h3>%s</h3>`, html.EscapeString(e.title))
	for _, w := range e.model.All() {
		e.renderContainer(&b, w)
		e.advance(w)
	}
	return b.String()
}

// Patches renders one fragment per dirty widget, in ascending widget order
// for determinism regardless of write order. Widgets without dynamic parts
// (spacers) yield no patch.
func (e *Engine) Patches(dirty []widgets.ID) []Patch {
	var out []Patch
	for _, id := range dirty {
		w := e.model.Get(id)
		if w == nil || w.Kind() == config.WidgetSpacer {
			continue
		}
		frag := e.renderParts(w)
		if frag == "" {
			continue
		}
		out = append(out, Patch{Widget: id, Fragment: frag})
		e.advance(w)
	}
	return out
}

// LastRendered reports the version cache for a widget's bound key.
func (e *Engine) LastRendered(id widgets.ID, key values.Key) uint64 {
	return e.rendered[id][key]
}

func (e *Engine) advance(w *widgets.Widget) {
	cache := e.rendered[w.ID()]
	if cache == nil {
		cache = make(map[values.Key]uint64, len(w.Reads()))
		e.rendered[w.ID()] = cache
	}
	for _, key := range w.Reads() {
		cache[key] = e.store.Version(key)
	}
}

func (e *Engine) renderContainer(b *strings.Builder, w *widgets.Widget) {
	id := w.ID()
	if w.Kind() == config.WidgetSpacer {
		fmt.Fprintf(b, `<div class="break" id=%q></div>`, WidgetDOMID(id))
		return
	}
	fmt.Fprintf(b, `<div class="widget" id=%q>`, WidgetDOMID(id))
	switch w.Kind() {
	case config.WidgetButton:
		e.renderButtonShell(b, w)
	case config.WidgetSlider:
		e.renderSliderShell(b, w)
	default:
		e.renderSVGShell(b, w)
	}
	b.WriteString(`</div>`)
}

func (e *Engine) renderSVGShell(b *strings.Builder, w *widgets.Widget) {
	width, height := widgetSize(w)
	fmt.Fprintf(b, `<svg width="%d" height="%d">`, width, height)
	switch w.Kind() {
	case config.WidgetGauge:
		e.renderGaugeStatic(b, w)
		b.WriteString(e.renderParts(w))
	case config.WidgetToggle:
		b.WriteString(e.renderParts(w))
		e.renderLabel(b, w)
	case config.WidgetReadout:
		e.renderLabel(b, w)
		b.WriteString(e.renderParts(w))
	case config.WidgetChart:
		e.renderChartStatic(b, w)
		b.WriteString(e.renderParts(w))
	}
	b.WriteString(`</svg>`)
}

func (e *Engine) renderLabel(b *strings.Builder, w *widgets.Widget) {
	style := w.Style()
	if style.Label == "" {
		return
	}
	width, height := widgetSize(w)
	f := &fragment{}
	f.staticText(float64(width)/2, float64(height)*0.2, height/5, "middle",
		textColor(style), html.EscapeString(style.Label))
	b.WriteString(f.String())
}

// renderParts emits the dynamic sub-elements of a widget, the same markup in
// bootstrap and patch mode.
func (e *Engine) renderParts(w *widgets.Widget) string {
	switch w.Kind() {
	case config.WidgetGauge:
		return e.gaugeParts(w)
	case config.WidgetSlider:
		return e.sliderParts(w)
	case config.WidgetToggle:
		return e.toggleParts(w)
	case config.WidgetReadout:
		return e.readoutParts(w)
	case config.WidgetChart:
		return e.chartParts(w)
	case config.WidgetButton:
		return e.buttonParts(w)
	default:
		return ""
	}
}

func widgetSize(w *widgets.Widget) (int, int) {
	style := w.Style()
	width, height := style.Width, style.Height
	if width > 0 && height > 0 {
		return width, height
	}
	switch w.Kind() {
	case config.WidgetGauge:
		return 250, 200
	case config.WidgetSlider:
		return 300, 70
	case config.WidgetToggle:
		return 120, 70
	case config.WidgetReadout:
		return 220, 70
	case config.WidgetChart:
		return 400, 300
	default:
		return 120, 40
	}
}

func fillColor(s config.StyleConfig) string {
	if s.FillColor != "" {
		return s.FillColor
	}
	return "#808000"
}

func emptyColor(s config.StyleConfig) string {
	if s.EmptyColor != "" {
		return s.EmptyColor
	}
	return "#303030"
}

func textColor(s config.StyleConfig) string {
	if s.TextColor != "" {
		return s.TextColor
	}
	return "#FFFFFF"
}

func arcAngle(s config.StyleConfig) float64 {
	if s.ArcAngle > 0 {
		return s.ArcAngle
	}
	return 160
}

func (e *Engine) boundValue(w *widgets.Widget) (values.Value, float64) {
	reads := w.Reads()
	if len(reads) == 0 {
		return values.Value{}, 0
	}
	v, _ := e.store.Get(reads[0])
	style := w.Style()
	n, ok := v.Number()
	if !ok {
		n = style.Min
	}
	return v, fraction(n, style.Min, style.Max)
}

// gaugeParts draws the needle meter: an empty arc from the needle to the
// right stop, a filled arc from the left stop to the needle, the needle
// polygon and the value text.
func (e *Engine) gaugeParts(w *widgets.Widget) string {
	style := w.Style()
	width, height := widgetSize(w)
	v, frac := e.boundValue(w)

	cx := float64(width) / 2
	cy := float64(height) * 0.8
	arc := arcAngle(style)
	startAngle := 90 + arc/2
	endAngle := 90 - arc/2
	radius := float64(width) * 0.4
	needleAngle := startAngle - arc*frac
	stroke := height / 8

	f := &fragment{}
	f.printf(`<path id=%q d=%q fill="none" stroke="%s" stroke-width="%d"/>`,
		partID(w.ID(), "empty"), arcPath(cx, cy, radius, endAngle, needleAngle), emptyColor(style), stroke)
	f.printf(`<path id=%q d=%q fill="none" stroke="%s" stroke-width="%d"/>`,
		partID(w.ID(), "fill"), arcPath(cx, cy, radius, needleAngle, startAngle), fillColor(style), stroke)

	tipX, tipY := polarToCartesian(cx, cy, radius*1.3, needleAngle)
	hiX, hiY := polarToCartesian(cx, cy, radius*0.7, needleAngle+5)
	loX, loY := polarToCartesian(cx, cy, radius*0.7, needleAngle-5)
	f.printf(`<polygon id=%q points="%.2f,%.2f %.2f,%.2f %.2f,%.2f" style="stroke:none;fill:%s"/>`,
		partID(w.ID(), "needle"), tipX, tipY, hiX, hiY, loX, loY, textColor(style))

	f.text(partID(w.ID(), "text"), cx, float64(height)*0.9, height/6, "middle",
		textColor(style), displayText(v, style))
	return f.String()
}

// renderGaugeStatic draws the parts that never change: label and scale ends.
func (e *Engine) renderGaugeStatic(b *strings.Builder, w *widgets.Widget) {
	style := w.Style()
	width, height := widgetSize(w)
	cx := float64(width) / 2
	radius := float64(width) * 0.4

	f := &fragment{}
	if style.Label != "" {
		f.staticText(cx, float64(height)*0.14, height/8, "middle", textColor(style), html.EscapeString(style.Label))
	}
	f.staticText(cx-radius, float64(height)*0.94, height/12, "middle", textColor(style), formatNumber(style.Min, style.Precision))
	f.staticText(cx+radius, float64(height)*0.94, height/12, "middle", textColor(style), formatNumber(style.Max, style.Precision))
	b.WriteString(f.String())
}

func (e *Engine) sliderParts(w *widgets.Widget) string {
	style := w.Style()
	width, height := widgetSize(w)
	v, frac := e.boundValue(w)

	trackX := 10.0
	trackW := float64(width) - 20
	barY := float64(height) * 0.45
	barH := float64(height) * 0.2

	f := &fragment{}
	f.printf(`<rect id=%q x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
		partID(w.ID(), "fill"), trackX, barY, trackW*frac, barH, fillColor(style))
	f.text(partID(w.ID(), "text"), float64(width)/2, float64(height)*0.92, height/5, "middle",
		textColor(style), displayText(v, style))
	return f.String()
}

// renderSliderShell wraps the SVG bar with the HTML range input the client
// uses to send commands back.
func (e *Engine) renderSliderShell(b *strings.Builder, w *widgets.Widget) {
	style := w.Style()
	width, height := widgetSize(w)
	fmt.Fprintf(b, `<svg width="%d" height="%d">`, width, height)
	f := &fragment{}
	if style.Label != "" {
		f.staticText(float64(width)/2, float64(height)*0.2, height/5, "middle",
			textColor(style), html.EscapeString(style.Label))
	}
	f.printf(`<rect x="10" y="%.1f" width="%d" height="%.1f" fill="%s"/>`,
		float64(height)*0.45, width-20, float64(height)*0.2, emptyColor(style))
	b.WriteString(f.String())
	b.WriteString(e.sliderParts(w))
	b.WriteString(`</svg>`)
	v, _ := e.boundValue(w)
	current := style.Min
	if n, ok := v.Number(); ok {
		current = n
	}
	fmt.Fprintf(b, `<input id=%q type="range" data-widget="%d" min="%g" max="%g" step="any" value="%g"/>`,
		partID(w.ID(), "input"), w.ID(), style.Min, style.Max, current)
}

func (e *Engine) toggleParts(w *widgets.Widget) string {
	style := w.Style()
	width, height := widgetSize(w)
	v, _ := e.boundValue(w)
	on := false
	if b, ok := v.AsBool(); ok {
		on = b
	} else if n, ok := v.Number(); ok {
		on = n != 0
	}

	trackW := float64(width) * 0.5
	trackH := float64(height) * 0.35
	trackX := (float64(width) - trackW) / 2
	trackY := float64(height) * 0.5
	knobR := trackH * 0.45
	knobX := trackX + knobR + 2
	color := emptyColor(style)
	if on {
		knobX = trackX + trackW - knobR - 2
		color = fillColor(style)
	}

	f := &fragment{}
	f.printf(`<rect id=%q x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%.1f" fill="%s" data-widget="%d" data-state="%t"/>`,
		partID(w.ID(), "track"), trackX, trackY, trackW, trackH, trackH/2, color, w.ID(), on)
	f.printf(`<circle id=%q cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`,
		partID(w.ID(), "knob"), knobX, trackY+trackH/2, knobR, textColor(style))
	return f.String()
}

func (e *Engine) readoutParts(w *widgets.Widget) string {
	style := w.Style()
	width, height := widgetSize(w)
	reads := w.Reads()
	v, _ := e.store.Get(reads[0])
	f := &fragment{}
	f.text(partID(w.ID(), "text"), float64(width)/2, float64(height)*0.7, height/3, "middle",
		textColor(style), displayText(v, style))
	return f.String()
}

func (e *Engine) buttonParts(w *widgets.Widget) string {
	style := w.Style()
	label := style.Label
	if label == "" {
		label = "Go"
	}
	f := &fragment{}
	f.printf(`<span id=%q>%s</span>`, partID(w.ID(), "text"), html.EscapeString(label))
	return f.String()
}

func (e *Engine) renderButtonShell(b *strings.Builder, w *widgets.Widget) {
	fmt.Fprintf(b, `<button class="push" data-widget="%d">`, w.ID())
	b.WriteString(e.buttonParts(w))
	b.WriteString(`</button>`)
}

func (e *Engine) trace(w *widgets.Widget) *Trace {
	t, ok := e.traces[w.ID()]
	if !ok {
		size := w.Style().Samples
		if size <= 0 {
			size = 100
		}
		t = NewTrace(size)
		e.traces[w.ID()] = t
	}
	return t
}

// chartParts appends the current sample to the trace buffer and redraws the
// polyline. Axis geometry stays fixed, so only the trace is patched.
func (e *Engine) chartParts(w *widgets.Widget) string {
	style := w.Style()
	width, height := widgetSize(w)
	t := e.trace(w)

	reads := w.Reads()
	v, version := e.store.Get(reads[0])
	if n, ok := v.Number(); ok && version > e.LastRendered(w.ID(), reads[0]) {
		t.Put(n)
	}

	left := float64(width) * 0.1
	top := float64(height) * 0.1
	plotW := (float64(width) - left) * 0.96
	plotH := float64(height) - top - left

	span := t.Cap() - 1
	if span < 1 {
		span = 1
	}
	var points []string
	t.Each(func(i int, sample float64) {
		x := left + plotW*float64(i)/float64(span)
		y := top + plotH*(1-fraction(sample, style.Min, style.Max))
		points = append(points, fmt.Sprintf("%.1f,%.1f", x, y))
	})

	f := &fragment{}
	f.printf(`<polyline id=%q points=%q fill="none" stroke="%s" stroke-width="2"/>`,
		partID(w.ID(), "trace"), strings.Join(points, " "), fillColor(style))
	return f.String()
}

// renderChartStatic draws the plot frame, grid ticks and labels once at
// bootstrap. Tick positions come from the nice-number axis scaler.
func (e *Engine) renderChartStatic(b *strings.Builder, w *widgets.Widget) {
	style := w.Style()
	width, height := widgetSize(w)

	left := float64(width) * 0.1
	top := float64(height) * 0.1
	plotW := (float64(width) - left) * 0.96
	plotH := float64(height) - top - left

	f := &fragment{}
	f.printf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#181818"/>`, left, top, plotW, plotH)
	if style.Label != "" {
		f.staticText(left+plotW/2, top*0.8, height*7/100, "middle", textColor(style), html.EscapeString(style.Label))
	}

	scale := NiceScale(style.Min, style.Max, 5)
	for _, tick := range scale.Ticks() {
		if tick < style.Min || tick > style.Max {
			continue
		}
		y := top + plotH*(1-fraction(tick, style.Min, style.Max))
		f.line(left, y, left+plotW, y, "#505050", 1)
		f.staticText(left-4, y, height*4/100, "end", textColor(style), formatNumber(tick, style.Precision))
	}
	f.line(left, top, left, top+plotH, "#505050", 1)
	f.line(left, top+plotH, left+plotW, top+plotH, "#505050", 1)
	b.WriteString(f.String())
}
