// Package render turns the widget model and current binding values into
// HTML+SVG markup: a full bootstrap document for newly connected clients and
// minimal per-widget patch fragments afterwards.
package render

import (
	"fmt"
	"math"
	"strings"
)

// polarToCartesian converts an arc position from polar to x,y coordinates.
// Angles grow counter-clockwise, matching screen meters where the minimum
// reading sits on the left.
func polarToCartesian(cx, cy, radius, angleDeg float64) (float64, float64) {
	rad := angleDeg * math.Pi / 180.0
	return cx + radius*math.Cos(rad), cy - radius*math.Sin(rad)
}

// arcPath builds an SVG path description for an arc between two angles.
func arcPath(cx, cy, radius, startAngle, endAngle float64) string {
	sx, sy := polarToCartesian(cx, cy, radius, startAngle)
	ex, ey := polarToCartesian(cx, cy, radius, endAngle)
	bigArc := 0
	if endAngle-startAngle >= 180.0 {
		bigArc = 1
	}
	return fmt.Sprintf("M %.3f %.3f A %d %d 0 %d 0 %.3f %.3f",
		sx, sy, int(radius), int(radius), bigArc, ex, ey)
}

// fraction maps a value into [0,1] over the given range. Callers guarantee
// min < max at construction time; the result is clamped so saturated values
// behave like a physical needle pinned at the end of its travel.
func fraction(v, min, max float64) float64 {
	f := (v - min) / (max - min)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

type fragment struct {
	b strings.Builder
}

func (f *fragment) printf(format string, args ...interface{}) {
	fmt.Fprintf(&f.b, format, args...)
}

func (f *fragment) String() string { return f.b.String() }

func (f *fragment) text(id string, x, y float64, size int, anchor, color, content string) {
	f.printf(`<text id=%q x="%.1f" y="%.1f" style="fill:%s;font-size:%dpx;text-anchor:%s">%s</text>`,
		id, x, y, color, size, anchor, content)
}

// staticText draws text that is never patched and therefore needs no id.
func (f *fragment) staticText(x, y float64, size int, anchor, color, content string) {
	f.printf(`<text x="%.1f" y="%.1f" style="fill:%s;font-size:%dpx;text-anchor:%s">%s</text>`,
		x, y, color, size, anchor, content)
}

func (f *fragment) line(x0, y0, x1, y1 float64, color string, width int) {
	f.printf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" style="stroke:%s;stroke-width:%d"/>`,
		x0, y0, x1, y1, color, width)
}
