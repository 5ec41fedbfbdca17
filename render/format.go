package render

import (
	"html"

	"github.com/shopspring/decimal"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/values"
)

// placeholderGlyph is shown for bindings that were never written.
const placeholderGlyph = "&#8212;"

const defaultPrecision = 3

// formatNumber renders a float with the configured number of decimal places.
// Going through decimal avoids binary float artifacts like 0.30000000000000004
// in readout text.
func formatNumber(v float64, precision int) string {
	if precision <= 0 {
		precision = defaultPrecision
	}
	d := decimal.NewFromFloat(v).Round(int32(precision))
	return d.String()
}

// displayText renders a value for readout and gauge text, applying enum
// labels, units and HTML escaping. Unset values render as a placeholder.
func displayText(v values.Value, style config.StyleConfig) string {
	if v.IsUnset() {
		return placeholderGlyph
	}
	var body string
	switch v.Kind() {
	case values.KindBool:
		if b, _ := v.AsBool(); b {
			body = "on"
		} else {
			body = "off"
		}
	case values.KindEnum:
		idx, _ := v.AsInt()
		if int(idx) < len(style.EnumLabels) {
			body = style.EnumLabels[idx]
		} else {
			body = v.String()
		}
	case values.KindFloat:
		f, _ := v.AsFloat()
		body = formatNumber(f, style.Precision)
	default:
		body = v.String()
	}
	return html.EscapeString(body) + html.EscapeString(style.Units)
}
