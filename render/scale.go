package render

import "math"

// AxisScale places "nice looking" tick positions on a chart axis. The
// algorithm follows Glassner's nice-number heuristic: the covered range is
// widened to the nearest round figure and split into at most maxTicks steps
// of 1, 2 or 5 times a power of ten.
type AxisScale struct {
	NiceMin float64
	NiceMax float64
	Spacing float64
}

// NiceScale computes tick placement for the data range [min,max].
func NiceScale(min, max float64, maxTicks int) AxisScale {
	if maxTicks < 2 {
		maxTicks = 2
	}
	vrange := niceNum(max-min, false)
	spacing := niceNum(vrange/float64(maxTicks-1), true)
	return AxisScale{
		NiceMin: math.Floor(min/spacing) * spacing,
		NiceMax: math.Ceil(max/spacing) * spacing,
		Spacing: spacing,
	}
}

// niceNum returns a round figure close to vrange: rounded when doRound is
// set, otherwise the smallest nice number not below vrange.
func niceNum(vrange float64, doRound bool) float64 {
	exponent := math.Floor(math.Log10(vrange))
	fraction := vrange / math.Pow(10, exponent)

	var nice float64
	if doRound {
		switch {
		case fraction < 1.5:
			nice = 1
		case fraction < 3:
			nice = 2
		case fraction < 7:
			nice = 5
		default:
			nice = 10
		}
	} else {
		switch {
		case fraction <= 1:
			nice = 1
		case fraction <= 2:
			nice = 2
		case fraction <= 5:
			nice = 5
		default:
			nice = 10
		}
	}
	return nice * math.Pow(10, exponent)
}

// Ticks enumerates the tick positions from NiceMin to NiceMax inclusive.
func (s AxisScale) Ticks() []float64 {
	if s.Spacing <= 0 {
		return nil
	}
	var out []float64
	// Half a step of tolerance absorbs accumulated float error at the top end.
	for tick := s.NiceMin; tick <= s.NiceMax+s.Spacing/2; tick += s.Spacing {
		out = append(out, tick)
	}
	return out
}
