package random

import (
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/microdash/runtime/values"
)

// Channel describes one simulated signal: a bounded random walk feeding a
// binding key. Useful for demos and for exercising dashboards without real
// device inputs.
type Channel struct {
	Key  string
	Min  float64
	Max  float64
	Step float64
}

// Sink receives the generated samples. The dashboard satisfies it.
type Sink interface {
	SetValue(key string, v values.Value) error
}

type channelState struct {
	cfg     Channel
	current float64
}

// Feed drives a set of simulated channels. Step must be called from the
// goroutine that drives the dashboard tick.
type Feed struct {
	rng      *mathrand.Rand
	channels []channelState
	logger   zerolog.Logger
}

// New validates the channels and seeds the generator. A zero seed derives one
// from the clock.
func New(channels []Channel, seed int64, logger zerolog.Logger) (*Feed, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Feed{
		rng:    mathrand.New(mathrand.NewSource(seed)),
		logger: logger.With().Str("component", "feed").Logger(),
	}
	for _, ch := range channels {
		if ch.Key == "" {
			return nil, fmt.Errorf("feed channel needs a key")
		}
		if ch.Max <= ch.Min {
			return nil, fmt.Errorf("feed channel %s: invalid range [%g,%g]", ch.Key, ch.Min, ch.Max)
		}
		step := ch.Step
		if step <= 0 {
			step = (ch.Max - ch.Min) / 20
			ch.Step = step
		}
		f.channels = append(f.channels, channelState{
			cfg:     ch,
			current: ch.Min + (ch.Max-ch.Min)/2,
		})
	}
	return f, nil
}

// Step advances every channel by one random walk increment and writes the
// samples to the sink.
func (f *Feed) Step(sink Sink) {
	for i := range f.channels {
		ch := &f.channels[i]
		delta := (f.rng.Float64()*2 - 1) * ch.cfg.Step
		next := ch.current + delta
		if next < ch.cfg.Min {
			next = ch.cfg.Min
		}
		if next > ch.cfg.Max {
			next = ch.cfg.Max
		}
		ch.current = next
		if err := sink.SetValue(ch.cfg.Key, values.Float(next)); err != nil {
			f.logger.Error().Err(err).Str("key", ch.cfg.Key).Msg("feed write rejected")
		}
	}
}
