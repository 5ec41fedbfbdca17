package random

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/microdash/runtime/values"
)

type mapSink map[string][]float64

func (m mapSink) SetValue(key string, v values.Value) error {
	f, ok := v.AsFloat()
	if !ok {
		return fmt.Errorf("expected float for %s", key)
	}
	m[key] = append(m[key], f)
	return nil
}

func TestFeedStaysInsideRange(t *testing.T) {
	feed, err := New([]Channel{
		{Key: "temp", Min: 10, Max: 30, Step: 50},
	}, 42, zerolog.Nop())
	require.NoError(t, err)

	sink := mapSink{}
	for i := 0; i < 100; i++ {
		feed.Step(sink)
	}
	require.Len(t, sink["temp"], 100)
	for _, v := range sink["temp"] {
		require.GreaterOrEqual(t, v, 10.0)
		require.LessOrEqual(t, v, 30.0)
	}
}

func TestFeedIsDeterministicPerSeed(t *testing.T) {
	run := func() []float64 {
		feed, err := New([]Channel{{Key: "x", Min: 0, Max: 1}}, 7, zerolog.Nop())
		require.NoError(t, err)
		sink := mapSink{}
		for i := 0; i < 10; i++ {
			feed.Step(sink)
		}
		return sink["x"]
	}
	require.Equal(t, run(), run())
}

func TestFeedRejectsBadChannels(t *testing.T) {
	_, err := New([]Channel{{Key: "", Min: 0, Max: 1}}, 1, zerolog.Nop())
	require.Error(t, err)

	_, err = New([]Channel{{Key: "x", Min: 5, Max: 5}}, 1, zerolog.Nop())
	require.Error(t, err)
}
