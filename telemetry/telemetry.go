package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the dashboard runtime.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with the tick loop.
type Collector interface {
	IncPatchesRendered(count uint64)
	IncPatchesCoalesced(count uint64)
	IncMalformedFrames()
	IncCommandsRejected(reason string)
	SetSessions(count int)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncPatchesRendered(uint64)  {}
func (noopCollector) IncPatchesCoalesced(uint64) {}
func (noopCollector) IncMalformedFrames()        {}
func (noopCollector) IncCommandsRejected(string) {}
func (noopCollector) SetSessions(int)            {}

// PrometheusCollector exposes dashboard counters via Prometheus.
type PrometheusCollector struct {
	patchesRendered  prometheus.Counter
	patchesCoalesced prometheus.Counter
	malformedFrames  prometheus.Counter
	commandsRejected *prometheus.CounterVec
	sessions         prometheus.Gauge
}

var (
	patchesRenderedCounter      prometheus.Counter
	patchesRenderedCounterLock  sync.Mutex
	patchesCoalescedCounter     prometheus.Counter
	patchesCoalescedCounterLock sync.Mutex
	malformedFramesCounter      prometheus.Counter
	malformedFramesCounterLock  sync.Mutex
	commandsRejectedCounter     *prometheus.CounterVec
	commandsRejectedCounterLock sync.Mutex
	sessionsGauge               prometheus.Gauge
	sessionsGaugeLock           sync.Mutex
)

func registerCounter(reg prometheus.Registerer, slot *prometheus.Counter, lock *sync.Mutex, name, help string) error {
	lock.Lock()
	defer lock.Unlock()
	if *slot != nil {
		return nil
	}
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return err
		}
		*slot = existing
		return nil
	}
	*slot = counter
	return nil
}

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	if err := registerCounter(reg, &patchesRenderedCounter, &patchesRenderedCounterLock,
		"microdash_patches_rendered_total",
		"Number of widget patches rendered across all ticks."); err != nil {
		return nil, err
	}
	if err := registerCounter(reg, &patchesCoalescedCounter, &patchesCoalescedCounterLock,
		"microdash_patches_coalesced_total",
		"Number of queued patches replaced by newer patches for the same widget."); err != nil {
		return nil, err
	}
	if err := registerCounter(reg, &malformedFramesCounter, &malformedFramesCounterLock,
		"microdash_malformed_frames_total",
		"Number of inbound command frames dropped because they could not be decoded."); err != nil {
		return nil, err
	}

	commandsRejectedCounterLock.Lock()
	if commandsRejectedCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "microdash_commands_rejected_total",
			Help: "Number of well-formed commands rejected during validation, by reason.",
		}, []string{"reason"})
		if err := reg.Register(counter); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
					commandsRejectedCounter = existing
				} else {
					commandsRejectedCounterLock.Unlock()
					return nil, err
				}
			} else {
				commandsRejectedCounterLock.Unlock()
				return nil, err
			}
		} else {
			commandsRejectedCounter = counter
		}
	}
	commandsRejectedCounterLock.Unlock()

	sessionsGaugeLock.Lock()
	if sessionsGauge == nil {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "microdash_sessions",
			Help: "Number of attached client sessions.",
		})
		if err := reg.Register(gauge); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
					sessionsGauge = existing
				} else {
					sessionsGaugeLock.Unlock()
					return nil, err
				}
			} else {
				sessionsGaugeLock.Unlock()
				return nil, err
			}
		} else {
			sessionsGauge = gauge
		}
	}
	sessionsGaugeLock.Unlock()

	return &PrometheusCollector{
		patchesRendered:  patchesRenderedCounter,
		patchesCoalesced: patchesCoalescedCounter,
		malformedFrames:  malformedFramesCounter,
		commandsRejected: commandsRejectedCounter,
		sessions:         sessionsGauge,
	}, nil
}

// IncPatchesRendered adds rendered patches to the counter.
func (p *PrometheusCollector) IncPatchesRendered(count uint64) {
	if p == nil || p.patchesRendered == nil || count == 0 {
		return
	}
	p.patchesRendered.Add(float64(count))
}

// IncPatchesCoalesced records patches replaced by newer ones before delivery.
func (p *PrometheusCollector) IncPatchesCoalesced(count uint64) {
	if p == nil || p.patchesCoalesced == nil || count == 0 {
		return
	}
	p.patchesCoalesced.Add(float64(count))
}

// IncMalformedFrames counts an inbound frame dropped during decoding.
func (p *PrometheusCollector) IncMalformedFrames() {
	if p == nil || p.malformedFrames == nil {
		return
	}
	p.malformedFrames.Inc()
}

// IncCommandsRejected counts a rejected command by rejection reason.
func (p *PrometheusCollector) IncCommandsRejected(reason string) {
	if p == nil || p.commandsRejected == nil {
		return
	}
	p.commandsRejected.WithLabelValues(reason).Inc()
}

// SetSessions updates the attached session gauge.
func (p *PrometheusCollector) SetSessions(count int) {
	if p == nil || p.sessions == nil {
		return
	}
	p.sessions.Set(float64(count))
}
