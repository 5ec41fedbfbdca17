package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/logic"
	"github.com/timzifer/microdash/render"
	"github.com/timzifer/microdash/runtime/sessions"
	"github.com/timzifer/microdash/runtime/values"
	"github.com/timzifer/microdash/runtime/widgets"
	"github.com/timzifer/microdash/telemetry"
)

const (
	joinBacklog    = 32
	leaveBacklog   = 32
	commandBacklog = 64
	writeBacklog   = 128
)

type join struct {
	id        int
	transport sessions.Transport
}

type command struct {
	session int
	widget  widgets.ID
	payload json.RawMessage
}

type write struct {
	key   values.Key
	value values.Value
}

// Dashboard owns the value store, the widget model and the attached client
// sessions. All state is mutated exclusively by Tick, which the device's
// driving goroutine calls at its own pace; transport goroutines hand work
// over through the bounded channels and never touch the core directly.
type Dashboard struct {
	cfg       *config.Config
	logger    zerolog.Logger
	collector telemetry.Collector

	store   *values.Store
	model   *widgets.Model
	engine  *render.Engine
	derived *logic.Set

	sessions map[int]*sessions.Session
	nextID   atomic.Int64

	joins    chan join
	leaves   chan int
	commands chan command
	writes   chan write

	pending    map[values.Key]values.Value
	queueCap   int
	diagnostic func(error)
}

// New builds a dashboard from its configuration. Widgets are registered in
// declaration order; their IDs follow the layout.
func New(cfg *config.Config, opts ...Option) (*Dashboard, error) {
	if cfg == nil {
		return nil, errors.New("configuration must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&st); err != nil {
			return nil, err
		}
	}

	store := values.NewStore(len(cfg.Widgets)*2 + len(cfg.Derived))
	model := widgets.NewModel(store)
	for _, wc := range cfg.Widgets {
		if _, err := model.Register(wc); err != nil {
			return nil, err
		}
	}

	derived, err := logic.NewSet(cfg.Derived, store, st.logger)
	if err != nil {
		return nil, err
	}
	store.Seal()

	queueCap := cfg.QueueCapacity
	if queueCap < model.Len() {
		queueCap = model.Len()
	}

	d := &Dashboard{
		cfg:        cfg,
		logger:     st.logger.With().Str("component", "dashboard").Logger(),
		collector:  st.telemetry,
		store:      store,
		model:      model,
		engine:     render.NewEngine(cfg.Title, model, store),
		derived:    derived,
		sessions:   make(map[int]*sessions.Session),
		joins:      make(chan join, joinBacklog),
		leaves:     make(chan int, leaveBacklog),
		commands:   make(chan command, commandBacklog),
		writes:     make(chan write, writeBacklog),
		pending:    make(map[values.Key]values.Value),
		queueCap:   queueCap,
		diagnostic: st.diagnostic,
	}
	return d, nil
}

// Model exposes the widget model for style mutations and inspection.
func (d *Dashboard) Model() *widgets.Model { return d.model }

// SetValue writes a bound value. It must be called from the goroutine that
// drives Tick; device producers share the tick loop by design.
func (d *Dashboard) SetValue(key string, v values.Value) error {
	_, err := d.store.Set(values.Key(key), v)
	return err
}

// Push hands a bound value to the core from any goroutine; it is applied at
// the top of the next tick. Writes beyond the backlog are dropped.
func (d *Dashboard) Push(key string, v values.Value) {
	select {
	case d.writes <- write{key: values.Key(key), value: v}:
	default:
		d.logger.Warn().Str("key", key).Msg("producer write backlog full, dropping")
	}
}

// Value reads the current value of a binding key.
func (d *Dashboard) Value(key string) (values.Value, bool) {
	k := values.Key(key)
	if !d.store.Has(k) {
		return values.Value{}, false
	}
	v, _ := d.store.Get(k)
	return v, true
}

// SetStyle replaces a widget's style attributes; the widget re-renders on
// the next tick.
func (d *Dashboard) SetStyle(id widgets.ID, style config.StyleConfig) error {
	return d.model.SetStyle(id, style)
}

// Command returns the last accepted client command for a writable key since
// the previous call, consuming it. It reports false when no command arrived.
// Must be called from the tick goroutine.
func (d *Dashboard) Command(key string) (values.Value, bool) {
	k := values.Key(key)
	v, ok := d.pending[k]
	if !ok {
		return values.Value{}, false
	}
	delete(d.pending, k)
	return v, true
}

// Connect attaches a new client transport and returns its session handle.
// Safe to call from any goroutine; the session becomes live on the next tick.
func (d *Dashboard) Connect(transport sessions.Transport) (int, error) {
	id := int(d.nextID.Add(1))
	select {
	case d.joins <- join{id: id, transport: transport}:
		return id, nil
	default:
		_ = transport.Close()
		return 0, fmt.Errorf("session backlog full, rejecting client")
	}
}

// Disconnect detaches a session. Safe to call from any goroutine. When the
// backlog is full the session is reaped on its next failed send instead.
func (d *Dashboard) Disconnect(id int) {
	select {
	case d.leaves <- id:
	default:
	}
}

// Submit hands a decoded client command to the core. Safe to call from any
// goroutine. Commands beyond the backlog are dropped.
func (d *Dashboard) Submit(session int, widget widgets.ID, payload json.RawMessage) {
	select {
	case d.commands <- command{session: session, widget: widget, payload: payload}:
	default:
		d.collector.IncCommandsRejected("backlog")
		d.logger.Warn().Int("session", session).Int("widget", int(widget)).Msg("command backlog full, dropping")
	}
}

// MalformedFrame records an inbound frame the transport could not decode.
func (d *Dashboard) MalformedFrame(session int, err error) {
	d.collector.IncMalformedFrames()
	d.reportDiagnostic(err)
	d.logger.Warn().Err(err).Int("session", session).Msg("dropping malformed frame")
}

// Tick runs one update cycle: drain membership changes and client commands,
// re-evaluate derived bindings, render one patch per dirty widget and fan the
// patches out to all streaming sessions, then flush every session. New
// sessions receive the full document instead of patches, so no change is
// delivered twice.
func (d *Dashboard) Tick(now time.Time) {
	d.drainMembership()
	d.drainWrites()
	d.drainCommands()
	d.derived.Evaluate()

	dirty := d.model.DrainDirty()
	patches := d.engine.Patches(dirty)
	d.collector.IncPatchesRendered(uint64(len(patches)))

	var coalesced uint64
	for _, p := range patches {
		for _, s := range d.sessions {
			if s.Enqueue(p) {
				coalesced++
			}
		}
	}
	d.collector.IncPatchesCoalesced(coalesced)

	for id, s := range d.sessions {
		if err := s.Flush(d.engine.Bootstrap); err != nil {
			d.logger.Warn().Err(err).Int("session", id).Msg("session closed")
		}
		if s.State() == sessions.StateClosed {
			delete(d.sessions, id)
		}
	}
	d.collector.SetSessions(len(d.sessions))

	d.logger.Trace().
		Time("tick", now).
		Int("dirty", len(dirty)).
		Int("patches", len(patches)).
		Int("sessions", len(d.sessions)).
		Msg("tick completed")
}

// Sessions reports the number of attached sessions as of the last tick.
func (d *Dashboard) Sessions() int { return len(d.sessions) }

func (d *Dashboard) drainMembership() {
	for {
		select {
		case j := <-d.joins:
			d.sessions[j.id] = sessions.New(j.id, j.transport, d.queueCap)
			d.logger.Info().Int("session", j.id).Msg("client attached")
		case id := <-d.leaves:
			if s, ok := d.sessions[id]; ok {
				s.Close()
				delete(d.sessions, id)
				d.logger.Info().Int("session", id).Msg("client detached")
			}
		default:
			return
		}
	}
}

func (d *Dashboard) drainWrites() {
	for {
		select {
		case wr := <-d.writes:
			if _, err := d.store.Set(wr.key, wr.value); err != nil {
				d.reportDiagnostic(err)
				d.logger.Warn().Err(err).Str("key", string(wr.key)).Msg("producer write rejected")
			}
		default:
			return
		}
	}
}

func (d *Dashboard) reportDiagnostic(err error) {
	if d.diagnostic != nil {
		d.diagnostic(err)
	}
}

func (d *Dashboard) drainCommands() {
	for {
		select {
		case cmd := <-d.commands:
			key, v, err := d.model.ApplyCommand(cmd.widget, cmd.payload)
			if err != nil {
				d.collector.IncCommandsRejected(rejectionReason(err))
				d.reportDiagnostic(err)
				d.logger.Warn().Err(err).
					Int("session", cmd.session).
					Int("widget", int(cmd.widget)).
					Msg("command rejected")
				continue
			}
			d.pending[key] = v
			d.logger.Debug().
				Int("session", cmd.session).
				Int("widget", int(cmd.widget)).
				Str("key", string(key)).
				Msg("command accepted")
		default:
			return
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, widgets.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, widgets.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, widgets.ErrInvalidBinding):
		return "invalid_binding"
	case errors.Is(err, values.ErrUnknownKey):
		return "unknown_key"
	default:
		return "invalid"
	}
}
