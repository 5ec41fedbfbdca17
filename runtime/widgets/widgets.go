// Package widgets implements the typed widget catalog of the dashboard:
// registration rules, binding arity per kind and validation of inbound
// client commands before they reach the value store.
package widgets

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/values"
)

// Construction-time errors. A dashboard must not start with a layout that
// trips any of these.
var (
	// ErrInvalidBinding reports a widget with the wrong binding count for
	// its kind, or a command routed to a non-input widget.
	ErrInvalidBinding = errors.New("invalid widget binding")
	// ErrDuplicateWrite reports two input widgets claiming the same
	// writable key, which would make command routing ambiguous.
	ErrDuplicateWrite = errors.New("duplicate writable binding")
	// ErrDegenerateRange reports min == max on a ranged widget.
	ErrDegenerateRange = errors.New("degenerate widget range")
)

// Runtime command validation errors. These reject the command, leave the
// bound value untouched and keep the session alive.
var (
	// ErrOutOfRange reports a command value outside the declared range.
	ErrOutOfRange = errors.New("command value out of range")
	// ErrTypeMismatch reports a command value of the wrong type.
	ErrTypeMismatch = errors.New("command value type mismatch")
)

// ID identifies a widget. IDs are assigned at registration in layout order
// and never reused while the dashboard is live.
type ID int

// Widget is one node of the dashboard tree.
type Widget struct {
	id    ID
	kind  config.WidgetKind
	reads []values.Key
	write values.Key
	value config.ValueKind
	style config.StyleConfig
}

// ID returns the stable widget identifier.
func (w *Widget) ID() ID { return w.id }

// Kind returns the catalog kind.
func (w *Widget) Kind() config.WidgetKind { return w.kind }

// Reads returns the binding keys the widget displays.
func (w *Widget) Reads() []values.Key { return w.reads }

// Write returns the key an input widget commands, or "" for display-only
// widgets.
func (w *Widget) Write() values.Key { return w.write }

// Style returns the current style attributes.
func (w *Widget) Style() config.StyleConfig { return w.style }

// Model owns the widget tree in layout order and routes commands.
type Model struct {
	store   *Store
	widgets []*Widget
	writers map[values.Key]ID
}

// Store is the narrow value-store surface the model needs.
type Store = values.Store

// NewModel creates an empty model backed by the given store.
func NewModel(store *Store) *Model {
	return &Model{store: store, writers: make(map[values.Key]ID)}
}

// bindingArity returns the required read count and whether the kind writes.
func bindingArity(kind config.WidgetKind) (reads int, writes bool) {
	switch kind {
	case config.WidgetGauge, config.WidgetReadout, config.WidgetChart:
		return 1, false
	case config.WidgetSlider, config.WidgetToggle:
		return 1, true
	case config.WidgetButton:
		return 0, true
	default: // spacer
		return 0, false
	}
}

func needsRange(kind config.WidgetKind) bool {
	switch kind {
	case config.WidgetGauge, config.WidgetSlider, config.WidgetChart:
		return true
	default:
		return false
	}
}

func defaultValueKind(kind config.WidgetKind) config.ValueKind {
	switch kind {
	case config.WidgetToggle, config.WidgetButton:
		return config.ValueKindBool
	case config.WidgetReadout:
		return config.ValueKindText
	default:
		return config.ValueKindNumber
	}
}

// Register adds a widget during dashboard construction and returns its ID.
// Binding slots are created implicitly; back-references from key to widget
// are fixed here and never mutated afterwards.
func (m *Model) Register(cfg config.WidgetConfig) (ID, error) {
	wantReads, wantsWrite := bindingArity(cfg.Kind)
	if len(cfg.Reads) != wantReads {
		return 0, fmt.Errorf("%w: %s expects %d read bindings, got %d",
			ErrInvalidBinding, cfg.Kind, wantReads, len(cfg.Reads))
	}
	if wantsWrite && cfg.Write == "" {
		return 0, fmt.Errorf("%w: %s requires a writable binding", ErrInvalidBinding, cfg.Kind)
	}
	if !wantsWrite && cfg.Write != "" {
		return 0, fmt.Errorf("%w: %s must not declare a writable binding", ErrInvalidBinding, cfg.Kind)
	}
	if needsRange(cfg.Kind) && cfg.Style.Min >= cfg.Style.Max {
		return 0, fmt.Errorf("%w: %s range [%g,%g]", ErrDegenerateRange, cfg.Kind, cfg.Style.Min, cfg.Style.Max)
	}
	if cfg.Write != "" {
		if owner, taken := m.writers[values.Key(cfg.Write)]; taken {
			return 0, fmt.Errorf("%w: key %q already written by widget %d", ErrDuplicateWrite, cfg.Write, owner)
		}
	}

	id := ID(len(m.widgets))
	w := &Widget{
		id:    id,
		kind:  cfg.Kind,
		write: values.Key(cfg.Write),
		value: cfg.Value,
		style: cfg.Style,
	}
	if w.value == "" {
		w.value = defaultValueKind(cfg.Kind)
	}
	for _, key := range cfg.Reads {
		w.reads = append(w.reads, values.Key(key))
	}

	for _, key := range w.reads {
		if err := m.store.Register(key); err != nil {
			return 0, err
		}
		if err := m.store.Observe(key, int(id)); err != nil {
			return 0, err
		}
	}
	if w.write != "" {
		if err := m.store.Register(w.write); err != nil {
			return 0, err
		}
		m.writers[w.write] = id
	}

	m.widgets = append(m.widgets, w)
	return id, nil
}

// Len reports the number of registered widgets.
func (m *Model) Len() int { return len(m.widgets) }

// Get returns the widget with the given ID, or nil.
func (m *Model) Get(id ID) *Widget {
	if int(id) < 0 || int(id) >= len(m.widgets) {
		return nil
	}
	return m.widgets[id]
}

// All returns the widgets in layout order.
func (m *Model) All() []*Widget { return m.widgets }

// DrainDirty collects the widgets dirtied since the last drain from the
// store, in ascending ID order.
func (m *Model) DrainDirty() []ID {
	raw := m.store.DrainDirty()
	if len(raw) == 0 {
		return nil
	}
	out := make([]ID, len(raw))
	for i, obs := range raw {
		out[i] = ID(obs)
	}
	return out
}

// Writer returns the input widget owning a writable key.
func (m *Model) Writer(key values.Key) (*Widget, bool) {
	id, ok := m.writers[key]
	if !ok {
		return nil, false
	}
	return m.widgets[id], true
}

// SetStyle replaces a widget's style attributes and dirties the widget, so
// the next cycle re-renders it exactly as if a bound value had changed.
func (m *Model) SetStyle(id ID, style config.StyleConfig) error {
	w := m.Get(id)
	if w == nil {
		return fmt.Errorf("unknown widget %d", id)
	}
	if needsRange(w.kind) && style.Min >= style.Max {
		return fmt.Errorf("%w: %s range [%g,%g]", ErrDegenerateRange, w.kind, style.Min, style.Max)
	}
	w.style = style
	m.store.MarkDirty(int(id))
	return nil
}

// ApplyCommand validates a raw client value against the widget's declared
// type and range and, on success, writes it to the value store and returns
// the key and decoded value. On failure nothing is written.
func (m *Model) ApplyCommand(id ID, raw json.RawMessage) (values.Key, values.Value, error) {
	w := m.Get(id)
	if w == nil {
		return "", values.Value{}, fmt.Errorf("unknown widget %d", id)
	}
	if w.write == "" {
		return "", values.Value{}, fmt.Errorf("%w: widget %d accepts no commands", ErrInvalidBinding, id)
	}
	value, err := w.decodeCommand(raw)
	if err != nil {
		return "", values.Value{}, err
	}
	if _, err := m.store.Set(w.write, value); err != nil {
		return "", values.Value{}, err
	}
	return w.write, value, nil
}

func (w *Widget) decodeCommand(raw json.RawMessage) (values.Value, error) {
	switch w.value {
	case config.ValueKindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return values.Value{}, fmt.Errorf("%w: widget %d wants bool", ErrTypeMismatch, w.id)
		}
		if w.kind == config.WidgetButton && !b {
			return values.Value{}, fmt.Errorf("%w: button accepts only a true pulse", ErrTypeMismatch)
		}
		return values.Bool(b), nil
	case config.ValueKindInteger:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return values.Value{}, fmt.Errorf("%w: widget %d wants integer", ErrTypeMismatch, w.id)
		}
		if err := w.checkRange(float64(n)); err != nil {
			return values.Value{}, err
		}
		return values.Int(n), nil
	case config.ValueKindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return values.Value{}, fmt.Errorf("%w: widget %d wants number", ErrTypeMismatch, w.id)
		}
		if err := w.checkRange(f); err != nil {
			return values.Value{}, err
		}
		return values.Float(f), nil
	case config.ValueKindEnum:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return values.Value{}, fmt.Errorf("%w: widget %d wants enum index", ErrTypeMismatch, w.id)
		}
		if idx < 0 || idx >= len(w.style.EnumLabels) {
			return values.Value{}, fmt.Errorf("%w: enum index %d outside %d labels", ErrOutOfRange, idx, len(w.style.EnumLabels))
		}
		return values.Enum(idx), nil
	case config.ValueKindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return values.Value{}, fmt.Errorf("%w: widget %d wants text", ErrTypeMismatch, w.id)
		}
		if len(s) > values.MaxTextLen {
			return values.Value{}, fmt.Errorf("%w: text exceeds %d bytes", ErrOutOfRange, values.MaxTextLen)
		}
		return values.Text(s), nil
	default:
		return values.Value{}, fmt.Errorf("%w: widget %d has no command type", ErrTypeMismatch, w.id)
	}
}

func (w *Widget) checkRange(v float64) error {
	if !needsRange(w.kind) {
		return nil
	}
	if v < w.style.Min || v > w.style.Max {
		return fmt.Errorf("%w: %g outside [%g,%g]", ErrOutOfRange, v, w.style.Min, w.style.Max)
	}
	return nil
}
