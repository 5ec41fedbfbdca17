package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "250ms" or "2s".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// ValueKind describes the primitive type stored inside a binding slot.
type ValueKind string

const (
	// ValueKindBool represents boolean values.
	ValueKindBool ValueKind = "bool"
	// ValueKindInteger represents signed integer values.
	ValueKindInteger ValueKind = "integer"
	// ValueKindNumber represents floating point numbers.
	ValueKindNumber ValueKind = "number"
	// ValueKindText represents short UTF-8 strings.
	ValueKindText ValueKind = "text"
	// ValueKindEnum represents an index into a fixed label list.
	ValueKindEnum ValueKind = "enum"
)

// WidgetKind names one entry of the closed widget catalog.
type WidgetKind string

const (
	// WidgetGauge is an arc panel meter with a needle.
	WidgetGauge WidgetKind = "gauge"
	// WidgetSlider is a horizontal bar with a range input.
	WidgetSlider WidgetKind = "slider"
	// WidgetButton is a momentary pushbutton.
	WidgetButton WidgetKind = "button"
	// WidgetToggle is an on/off switch.
	WidgetToggle WidgetKind = "toggle"
	// WidgetReadout is a text or numeric display.
	WidgetReadout WidgetKind = "readout"
	// WidgetChart is a scrolling polyline of recent samples.
	WidgetChart WidgetKind = "chart"
	// WidgetSpacer forces a line break in the layout flow.
	WidgetSpacer WidgetKind = "spacer"
)

// KnownWidgetKind reports whether kind is part of the catalog.
func KnownWidgetKind(kind WidgetKind) bool {
	switch kind {
	case WidgetGauge, WidgetSlider, WidgetButton, WidgetToggle, WidgetReadout, WidgetChart, WidgetSpacer:
		return true
	default:
		return false
	}
}

// StyleConfig holds the layout and appearance attributes of a widget. Style
// is part of the widget's own state; mutating it at runtime dirties the
// widget just like a bound value change.
type StyleConfig struct {
	Width      int      `yaml:"width,omitempty"`
	Height     int      `yaml:"height,omitempty"`
	Label      string   `yaml:"label,omitempty"`
	Units      string   `yaml:"units,omitempty"`
	Min        float64  `yaml:"min,omitempty"`
	Max        float64  `yaml:"max,omitempty"`
	ArcAngle   float64  `yaml:"arc_angle,omitempty"`
	Precision  int      `yaml:"precision,omitempty"`
	Samples    int      `yaml:"samples,omitempty"`
	EnumLabels []string `yaml:"enum_labels,omitempty"`
	FillColor  string   `yaml:"fill_color,omitempty"`
	EmptyColor string   `yaml:"empty_color,omitempty"`
	TextColor  string   `yaml:"text_color,omitempty"`
}

// WidgetConfig describes one widget of the dashboard. Reads lists the
// binding keys the widget displays; Write names the single key an input
// widget commands.
type WidgetConfig struct {
	Kind  WidgetKind  `yaml:"kind"`
	Reads []string    `yaml:"reads,omitempty"`
	Write string      `yaml:"write,omitempty"`
	Value ValueKind   `yaml:"value,omitempty"`
	Style StyleConfig `yaml:"style,omitempty"`
}

// DerivedConfig declares a binding computed from other bindings via an
// expression, re-evaluated whenever one of its inputs changes.
type DerivedConfig struct {
	Key    string    `yaml:"key"`
	Kind   ValueKind `yaml:"kind"`
	Expr   string    `yaml:"expr"`
	Inputs []string  `yaml:"inputs"`
}

// LokiConfig configures optional log shipping to a Loki endpoint.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level  string     `yaml:"level,omitempty"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki,omitempty"`
}

// TelemetryConfig toggles the Prometheus collector.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig describes the network surface: bootstrap page over HTTP and
// the patch stream over a websocket upgrade on the same listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the root dashboard configuration.
type Config struct {
	Title         string          `yaml:"title,omitempty"`
	Tick          Duration        `yaml:"tick,omitempty"`
	QueueCapacity int             `yaml:"queue_capacity,omitempty"`
	Server        ServerConfig    `yaml:"server,omitempty"`
	Logging       LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry     TelemetryConfig `yaml:"telemetry,omitempty"`
	Widgets       []WidgetConfig  `yaml:"widgets"`
	Derived       []DerivedConfig `yaml:"derived,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs the structural checks that do not need the widget model.
// Binding arity, duplicate writers and range sanity are enforced during
// registration.
func (c *Config) Validate() error {
	if len(c.Widgets) == 0 {
		return fmt.Errorf("config must declare at least one widget")
	}
	for i, w := range c.Widgets {
		if w.Kind == "" {
			return fmt.Errorf("widget %d missing kind", i)
		}
		if !KnownWidgetKind(w.Kind) {
			return fmt.Errorf("widget %d: unknown kind %q", i, w.Kind)
		}
		for _, key := range w.Reads {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("widget %d: empty read binding", i)
			}
		}
		if w.Write != "" && strings.TrimSpace(w.Write) == "" {
			return fmt.Errorf("widget %d: blank write binding", i)
		}
	}
	seen := make(map[string]struct{}, len(c.Derived))
	for i, d := range c.Derived {
		if strings.TrimSpace(d.Key) == "" {
			return fmt.Errorf("derived %d missing key", i)
		}
		if _, ok := seen[d.Key]; ok {
			return fmt.Errorf("duplicate derived key %q", d.Key)
		}
		seen[d.Key] = struct{}{}
		if strings.TrimSpace(d.Expr) == "" {
			return fmt.Errorf("derived %s missing expression", d.Key)
		}
		if len(d.Inputs) == 0 {
			return fmt.Errorf("derived %s declares no inputs", d.Key)
		}
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must not be negative")
	}
	return nil
}
