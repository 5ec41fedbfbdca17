package render

import (
	"strings"
	"testing"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/runtime/values"
	"github.com/timzifer/microdash/runtime/widgets"
)

type fixture struct {
	store  *values.Store
	model  *widgets.Model
	engine *Engine
}

func newFixture(t *testing.T, cfgs ...config.WidgetConfig) *fixture {
	t.Helper()
	store := values.NewStore(8)
	model := widgets.NewModel(store)
	for _, cfg := range cfgs {
		if _, err := model.Register(cfg); err != nil {
			t.Fatalf("Register %s: %v", cfg.Kind, err)
		}
	}
	store.Seal()
	return &fixture{store: store, model: model, engine: NewEngine("Test Dash", model, store)}
}

func gaugeConfig(key string) config.WidgetConfig {
	return config.WidgetConfig{
		Kind:  config.WidgetGauge,
		Reads: []string{key},
		Style: config.StyleConfig{Min: 0, Max: 100, Label: "Temp", ArcAngle: 180},
	}
}

func TestBootstrapContainsContainersInLayoutOrder(t *testing.T) {
	fx := newFixture(t,
		gaugeConfig("temp"),
		config.WidgetConfig{Kind: config.WidgetSpacer},
		config.WidgetConfig{Kind: config.WidgetReadout, Reads: []string{"status"}},
	)
	doc := fx.engine.Bootstrap()
	w0 := strings.Index(doc, `id="w0"`)
	w1 := strings.Index(doc, `id="w1"`)
	w2 := strings.Index(doc, `id="w2"`)
	if w0 < 0 || w1 < 0 || w2 < 0 {
		t.Fatalf("missing widget containers in %q", doc)
	}
	if !(w0 < w1 && w1 < w2) {
		t.Fatal("containers out of layout order")
	}
	if !strings.Contains(doc, "Test Dash") {
		t.Fatal("missing dashboard title")
	}
}

func TestBootstrapShowsPlaceholderForUnsetBinding(t *testing.T) {
	fx := newFixture(t, config.WidgetConfig{Kind: config.WidgetReadout, Reads: []string{"status"}})
	doc := fx.engine.Bootstrap()
	if !strings.Contains(doc, placeholderGlyph) {
		t.Fatalf("expected placeholder glyph in %q", doc)
	}
}

func TestGaugeQuarterFillAtQuarterValue(t *testing.T) {
	fx := newFixture(t, gaugeConfig("temp"))
	if _, err := fx.store.Set("temp", values.Float(25)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc := fx.engine.Bootstrap()

	// With a 180 degree arc, 25% maps the needle to 180-45=135 degrees.
	// The filled arc runs from the needle to the 180 degree stop; its start
	// point is the needle tip position on the arc radius.
	if !strings.Contains(doc, `id="w0-fill"`) || !strings.Contains(doc, `id="w0-needle"`) {
		t.Fatalf("missing gauge parts in %q", doc)
	}
	wantPath := arcPath(125, 160, 100, 135, 180)
	if !strings.Contains(doc, wantPath) {
		t.Fatalf("expected fill arc %q in %q", wantPath, doc)
	}
	if !strings.Contains(doc, ">25") {
		t.Fatalf("expected value text in %q", doc)
	}
}

func TestPatchesAscendingAndMinimal(t *testing.T) {
	fx := newFixture(t,
		gaugeConfig("temp"),
		config.WidgetConfig{Kind: config.WidgetReadout, Reads: []string{"status"}},
	)
	fx.engine.Bootstrap()

	if _, err := fx.store.Set("status", values.Text("ok")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := fx.store.Set("temp", values.Float(75)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	patches := fx.engine.Patches(fx.model.DrainDirty())
	if len(patches) != 2 {
		t.Fatalf("expected 2 patches, got %d", len(patches))
	}
	if patches[0].Widget != 0 || patches[1].Widget != 1 {
		t.Fatalf("patches out of widget order: %+v", patches)
	}
	if strings.Contains(patches[0].Fragment, "<svg") || strings.Contains(patches[0].Fragment, "<div") {
		t.Fatal("patch must not re-render the widget container")
	}
	if !strings.Contains(patches[0].Fragment, `id="w0-needle"`) {
		t.Fatalf("gauge patch missing needle part: %q", patches[0].Fragment)
	}
	if !strings.Contains(patches[1].Fragment, `id="w1-text"`) {
		t.Fatalf("readout patch missing text part: %q", patches[1].Fragment)
	}
}

func TestPatchAdvancesVersionCache(t *testing.T) {
	fx := newFixture(t, gaugeConfig("temp"))
	fx.engine.Bootstrap()
	if _, err := fx.store.Set("temp", values.Float(10)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	fx.engine.Patches(fx.model.DrainDirty())
	if got := fx.engine.LastRendered(0, "temp"); got != 1 {
		t.Fatalf("expected cache version 1, got %d", got)
	}
}

func TestSpacerProducesNoPatch(t *testing.T) {
	fx := newFixture(t, config.WidgetConfig{Kind: config.WidgetSpacer})
	fx.engine.Bootstrap()
	patches := fx.engine.Patches([]widgets.ID{0})
	if len(patches) != 0 {
		t.Fatalf("expected no patch for spacer, got %+v", patches)
	}
}

func TestGaugeClampsOutOfRangeValues(t *testing.T) {
	fx := newFixture(t, gaugeConfig("temp"))
	if _, err := fx.store.Set("temp", values.Float(250)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc := fx.engine.Bootstrap()
	// Needle pinned at the max stop: with a 180 degree arc the empty arc
	// collapses to a zero-length path at 0 degrees.
	wantEmpty := arcPath(125, 160, 100, 0, 0)
	if !strings.Contains(doc, wantEmpty) {
		t.Fatalf("expected saturated empty arc %q in %q", wantEmpty, doc)
	}
	// The text still shows the unclamped reading.
	if !strings.Contains(doc, ">250") {
		t.Fatalf("expected raw value text in %q", doc)
	}
}

func TestChartTraceGrowsPerRender(t *testing.T) {
	fx := newFixture(t, config.WidgetConfig{
		Kind:  config.WidgetChart,
		Reads: []string{"rpm"},
		Style: config.StyleConfig{Min: 0, Max: 10, Samples: 4},
	})
	fx.engine.Bootstrap()
	for i := 1; i <= 3; i++ {
		if _, err := fx.store.Set("rpm", values.Float(float64(i))); err != nil {
			t.Fatalf("Set: %v", err)
		}
		patches := fx.engine.Patches(fx.model.DrainDirty())
		if len(patches) != 1 {
			t.Fatalf("expected 1 patch, got %d", len(patches))
		}
		if !strings.Contains(patches[0].Fragment, `id="w0-trace"`) {
			t.Fatalf("chart patch missing trace: %q", patches[0].Fragment)
		}
	}
	if got := fx.engine.trace(fx.model.Get(0)).Len(); got != 3 {
		t.Fatalf("expected 3 samples, got %d", got)
	}
}

func TestToggleStateFlipsFill(t *testing.T) {
	fx := newFixture(t, config.WidgetConfig{
		Kind:  config.WidgetToggle,
		Reads: []string{"led"},
		Write: "led",
		Style: config.StyleConfig{FillColor: "#00FF00", EmptyColor: "#333333"},
	})
	if _, err := fx.store.Set("led", values.Bool(true)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc := fx.engine.Bootstrap()
	if !strings.Contains(doc, `fill="#00FF00"`) {
		t.Fatalf("expected on-state fill in %q", doc)
	}
	if _, err := fx.store.Set("led", values.Bool(false)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	patches := fx.engine.Patches(fx.model.DrainDirty())
	if len(patches) != 1 || !strings.Contains(patches[0].Fragment, `fill="#333333"`) {
		t.Fatalf("expected off-state fill in %+v", patches)
	}
}
