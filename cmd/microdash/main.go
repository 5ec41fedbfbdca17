package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/timzifer/microdash/config"
	"github.com/timzifer/microdash/dashboard"
	"github.com/timzifer/microdash/feed/random"
	"github.com/timzifer/microdash/internal/logging"
	"github.com/timzifer/microdash/telemetry"
	"github.com/timzifer/microdash/transport"
)

const defaultTick = 250 * time.Millisecond

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	demo := flag.Bool("demo", false, "Feed display widgets with simulated values")
	demoSeed := flag.Int64("demo-seed", 0, "Seed for the demo feed (0 = from clock)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *configCheck {
		os.Exit(executeConfigCheck(cfg))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	collector, err := newTelemetryCollector(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		collector = telemetry.Noop()
	}

	dash, err := dashboard.New(cfg,
		dashboard.WithLogger(logger),
		dashboard.WithTelemetry(collector),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build dashboard")
	}

	var feed *random.Feed
	if *demo {
		feed, err = random.New(demoChannels(cfg), *demoSeed, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build demo feed")
		}
	}

	srv := transport.NewServer(dash, cfg.Server, cfg.Title, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	tick := cfg.Tick.Duration
	if tick <= 0 {
		tick = defaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger.Info().Dur("tick", tick).Int("widgets", len(cfg.Widgets)).Msg("dashboard running")
	for {
		select {
		case <-ctx.Done():
			if err := <-errCh; err != nil {
				logger.Error().Err(err).Msg("server stopped with error")
			}
			return
		case err := <-errCh:
			if err != nil {
				logger.Fatal().Err(err).Msg("server stopped with error")
			}
			return
		case now := <-ticker.C:
			if feed != nil {
				feed.Step(dash)
			}
			dash.Tick(now)
		}
	}
}

// demoChannels builds one simulated channel per ranged display binding.
func demoChannels(cfg *config.Config) []random.Channel {
	var out []random.Channel
	seen := make(map[string]struct{})
	for _, w := range cfg.Widgets {
		switch w.Kind {
		case config.WidgetGauge, config.WidgetChart:
		default:
			continue
		}
		for _, key := range w.Reads {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, random.Channel{Key: key, Min: w.Style.Min, Max: w.Style.Max})
		}
	}
	return out
}

func executeConfigCheck(cfg *config.Config) int {
	fmt.Printf("Dashboard %q, %d widgets, %d derived bindings\n", cfg.Title, len(cfg.Widgets), len(cfg.Derived))
	for i, w := range cfg.Widgets {
		line := fmt.Sprintf("  widget %d: %s", i, w.Kind)
		if len(w.Reads) > 0 {
			line += fmt.Sprintf(" reads %s", strings.Join(w.Reads, ", "))
		}
		if w.Write != "" {
			line += fmt.Sprintf(" writes %s", w.Write)
		}
		fmt.Println(line)
	}
	if _, err := dashboard.New(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration invalid: %v\n", err)
		return 1
	}
	fmt.Println("Configuration check completed successfully.")
	return 0
}

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	return telemetry.NewPrometheusCollector(nil)
}
