// Command tradeprobe runs the verification and load suites against a spot exchange.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"tradeprobe/internal/loader"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/exchange/binance"
	"tradeprobe/pkg/verify"
)

const (
	defaultSuites   = "functional,security,trading,performance"
	scenarioTimeout = 2 * time.Minute
	tickerGap       = 500 * time.Millisecond
)

var knownSuites = []string{
	verify.SuiteFunctional,
	verify.SuiteSecurity,
	verify.SuiteTrading,
	verify.SuitePerformance,
	verify.SuiteRateLimit,
}

type flags struct {
	exchange   string
	envFile    string
	configFile string
	suites     string
	load       bool
	burst      int
	workers    int
	duration   time.Duration
	interval   time.Duration
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.exchange, "exchange", binance.ExchangeName, "Exchange to verify")
	flag.StringVar(&f.envFile, "env", "", "Path to a .env file (default .env when present)")
	flag.StringVar(&f.configFile, "config", "", "Path to a YAML config file")
	flag.StringVar(&f.suites, "suites", defaultSuites, "Comma separated suites: "+strings.Join(knownSuites, ","))
	flag.BoolVar(&f.load, "load", false, "Allow burst, sustained and rate limit scenarios")
	flag.IntVar(&f.burst, "burst", 0, "Burst size, overrides config")
	flag.IntVar(&f.workers, "workers", 0, "Burst workers, overrides config")
	flag.DurationVar(&f.duration, "duration", 0, "Sustained run duration, overrides config")
	flag.DurationVar(&f.interval, "interval", 0, "Sustained request interval, overrides config")
	flag.Parse()
	return f
}

func main() {
	os.Exit(run(parseFlags()))
}

func run(f flags) int {
	bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	settings, err := loader.Load(loader.Options{EnvFile: f.envFile, ConfigFile: f.configFile})
	if err != nil {
		bootLog.Error().Err(err).Msg("load settings")
		return 2
	}
	suites, err := parseSuites(f.suites)
	if err != nil {
		bootLog.Error().Err(err).Msg("parse suites")
		return 2
	}
	applyOverrides(&settings.Load, f)

	logger := bootLog.Level(parseLevel(settings.Config.LogLevel))
	cfg := settings.Config
	logger.Info().
		Str("base_url", cfg.BaseURL).
		Stringer("credentials", cfg.Credentials).
		Strs("suites", suites).
		Msg("tradeprobe starting")

	registry := exchange.NewRegistry()
	binance.Register(registry, binance.WithLogger(logger))
	if !registry.Exists(f.exchange) {
		logger.Error().Str("exchange", f.exchange).Strs("known", registry.Names()).Msg("unknown exchange")
		return 2
	}

	client, err := registry.New(f.exchange, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("create client")
		return 2
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if syncer, ok := client.(exchange.TimeSyncer); ok && client.HasCredentials() {
		if offset, err := syncer.SyncTime(ctx); err != nil {
			logger.Warn().Err(err).Msg("server time sync failed, using local clock")
		} else {
			logger.Info().Dur("offset", offset).Msg("server time synced")
		}
	}

	caps := verify.Capabilities{
		Credentials: client.HasCredentials(),
		Load:        f.load || settings.Load.Enabled,
	}
	scenarios, err := buildScenarios(suites, registry, f.exchange, client, settings, logger)
	if err != nil {
		logger.Error().Err(err).Msg("build scenarios")
		return 2
	}

	runner := verify.NewRunner(verify.NewLogReporter(logger), caps,
		verify.WithScenarioTimeout(scenarioTimeout),
		verify.WithRunnerLogger(logger),
	)
	sum := runner.Run(ctx, scenarios...)

	logger.Info().
		Int("passed", sum.Passed).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Msg("run finished")
	if !sum.OK() {
		return 1
	}
	return 0
}

func buildScenarios(suites []string, registry *exchange.Registry, exchangeName string, client exchange.Exchange,
	settings *loader.Settings, logger zerolog.Logger) ([]verify.Scenario, error) {
	cfg := settings.Config
	sc := settings.Scenario
	factory, err := registry.Factory(exchangeName, cfg)
	if err != nil {
		return nil, err
	}
	perf := &verify.PerformanceSuite{
		Client:            client,
		Factory:           factory,
		Symbol:            sc.Symbol,
		BurstSize:         settings.Load.BurstSize,
		BurstWorkers:      settings.Load.BurstWorkers,
		SustainedDuration: settings.Load.SustainedDuration,
		SustainedInterval: settings.Load.SustainedInterval,
		Logger:            logger,
	}

	var out []verify.Scenario
	for _, suite := range suites {
		switch suite {
		case verify.SuiteFunctional:
			out = append(out, (&verify.MarketSuite{
				Client:      client,
				Symbol:      sc.Symbol,
				Symbols:     sc.Symbols,
				RepeatDelay: tickerGap,
			}).Scenarios()...)
		case verify.SuiteSecurity:
			out = append(out, (&verify.SecuritySuite{
				Client:      client,
				Credentials: cfg.Credentials,
				NewClient: func(creds core.Credentials) (exchange.Exchange, error) {
					c := *cfg
					c.Credentials = creds
					return registry.New(exchangeName, &c)
				},
				BaseURL: cfg.BaseURL,
				Symbol:  sc.Symbol,
			}).Scenarios()...)
		case verify.SuiteTrading:
			out = append(out, (&verify.TradingSuite{
				Client:    client,
				Symbol:    sc.Symbol,
				Quantity:  sc.Quantity,
				Price:     sc.Price,
				Lifecycle: []verify.LifecycleOption{verify.WithLifecycleLogger(logger)},
			}).Scenarios()...)
		case verify.SuitePerformance:
			out = append(out, perf.Scenarios()...)
		case verify.SuiteRateLimit:
			out = append(out, perf.RateLimitScenarios()...)
		}
	}
	return out, nil
}

// parseSuites splits a comma separated list, dropping blanks and duplicates.
func parseSuites(raw string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		if !slices.Contains(knownSuites, name) {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no suites selected")
	}
	return out, nil
}

func applyOverrides(load *loader.LoadProfile, f flags) {
	if f.burst > 0 {
		load.BurstSize = f.burst
	}
	if f.workers > 0 {
		load.BurstWorkers = f.workers
	}
	if f.duration > 0 {
		load.SustainedDuration = f.duration
	}
	if f.interval > 0 {
		load.SustainedInterval = f.interval
	}
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}
