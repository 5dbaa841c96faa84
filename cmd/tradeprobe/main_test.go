package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeprobe/internal/loader"
	"tradeprobe/internal/testexchange"
	"tradeprobe/pkg/core"
	"tradeprobe/pkg/exchange"
	"tradeprobe/pkg/exchange/binance"
	"tradeprobe/pkg/verify"
)

func TestParseSuites(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{raw: defaultSuites, want: []string{"functional", "security", "trading", "performance"}},
		{raw: " Trading , ratelimit,trading,", want: []string{"trading", "ratelimit"}},
		{raw: "functional,websocket", wantErr: true},
		{raw: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseSuites(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	load := loader.DefaultLoad()
	applyOverrides(&load, flags{burst: 10, interval: time.Second})

	assert.Equal(t, 10, load.BurstSize)
	assert.Equal(t, 50, load.BurstWorkers)
	assert.Equal(t, 30*time.Second, load.SustainedDuration)
	assert.Equal(t, time.Second, load.SustainedInterval)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("chatty"))
}

func TestBuildScenarios(t *testing.T) {
	srv := testexchange.New()
	defer srv.Close()

	settings := &loader.Settings{
		Config: core.DefaultConfig().
			WithBaseURL(srv.URL()).
			WithTimeout(2*time.Second).
			WithRetry(0, 0, 0),
		Scenario: loader.DefaultScenario(),
		Load:     loader.DefaultLoad(),
	}
	registry := exchange.NewRegistry()
	binance.Register(registry)
	client, err := registry.New(binance.ExchangeName, settings.Config)
	require.NoError(t, err)
	defer client.Close()

	scenarios, err := buildScenarios([]string{verify.SuiteSecurity, verify.SuiteRateLimit},
		registry, binance.ExchangeName, client, settings, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, scenarios, 9)
	assert.Equal(t, verify.SuiteSecurity, scenarios[0].Suite)
	assert.Equal(t, "rate_limit_probe", scenarios[8].Name)

	// invalid_api_key builds its own client through the registry.
	var probe verify.Scenario
	for _, sc := range scenarios {
		if sc.Name == "invalid_api_key" {
			probe = sc
		}
	}
	require.NotNil(t, probe.Run)
	require.NoError(t, probe.Run(context.Background()))
}

func TestBuildScenarios_UnknownExchange(t *testing.T) {
	settings := &loader.Settings{
		Config:   core.DefaultConfig(),
		Scenario: loader.DefaultScenario(),
		Load:     loader.DefaultLoad(),
	}
	_, err := buildScenarios([]string{verify.SuiteFunctional}, exchange.NewRegistry(), "kraken", nil, settings, zerolog.Nop())
	require.Error(t, err)
}
