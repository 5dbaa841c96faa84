// Package loader builds the client configuration and scenario settings from a .env
// file, an optional YAML file and environment variables. It is the only package that
// reads the process environment.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradeprobe/pkg/core"
)

// Environment variables read by Load.
const (
	EnvBaseURL   = "BINANCE_BASE_URL"
	EnvWSURL     = "BINANCE_WS_URL"
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvSecretKey = "BINANCE_SECRET_KEY"
	EnvTimeout   = "REQUEST_TIMEOUT"
	EnvRetries   = "MAX_RETRIES"
	EnvLogLevel  = "LOG_LEVEL"
)

const defaultEnvFile = ".env"

// Scenario holds the market parameters the verification suites use.
type Scenario struct {
	Symbol   string   `yaml:"symbol" validate:"required,uppercase,alphanum"`
	Symbols  []string `yaml:"symbols" validate:"min=1,dive,required,uppercase,alphanum"`
	Quantity string   `yaml:"quantity" validate:"required,numeric"`
	// Price is the LIMIT price for lifecycle orders. It must be far enough from market
	// that the order rests.
	Price string `yaml:"price" validate:"required,numeric"`
}

// LoadProfile configures the concurrency scenarios.
type LoadProfile struct {
	Enabled           bool          `yaml:"enabled"`
	BurstSize         int           `yaml:"burst_size" validate:"min=1"`
	BurstWorkers      int           `yaml:"burst_workers" validate:"min=1"`
	SustainedDuration time.Duration `yaml:"sustained_duration" validate:"min=1ms"`
	SustainedInterval time.Duration `yaml:"sustained_interval" validate:"min=1ms"`
}

// File is the YAML document layout. Credentials are never read from it.
type File struct {
	Client   core.Config `yaml:"client"`
	Scenario Scenario    `yaml:"scenario"`
	Load     LoadProfile `yaml:"load"`
}

// Settings is everything a run needs.
type Settings struct {
	Config   *core.Config
	Scenario Scenario
	Load     LoadProfile
}

// Options selects the sources. Zero values use .env in the working directory, no YAML
// file and the process environment.
type Options struct {
	EnvFile    string
	ConfigFile string
	LookupEnv  func(string) (string, bool)
}

var validate = validator.New()

// DefaultScenario trades BTCUSDT and checks BTCUSDT, ETHUSDT and BNBUSDT.
func DefaultScenario() Scenario {
	return Scenario{
		Symbol:   "BTCUSDT",
		Symbols:  []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"},
		Quantity: "0.001",
		Price:    "20000",
	}
}

// DefaultLoad is a 50 request burst on 50 workers and a 30 second sustained run at 10 rps.
func DefaultLoad() LoadProfile {
	return LoadProfile{
		BurstSize:         50,
		BurstWorkers:      50,
		SustainedDuration: 30 * time.Second,
		SustainedInterval: 100 * time.Millisecond,
	}
}

// Load resolves settings with the precedence environment > .env file > YAML file > defaults.
func Load(opts Options) (*Settings, error) {
	file := File{
		Client:   *core.DefaultConfig(),
		Scenario: DefaultScenario(),
		Load:     DefaultLoad(),
	}
	if opts.ConfigFile != "" {
		if err := readYAML(opts.ConfigFile, &file); err != nil {
			return nil, err
		}
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}

	cfg := &file.Client
	if err := applyEnv(cfg, get); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	if err := validate.Struct(file.Scenario); err != nil {
		return nil, fmt.Errorf("scenario config: %w", err)
	}
	if err := validate.Struct(file.Load); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &Settings{Config: cfg, Scenario: file.Scenario, Load: file.Load}, nil
}

func readYAML(path string, out *File) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// readEnvFile parses path without touching the process environment. A missing default
// file is not an error; a missing explicit file is.
func readEnvFile(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return values, nil
}

func applyEnv(cfg *core.Config, get func(string) (string, bool)) error {
	if v, ok := get(EnvBaseURL); ok {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := get(EnvWSURL); ok {
		cfg.WSURL = v
	}

	key, _ := get(EnvAPIKey)
	secret, _ := get(EnvSecretKey)
	if key != "" || secret != "" {
		cfg.Credentials = core.NewCredentials(key, secret)
	}

	if v, ok := get(EnvTimeout); ok {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s must be a positive number of seconds, got %q", EnvTimeout, v)
		}
		cfg.Timeout = time.Duration(secs * float64(time.Second))
	}
	if v, ok := get(EnvRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", EnvRetries, v)
		}
		cfg.MaxRetries = n
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	return nil
}
