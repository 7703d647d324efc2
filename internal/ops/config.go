package ops

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	yerrors "github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"sorstream/internal/ingest"
	"sorstream/internal/ingest/binance"
	"sorstream/internal/model"
	"sorstream/internal/model/enum"
	"sorstream/pkg/exception"
	"sorstream/pkg/websocket"
)

const (
	EnvHost          = "SOR_HOST"
	EnvPort          = "SOR_PORT"
	EnvMetricsAddr   = "SOR_METRICS_ADDR"
	EnvProfilingAddr = "SOR_PROFILING_ADDR"
)

// FileConfig mirrors the YAML config layout. Absent fields keep their defaults.
type FileConfig struct {
	Venue                 string         `yaml:"venue"`
	Host                  string         `yaml:"host"`
	Port                  int            `yaml:"port"`
	MaxMessageSize        int            `yaml:"max_message_size"`
	StopThreshold         int            `yaml:"stop_threshold"`
	RecomputeInterval     time.Duration  `yaml:"recompute_interval"`
	Params                ParamsConfig   `yaml:"params"`
	Targets               []TargetConfig `yaml:"targets"`
	AbortOnConnectFailure *bool          `yaml:"abort_on_connect_failure"`
	MetricsAddr           string         `yaml:"metrics_addr"`
	ProfilingAddr         string         `yaml:"profiling_addr"`
}

// ParamsConfig holds the exchange parameters.
type ParamsConfig struct {
	TakerFee     float64 `yaml:"taker_fee"`
	Lambda       float64 `yaml:"lambda"`
	TargetAmount float64 `yaml:"target_amount"`
}

// TargetConfig is one subscription target.
type TargetConfig struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Platform              enum.Platform
	Host                  string
	Port                  string
	MaxMessageSize        int
	StopThreshold         int
	RecomputeInterval     time.Duration
	Params                model.ExchangeParams
	Subscriptions         []model.Subscription
	AbortOnConnectFailure bool
	MetricsAddr           string
	ProfilingAddr         string
}

// Defaults returns the Binance configuration.
func Defaults() FileConfig {
	params := binance.DefaultParams()
	subs := binance.DefaultSubscriptions()
	targets := make([]TargetConfig, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, TargetConfig{Path: sub.Target, Kind: sub.Source.String()})
	}
	port, _ := strconv.Atoi(binance.Port)
	return FileConfig{
		Venue:             binance.Venue,
		Host:              binance.Host,
		Port:              port,
		MaxMessageSize:    websocket.DefaultMaxMessageSize,
		StopThreshold:     ingest.DefaultStopThreshold,
		RecomputeInterval: ingest.DefaultRecomputeInterval,
		Params: ParamsConfig{
			TakerFee:     params.TakerFee,
			Lambda:       params.Lambda,
			TargetAmount: params.TargetAmount,
		},
		Targets: targets,
	}
}

// LoadEnv loads environment files, .env by default. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return yerrors.Wrapf(err, "load env file: %s", file)
		}
	}
	return nil
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result. An empty path uses the defaults.
func Load(path string) (Loaded, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, yerrors.Wrapf(err, "read config: %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "parse yaml %s: %v", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Loaded{}, err
	}
	return cfg.Resolve()
}

func applyEnv(cfg *FileConfig) error {
	if v, ok := os.LookupEnv(EnvHost); ok {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return yerrors.Wrapf(exception.ErrInvalidConfig, "%s: %q", EnvPort, v)
		}
		cfg.Port = port
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvProfilingAddr); ok {
		cfg.ProfilingAddr = v
	}
	return nil
}

// Resolve validates cfg and converts it to typed values.
func (cfg FileConfig) Resolve() (Loaded, error) {
	platform := enum.ParsePlatform(cfg.Venue)
	if !platform.IsAvailable() {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "unsupported venue: %q", cfg.Venue)
	}
	if cfg.Host == "" {
		return Loaded{}, yerrors.Wrap(exception.ErrInvalidConfig, "host is empty")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "invalid port: %d", cfg.Port)
	}
	if cfg.MaxMessageSize <= 0 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "max_message_size must be > 0, got %d", cfg.MaxMessageSize)
	}
	if cfg.StopThreshold <= 0 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "stop_threshold must be > 0, got %d", cfg.StopThreshold)
	}
	if cfg.RecomputeInterval <= 0 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "recompute_interval must be > 0, got %s", cfg.RecomputeInterval)
	}
	if cfg.Params.TakerFee < 0 || cfg.Params.TakerFee >= 1 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "taker_fee must be in [0, 1), got %g", cfg.Params.TakerFee)
	}
	if cfg.Params.Lambda < 0 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "lambda must be >= 0, got %g", cfg.Params.Lambda)
	}
	if cfg.Params.TargetAmount <= 0 {
		return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "target_amount must be > 0, got %g", cfg.Params.TargetAmount)
	}
	if len(cfg.Targets) == 0 {
		return Loaded{}, yerrors.Wrap(exception.ErrInvalidConfig, "no target")
	}

	subs := make([]model.Subscription, 0, len(cfg.Targets))
	for i, t := range cfg.Targets {
		source := enum.ParseSource(t.Kind)
		if !source.IsAvailable() {
			return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "target %d: unknown kind %q", i, t.Kind)
		}
		if t.Path == "" {
			return Loaded{}, yerrors.Wrapf(exception.ErrInvalidConfig, "target %d: empty path", i)
		}
		subs = append(subs, model.Subscription{Target: t.Path, Source: source})
	}

	abort := true
	if cfg.AbortOnConnectFailure != nil {
		abort = *cfg.AbortOnConnectFailure
	}

	return Loaded{
		Platform:          platform,
		Host:              cfg.Host,
		Port:              strconv.Itoa(cfg.Port),
		MaxMessageSize:    cfg.MaxMessageSize,
		StopThreshold:     cfg.StopThreshold,
		RecomputeInterval: cfg.RecomputeInterval,
		Params: model.ExchangeParams{
			TakerFee:     cfg.Params.TakerFee,
			Lambda:       cfg.Params.Lambda,
			TargetAmount: cfg.Params.TargetAmount,
		},
		Subscriptions:         subs,
		AbortOnConnectFailure: abort,
		MetricsAddr:           cfg.MetricsAddr,
		ProfilingAddr:         cfg.ProfilingAddr,
	}, nil
}
