// Package config loads solarsim settings from file and environment and sets
// up the process logger.
package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/talgya/solarsim/internal/agents"
	"github.com/talgya/solarsim/internal/engine"
	"github.com/talgya/solarsim/internal/world"
)

// Config holds the full application configuration.
type Config struct {
	Model  ModelConfig  `yaml:"model" mapstructure:"model"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ModelConfig mirrors engine.Params in file/env form.
type ModelConfig struct {
	Width         int            `yaml:"width" mapstructure:"width"`
	Height        int            `yaml:"height" mapstructure:"height"`
	Agents        int            `yaml:"agents" mapstructure:"agents"`
	Subsidy       bool           `yaml:"subsidy" mapstructure:"subsidy"`
	SubsidyStep   int            `yaml:"subsidy_step" mapstructure:"subsidy_step"`
	MaxSteps      int            `yaml:"max_steps" mapstructure:"max_steps"`
	Mode          string         `yaml:"mode" mapstructure:"mode"`
	Seed          uint64         `yaml:"seed" mapstructure:"seed"`
	ZoningFile    string         `yaml:"zoning_file" mapstructure:"zoning_file"`
	TraitNoise    float64        `yaml:"trait_noise" mapstructure:"trait_noise"`
	NoiseSeed     int64          `yaml:"noise_seed" mapstructure:"noise_seed"`
	MaxCandidates int            `yaml:"max_candidates" mapstructure:"max_candidates"`
	Weights       agents.Weights `yaml:"weights" mapstructure:"weights"`

	// Overrides pins household attributes by name, see agents.Overrides.Set.
	Overrides map[string]string `yaml:"overrides" mapstructure:"overrides"`
}

// BatchConfig configures parameter sweeps.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	Replicates  int `yaml:"replicates" mapstructure:"replicates"`
}

// ServerConfig configures the observation server.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	AdminKey       string        `yaml:"admin_key" mapstructure:"admin_key"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimit      int           `yaml:"rate_limit" mapstructure:"rate_limit"`
	TickInterval   time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
}

// StoreConfig locates the run database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for solarsim.yaml in the working directory; a missing default file is not
// an error, a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("solarsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SOLARSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	p := engine.DefaultParams()
	v.SetDefault("model.width", p.Width)
	v.SetDefault("model.height", p.Height)
	v.SetDefault("model.agents", p.Agents)
	v.SetDefault("model.subsidy", p.Subsidy)
	v.SetDefault("model.subsidy_step", p.SubsidyStep)
	v.SetDefault("model.max_steps", p.MaxSteps)
	v.SetDefault("model.mode", p.Mode.String())
	v.SetDefault("model.seed", 0)
	v.SetDefault("model.zoning_file", "")
	v.SetDefault("model.trait_noise", 0.0)
	v.SetDefault("model.noise_seed", 0)
	v.SetDefault("model.max_candidates", 0)
	v.SetDefault("model.weights.income", p.Weights.Income)
	v.SetDefault("model.weights.consciousness", p.Weights.Consciousness)
	v.SetDefault("model.weights.social", p.Weights.Social)
	v.SetDefault("model.weights.stubbornness", p.Weights.Stubbornness)
	v.SetDefault("model.weights.education", p.Weights.Education)
	v.SetDefault("model.weights.subsidy", p.Weights.Subsidy)
	v.SetDefault("model.weights.dwelling", p.Weights.Dwelling)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.replicates", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.tick_interval", "1s")
	v.SetDefault("store.path", "data/solarsim.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Params converts the model section into validated engine parameters,
// loading the zoning file when one is configured.
func (c *Config) Params() (engine.Params, error) {
	m := c.Model
	mode, err := agents.ParseMode(m.Mode)
	if err != nil {
		return engine.Params{}, eris.Wrap(err, "config: model.mode")
	}

	p := engine.Params{
		Width:         m.Width,
		Height:        m.Height,
		Agents:        m.Agents,
		Subsidy:       m.Subsidy,
		SubsidyStep:   m.SubsidyStep,
		MaxSteps:      m.MaxSteps,
		Weights:       m.Weights,
		Mode:          mode,
		Seed:          m.Seed,
		TraitNoise:    m.TraitNoise,
		NoiseSeed:     m.NoiseSeed,
		MaxCandidates: m.MaxCandidates,
	}
	if err := p.Overrides.SetAll(m.Overrides); err != nil {
		return engine.Params{}, eris.Wrap(err, "config: model.overrides")
	}
	if m.ZoningFile != "" && mode == agents.ModeZoned {
		layout, err := world.LoadLayout(m.ZoningFile, m.Width, m.Height)
		if err != nil {
			return engine.Params{}, err
		}
		p.Layout = &layout
	}
	if err := p.Validate(); err != nil {
		return engine.Params{}, eris.Wrap(err, "config: model")
	}
	return p, nil
}

// InitLogger installs the default slog logger writing to w.
func InitLogger(cfg LogConfig, w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text", "console", "":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return eris.Errorf("config: unknown log format %q", cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
