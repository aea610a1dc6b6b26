// Package config loads trendcast settings. The YAML file (through viper)
// supplies preferences; secrets come only from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names the config file, env prefix and app directories.
const AppName = "trendcast"

// Config is every setting a command needs. Components receive the parts
// they use; none of them reads viper.
type Config struct {
	Interests []string `mapstructure:"interests"`
	AutoPlay  bool     `mapstructure:"auto_play"`
	Style     string   `mapstructure:"style"`
	Width     uint     `mapstructure:"width"`

	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Generate GenerateConfig `mapstructure:"generate"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`

	Secrets Secrets `mapstructure:"-"`
}

// LogConfig controls the log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// StoreConfig locates the content cache.
type StoreConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RemoteConfig points at a content endpoint.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SpeechConfig selects the narration voice.
type SpeechConfig struct {
	Model      string  `mapstructure:"model"`
	Voice      string  `mapstructure:"voice"`
	Speed      float64 `mapstructure:"speed"`
	SampleRate int     `mapstructure:"sample_rate"`
}

// GenerateConfig controls live generation.
type GenerateConfig struct {
	Model   string   `mapstructure:"model"`
	Persona string   `mapstructure:"persona"`
	Count   int      `mapstructure:"count"`
	Feeds   []string `mapstructure:"feeds"`
}

// CacheConfig sizes the speech clip cache.
type CacheConfig struct {
	Dir      string        `mapstructure:"dir"`
	MemoryMB int           `mapstructure:"memory_mb"`
	DiskMB   int           `mapstructure:"disk_mb"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig is used by the serve command.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MemoTTL         time.Duration `mapstructure:"memo_ttl"`
	PurgeSchedule   string        `mapstructure:"purge_schedule"`
	PrewarmSchedule string        `mapstructure:"prewarm_schedule"`
}

// Secrets are read from the environment only.
type Secrets struct {
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	RefreshSecret string `env:"TRENDCAST_REFRESH_SECRET"`
	RemoteURL     string `env:"TRENDCAST_REMOTE_URL"`
}

// Default returns the default configuration. Empty paths are resolved to
// the platform's app directories by Load.
func Default() Config {
	return Config{
		AutoPlay: true,
		Style:    "auto",
		Log:      LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
		Store:    StoreConfig{TTL: 30 * time.Minute},
		Remote:   RemoteConfig{Timeout: 15 * time.Second},
		Speech:   SpeechConfig{Model: "tts-1", Voice: "alloy", Speed: 1.0, SampleRate: 24000},
		Generate: GenerateConfig{Model: "gpt-4o-mini", Count: 6},
		Cache:    CacheConfig{MemoryMB: 64, DiskMB: 512, TTL: 7 * 24 * time.Hour},
		Server: ServerConfig{
			Addr:          ":8787",
			MemoTTL:       5 * time.Second,
			PurgeSchedule: "@every 10m",
		},
	}
}

// SetDefaults registers every key with v so environment overrides
// (TRENDCAST_STORE_PATH and friends) are seen.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("interests", d.Interests)
	v.SetDefault("auto_play", d.AutoPlay)
	v.SetDefault("style", d.Style)
	v.SetDefault("width", d.Width)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.ttl", d.Store.TTL)

	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)

	v.SetDefault("speech.model", d.Speech.Model)
	v.SetDefault("speech.voice", d.Speech.Voice)
	v.SetDefault("speech.speed", d.Speech.Speed)
	v.SetDefault("speech.sample_rate", d.Speech.SampleRate)

	v.SetDefault("generate.model", d.Generate.Model)
	v.SetDefault("generate.persona", d.Generate.Persona)
	v.SetDefault("generate.count", d.Generate.Count)
	v.SetDefault("generate.feeds", d.Generate.Feeds)

	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.memo_ttl", d.Server.MemoTTL)
	v.SetDefault("server.purge_schedule", d.Server.PurgeSchedule)
	v.SetDefault("server.prewarm_schedule", d.Server.PrewarmSchedule)
}

// Load builds a Config from v and the environment, resolves paths and
// validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return cfg, fmt.Errorf("unable to read environment: %w", err)
	}
	if cfg.Secrets.RemoteURL != "" {
		cfg.Remote.URL = cfg.Secrets.RemoteURL
	}
	if err := cfg.resolvePaths(gap.NewScope(gap.User, AppName)); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) resolvePaths(scope *gap.Scope) error {
	var err error
	if c.Store.Path == "" {
		if c.Store.Path, err = scope.DataPath("cache.db"); err != nil {
			return fmt.Errorf("unable to locate data directory: %w", err)
		}
	}
	if c.Cache.Dir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			return fmt.Errorf("unable to locate cache directory: %w", err)
		}
		c.Cache.Dir = dir + "/audio"
	}
	if c.Log.File == "" {
		if c.Log.File, err = scope.LogPath(AppName + ".log"); err != nil {
			return fmt.Errorf("unable to locate log directory: %w", err)
		}
	}

	for _, p := range []*string{&c.Store.Path, &c.Cache.Dir, &c.Log.File} {
		if *p == ":memory:" {
			continue
		}
		if *p, err = homedir.Expand(*p); err != nil {
			return fmt.Errorf("unable to expand %q: %w", *p, err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Store.TTL <= 0 {
		errs = append(errs, fmt.Errorf("store.ttl must be positive, got %s", c.Store.TTL))
	}
	if c.Speech.Speed < 0.25 || c.Speech.Speed > 4.0 {
		errs = append(errs, fmt.Errorf("speech.speed must be between 0.25 and 4.0, got %.2f", c.Speech.Speed))
	}
	if c.Speech.SampleRate < 8000 || c.Speech.SampleRate > 96000 {
		errs = append(errs, fmt.Errorf("speech.sample_rate must be between 8000 and 96000, got %d", c.Speech.SampleRate))
	}
	if c.Generate.Count < 1 || c.Generate.Count > 20 {
		errs = append(errs, fmt.Errorf("generate.count must be between 1 and 20, got %d", c.Generate.Count))
	}
	if c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0 {
		errs = append(errs, errors.New("cache sizes must not be negative"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
