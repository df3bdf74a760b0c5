// Package config loads readaloud settings from defaults, an optional
// readaloud.yaml, and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hammamikhairi/readaloud/internal/domain"
)

// Engine backends.
const (
	EngineAzure = "azure"
	EnginePiper = "piper"
	EngineNoop  = "noop"
)

// Config is the root configuration.
type Config struct {
	Engine    string          `mapstructure:"engine"`
	Azure     AzureConfig     `mapstructure:"azure"`
	Piper     PiperConfig     `mapstructure:"piper"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Dictation DictationConfig `mapstructure:"dictation"`
	Log       LogConfig       `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// AzureConfig holds Azure Speech credentials and request settings.
type AzureConfig struct {
	Key     string        `mapstructure:"key"`
	Region  string        `mapstructure:"region"`
	Format  string        `mapstructure:"format"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// azureFormat matches the Azure output formats the player can take:
// 16-bit mono RIFF PCM at any rate, e.g. riff-24khz-16bit-mono-pcm or
// riff-22050hz-16bit-mono-pcm.
var azureFormat = regexp.MustCompile(`^riff-(\d+)(k?)hz-16bit-mono-pcm$`)

// SampleRate returns the rate encoded in Format, in Hz.
func (a AzureConfig) SampleRate() (int, error) {
	m := azureFormat.FindStringSubmatch(a.Format)
	if m == nil {
		return 0, fmt.Errorf("unsupported output format %q (want riff-<rate>-16bit-mono-pcm)", a.Format)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad sample rate in %q", a.Format)
	}
	if m[2] == "k" {
		n *= 1000
	}
	return n, nil
}

// PiperConfig points at a Wyoming Piper server.
type PiperConfig struct {
	Endpoint string `mapstructure:"endpoint"` // host:port
	Voice    string `mapstructure:"voice"`    // used when no voice is selected
}

// CacheConfig controls the synthesized audio cache.
type CacheConfig struct {
	Dir       string `mapstructure:"dir"`
	DiskWrite bool   `mapstructure:"disk_write"`
}

// DefaultsConfig seeds the parameter store.
type DefaultsConfig struct {
	Voice  string  `mapstructure:"voice"`
	Rate   float64 `mapstructure:"rate"`
	Pitch  float64 `mapstructure:"pitch"`
	Volume float64 `mapstructure:"volume"`
}

// DictationConfig configures whisper voice input.
type DictationConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WhisperBin string `mapstructure:"whisper_bin"`
	Model      string `mapstructure:"model"`
	RecordSecs int    `mapstructure:"record_secs"`
}

// RecordDuration is the dictation clip length.
func (d DictationConfig) RecordDuration() time.Duration {
	return time.Duration(d.RecordSecs) * time.Second
}

// LogConfig selects the log level and destination. File "stderr" logs to
// the console.
type LogConfig struct {
	Level string `mapstructure:"level"` // off, normal, verbose
	File  string `mapstructure:"file"`
}

// Load reads the configuration from file, environment variables, and
// defaults. If configFile is non-empty it is used directly; otherwise
// readaloud.yaml is searched in ., ./configs and $HOME/.config/readaloud.
// A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("engine", EngineAzure)
	v.SetDefault("azure.key", "")
	v.SetDefault("azure.region", "")
	v.SetDefault("azure.format", "riff-24khz-16bit-mono-pcm")
	v.SetDefault("azure.timeout", 30*time.Second)
	v.SetDefault("piper.endpoint", "localhost:10200")
	v.SetDefault("piper.voice", "")
	v.SetDefault("cache.dir", ".readaloud-cache")
	v.SetDefault("cache.disk_write", true)
	v.SetDefault("defaults.voice", "")
	v.SetDefault("defaults.rate", domain.DefaultRate)
	v.SetDefault("defaults.pitch", domain.DefaultPitch)
	v.SetDefault("defaults.volume", domain.DefaultVolume)
	v.SetDefault("dictation.enabled", false)
	v.SetDefault("dictation.whisper_bin", "whisper-cli")
	v.SetDefault("dictation.model", "bin/ggml-small.bin")
	v.SetDefault("dictation.record_secs", 5)
	v.SetDefault("log.level", "normal")
	v.SetDefault("log.file", ".readaloud-logs/readaloud.log")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("readaloud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "readaloud"))
		}
	}

	// READALOUD_ENGINE, READALOUD_PIPER_ENDPOINT, etc.
	v.SetEnvPrefix("READALOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Azure credentials also come from the plain names used in .env files.
	_ = v.BindEnv("azure.key", "READALOUD_AZURE_KEY", "AZURE_SPEECH_KEY")
	_ = v.BindEnv("azure.region", "READALOUD_AZURE_REGION", "AZURE_SPEECH_REGION")

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineAzure, EnginePiper, EngineNoop:
	default:
		return &domain.ValidationError{Field: "engine", Err: fmt.Errorf("unknown engine %q (want azure, piper or noop)", c.Engine)}
	}
	if c.Dictation.RecordSecs <= 0 {
		return &domain.ValidationError{Field: "dictation.record_secs", Err: fmt.Errorf("must be positive, got %d", c.Dictation.RecordSecs)}
	}
	if c.Azure.Timeout <= 0 {
		return &domain.ValidationError{Field: "azure.timeout", Err: fmt.Errorf("must be positive, got %s", c.Azure.Timeout)}
	}
	if c.Engine == EngineAzure {
		if _, err := c.Azure.SampleRate(); err != nil {
			return &domain.ValidationError{Field: "azure.format", Err: err}
		}
	}
	return nil
}

// HasAzureCredentials reports whether both key and region are set.
func (c *Config) HasAzureCredentials() bool {
	return c.Azure.Key != "" && c.Azure.Region != ""
}
