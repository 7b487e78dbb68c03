package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. UTTER_LOG_LEVEL
const EnvPrefix = "UTTER_"

// Config represents the application configuration
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Output     OutputConfig     `yaml:"output"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ListenConfig bounds a single utterance
type ListenConfig struct {
	SilentTimeout    int           `yaml:"silent_timeout" env:"SILENT_TIMEOUT, overwrite" validate:"min=1"`
	RecordingTimeout int           `yaml:"recording_timeout" env:"RECORDING_TIMEOUT, overwrite" validate:"min=1"`
	PollInterval     time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL, overwrite" validate:"gt=0"`
}

// AudioConfig selects the capture device. RingBufferBytes must be exactly one
// 10ms frame: a drain holding several frames is classified as unknown, which
// counts as silence and can end an utterance in the middle of speech.
type AudioConfig struct {
	Device          string `yaml:"device" env:"DEVICE, overwrite"`
	RingBufferBytes int    `yaml:"ring_buffer_bytes" env:"RING_BUFFER_BYTES, overwrite" validate:"eq=320"`
}

// VADConfig configures the frame classifier
type VADConfig struct {
	Mode      string  `yaml:"mode" env:"VAD_MODE, overwrite" validate:"oneof=energy"`
	Threshold float64 `yaml:"threshold" env:"VAD_THRESHOLD, overwrite" validate:"gt=0,lt=1"`
}

// OutputConfig controls where utterances go and how results are printed
type OutputConfig struct {
	Dir    string `yaml:"dir" env:"OUTPUT_DIR, overwrite"`
	Format string `yaml:"format" env:"OUTPUT_FORMAT, overwrite" validate:"oneof=console json text"`
}

// ArchiveConfig enables copying utterances to S3
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled" env:"ARCHIVE_ENABLED, overwrite"`
	Bucket          string `yaml:"bucket" env:"ARCHIVE_BUCKET, overwrite" validate:"required_if=Enabled true"`
	Region          string `yaml:"region" env:"ARCHIVE_REGION, overwrite"`
	Endpoint        string `yaml:"endpoint" env:"ARCHIVE_ENDPOINT, overwrite" validate:"omitempty,url"`
	Prefix          string `yaml:"prefix" env:"ARCHIVE_PREFIX, overwrite"`
	AccessKeyID     string `yaml:"access_key_id" env:"ARCHIVE_ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string `yaml:"secret_access_key" env:"ARCHIVE_SECRET_ACCESS_KEY, overwrite"`
}

// TranscribeConfig points at an optional Vosk model. ModelPath wins over
// Model, which names a catalog model inside ModelsDir.
type TranscribeConfig struct {
	ModelPath string `yaml:"model_path" env:"TRANSCRIBE_MODEL_PATH, overwrite"`
	Model     string `yaml:"model" env:"TRANSCRIBE_MODEL, overwrite"`
	ModelsDir string `yaml:"models_dir" env:"TRANSCRIBE_MODELS_DIR, overwrite"`
}

// ServerConfig is used by the daemon
type ServerConfig struct {
	GRPCPort    int    `yaml:"grpc_port" env:"GRPC_PORT, overwrite" validate:"min=1,max=65535"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR, overwrite"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn error critical"`
	Format string `yaml:"format" env:"LOG_FORMAT, overwrite" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Listen defaults
	cfg.Listen.SilentTimeout = 3
	cfg.Listen.RecordingTimeout = 15
	cfg.Listen.PollInterval = 10 * time.Millisecond

	// Audio defaults: one 10ms frame of 16kHz mono S16
	cfg.Audio.RingBufferBytes = 320

	// VAD defaults
	cfg.VAD.Mode = "energy"
	cfg.VAD.Threshold = 0.01

	// Output defaults
	cfg.Output.Dir = filepath.Join(os.TempDir(), "utter")
	cfg.Output.Format = "console"

	// Transcription is off until a model is configured
	cfg.Transcribe.ModelsDir = "models"

	// Server defaults
	cfg.Server.GRPCPort = 50051
	cfg.Server.MetricsAddr = ":9464"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// Load loads configuration from file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback resolves the configuration file, applies UTTER_*
// environment overrides and validates the result.
// Priority: explicit path > ~/.utterrc > /etc/utter/config.yaml > defaults
func LoadWithFallback(explicitPath string) (*Config, error) {
	cfg, err := loadFile(explicitPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(context.Background(), envconfig.OsLookuper()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(explicitPath string) (*Config, error) {
	// If explicit path is provided, use it
	if explicitPath != "" {
		return Load(explicitPath)
	}

	// Try user config (~/.utterrc)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".utterrc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// Try system config (/etc/utter/config.yaml)
	systemConfigPath := "/etc/utter/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		cfg, err := Load(systemConfigPath)
		if err == nil {
			return cfg, nil
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// ApplyEnv overwrites fields from UTTER_* variables found by lookuper
func (c *Config) ApplyEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   c,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	})
	if err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
