// Package config loads voice-ledger configuration from an optional YAML file,
// a .env file and VOICELEDGER_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// VOICELEDGER_STORAGE_DRIVER=sqlite.
const EnvPrefix = "VOICELEDGER"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Capture CaptureConfig `mapstructure:"capture"`
	Export  ExportConfig  `mapstructure:"export"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver   string        `mapstructure:"driver"` // bolt | sqlite | redis | memory
	Path     string        `mapstructure:"path"`   // bolt or sqlite file
	Debounce time.Duration `mapstructure:"debounce"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisKey      string `mapstructure:"redis_key"`
}

// AIConfig configures the transcription backend.
type AIConfig struct {
	Provider           string        `mapstructure:"provider"` // gemini | openai
	APIKey             string        `mapstructure:"api_key"`
	Model              string        `mapstructure:"model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type CaptureConfig struct {
	NoticeDuration time.Duration `mapstructure:"notice_duration"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// ExportConfig configures the share/download fallbacks.
type ExportConfig struct {
	DownloadDir  string        `mapstructure:"download_dir"`
	ShareCommand []string      `mapstructure:"share_command"`
	EmailTo      string        `mapstructure:"email_to"`
	EmailSubject string        `mapstructure:"email_subject"`
	EmailDelay   time.Duration `mapstructure:"email_delay"`
	DriveURL     string        `mapstructure:"drive_url"`

	Bucket          string `mapstructure:"bucket"`
	BucketPrefix    string `mapstructure:"bucket_prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".voice-ledger")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.path", filepath.Join(dataDir, "ledger.db"))
	v.SetDefault("storage.debounce", 500*time.Millisecond)
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_key", "voiceledger:ledger")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.transcription_model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("capture.notice_duration", 3*time.Second)
	v.SetDefault("capture.workers", 4)
	v.SetDefault("capture.queue_size", 32)

	v.SetDefault("export.download_dir", filepath.Join(home, "Downloads"))
	v.SetDefault("export.share_command", []string{})
	v.SetDefault("export.email_to", "")
	v.SetDefault("export.email_subject", "Sổ chi tiết doanh thu")
	v.SetDefault("export.email_delay", 1500*time.Millisecond)
	v.SetDefault("export.drive_url", "https://drive.google.com/drive/my-drive")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.bucket_prefix", "exports/")
	v.SetDefault("export.credentials_file", "")
}

// Load reads configuration. path may name an explicit YAML file; when empty,
// voiceledger.yaml is looked up in the working directory and
// ~/.voice-ledger, and its absence is not an error.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("voiceledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".voice-ledger"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.applyProviderEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyProviderEnv falls back to the provider SDKs' conventional variables
// when no key was configured explicitly.
func (c *Config) applyProviderEnv() {
	if c.AI.APIKey != "" {
		return
	}
	switch c.AI.Provider {
	case "gemini":
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				c.AI.APIKey = v
				return
			}
		}
	case "openai":
		c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "bolt", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown ai.provider %q", c.AI.Provider)
	}
	if c.Storage.Debounce < 0 {
		return fmt.Errorf("config: storage.debounce must not be negative")
	}
	if c.Capture.NoticeDuration <= 0 {
		return fmt.Errorf("config: capture.notice_duration must be positive")
	}
	if c.Capture.Workers <= 0 {
		c.Capture.Workers = 1
	}
	return nil
}

// AICredentialPresent reports whether AI features can be attempted at all.
func (c *Config) AICredentialPresent() bool {
	return strings.TrimSpace(c.AI.APIKey) != ""
}
