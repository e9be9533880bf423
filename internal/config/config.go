package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultMessageDelay     = 3 * time.Second
	DefaultAnalysisAttempts = 3
	DefaultAnalysisBackoff  = time.Second
	DefaultAnalysisTimeout  = 30 * time.Second
	DefaultVisionModel      = "llama-3.2-90b-vision-preview"
	DefaultAudioModel       = "whisper-large-v3"
	DefaultAudioLanguage    = "pt"
	DefaultProofTTL         = 24 * time.Hour
	DefaultSweepSchedule    = "@hourly"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultOrderCacheTTL    = 15 * time.Minute
	DefaultWorkers          = 8
	DefaultQueueSize        = 128
	DefaultTaskTimeout      = 2 * time.Minute

	DefaultTrackingAPIURL   = "https://api.17track.net"
	DefaultTrackingSchedule = "0 20 * * *"
	DefaultTrackingTimezone = "America/Sao_Paulo"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	WAPI     WAPIConfig     `toml:"wapi"`
	Analysis AnalysisConfig `toml:"analysis"`
	Proofs   ProofsConfig   `toml:"proofs"`
	Redis    RedisConfig    `toml:"redis"`
	Orders   OrdersConfig   `toml:"orders"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Tracking TrackingConfig `toml:"tracking"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr          string `toml:"addr" validate:"required"`
	WebhookSecret string `toml:"webhook_secret"`
}

// WAPIConfig configures the W-API WhatsApp gateway used for media re-upload
// requests and outbound text messages.
type WAPIConfig struct {
	APIURL           string        `toml:"api_url" validate:"required,url"`
	Token            string        `toml:"token" validate:"required"`
	ConnectionKey    string        `toml:"connection_key" validate:"required"`
	DepartmentNumber string        `toml:"department_number" validate:"required"`
	MessageDelay     time.Duration `toml:"message_delay"`
}

type AnalysisConfig struct {
	BaseURL            string        `toml:"base_url" validate:"required,url"`
	APIKey             string        `toml:"api_key" validate:"required"`
	VisionModel        string        `toml:"vision_model"`
	TranscriptionModel string        `toml:"transcription_model"`
	Language           string        `toml:"language"`
	MaxAttempts        int           `toml:"max_attempts" validate:"min=1"`
	BaseDelay          time.Duration `toml:"base_delay"`
	RequestTimeout     time.Duration `toml:"request_timeout"`
}

type ProofsConfig struct {
	TTL           time.Duration `toml:"ttl"`
	SweepSchedule string        `toml:"sweep_schedule"`
}

type RedisConfig struct {
	Addr     string `toml:"addr" validate:"required"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type OrdersConfig struct {
	APIURL   string        `toml:"api_url" validate:"required,url"`
	Token    string        `toml:"token"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

// TrackingConfig configures the daily customs summary. The feature is off
// until an API key and a recipient number are set.
type TrackingConfig struct {
	APIURL    string `toml:"api_url" validate:"omitempty,url"`
	APIKey    string `toml:"api_key"`
	Recipient string `toml:"recipient"`
	Schedule  string `toml:"schedule"`
	Timezone  string `toml:"timezone"`
}

func (c TrackingConfig) Enabled() bool { return c.APIKey != "" && c.Recipient != "" }

type PipelineConfig struct {
	Workers     int           `toml:"workers" validate:"min=1"`
	QueueSize   int           `toml:"queue_size" validate:"min=1"`
	TaskTimeout time.Duration `toml:"task_timeout"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		WAPI: WAPIConfig{
			MessageDelay: DefaultMessageDelay,
		},
		Analysis: AnalysisConfig{
			VisionModel:        DefaultVisionModel,
			TranscriptionModel: DefaultAudioModel,
			Language:           DefaultAudioLanguage,
			MaxAttempts:        DefaultAnalysisAttempts,
			BaseDelay:          DefaultAnalysisBackoff,
			RequestTimeout:     DefaultAnalysisTimeout,
		},
		Proofs: ProofsConfig{
			TTL:           DefaultProofTTL,
			SweepSchedule: DefaultSweepSchedule,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Orders: OrdersConfig{
			CacheTTL: DefaultOrderCacheTTL,
		},
		Pipeline: PipelineConfig{
			Workers:     DefaultWorkers,
			QueueSize:   DefaultQueueSize,
			TaskTimeout: DefaultTaskTimeout,
		},
		Tracking: TrackingConfig{
			APIURL:   DefaultTrackingAPIURL,
			Schedule: DefaultTrackingSchedule,
			Timezone: DefaultTrackingTimezone,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file, matching how the deployment injects credentials.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAPI_URL"); v != "" {
		cfg.WAPI.APIURL = v
	}
	if v := os.Getenv("WAPI_TOKEN"); v != "" {
		cfg.WAPI.Token = v
	}
	if v := os.Getenv("WAPI_CONNECTION_KEY"); v != "" {
		cfg.WAPI.ConnectionKey = v
	}
	if v := os.Getenv("ANALYSIS_API_KEY"); v != "" {
		cfg.Analysis.APIKey = v
	}
	if v := os.Getenv("ORDERS_TOKEN"); v != "" {
		cfg.Orders.Token = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TRACK17_API_KEY"); v != "" {
		cfg.Tracking.APIKey = v
	}
	if v := os.Getenv("TECHNICAL_DEPT_NUMBER"); v != "" {
		cfg.Tracking.Recipient = v
	}
}

// Validate checks the loaded config for required fields and value ranges.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
