package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	S3          S3Config          `yaml:"s3"`
	Matchmaking MatchmakingConfig `yaml:"matchmaking"`
	Typing      TypingConfig      `yaml:"typing"`
	Tasks       TasksConfig       `yaml:"tasks"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	CORSOrigins     string        `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	ServiceURL string `yaml:"service_url"`
	SecretKey  string `yaml:"secret_key"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

type MatchmakingConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TypingConfig struct {
	Debounce      time.Duration `yaml:"debounce"`
	SilenceWindow time.Duration `yaml:"silence_window"`
	RemoteExpiry  time.Duration `yaml:"remote_expiry"`
}

type TasksConfig struct {
	BreakDuration time.Duration `yaml:"break_duration"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            8003,
			BasePath:        "/api/office",
			Env:             "dev",
			LogLevel:        "debug",
			CORSOrigins:     "*",
			ShutdownTimeout: 10 * time.Second,
		},
		Matchmaking: MatchmakingConfig{
			PollInterval: 1 * time.Second,
			Timeout:      15 * time.Second,
		},
		Typing: TypingConfig{
			Debounce:      3 * time.Second,
			SilenceWindow: 5 * time.Second,
			RemoteExpiry:  8 * time.Second,
		},
		Tasks: TasksConfig{
			BreakDuration: 5 * time.Minute,
		},
	}

	// Load from yaml file if exists
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if basePath := os.Getenv("SERVER_BASE_PATH"); basePath != "" {
		cfg.Server.BasePath = basePath
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Server.Env = env
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = origins
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if authURL := os.Getenv("AUTH_SERVICE_URL"); authURL != "" {
		cfg.Auth.ServiceURL = authURL
	}
	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		cfg.Auth.SecretKey = secretKey
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.S3.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		cfg.S3.Region = region
	}
	overrideDuration("MATCHMAKING_POLL_INTERVAL", &cfg.Matchmaking.PollInterval)
	overrideDuration("MATCHMAKING_TIMEOUT", &cfg.Matchmaking.Timeout)
	overrideDuration("TYPING_DEBOUNCE", &cfg.Typing.Debounce)
	overrideDuration("TYPING_SILENCE_WINDOW", &cfg.Typing.SilenceWindow)
	overrideDuration("TYPING_REMOTE_EXPIRY", &cfg.Typing.RemoteExpiry)
	overrideDuration("TASK_BREAK_DURATION", &cfg.Tasks.BreakDuration)

	return cfg, nil
}

func overrideDuration(env string, target *time.Duration) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}
