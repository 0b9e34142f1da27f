package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values shared by the arena binaries.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	ContestAPIURL        string
	DatabaseURL          string
	DatabaseDriver       string
	RedisURL             string
	NATSURL              string
	JWTSecret            string
	PollInterval         time.Duration
	TickInterval         time.Duration
	RequestTimeout       time.Duration
	ProblemListCacheTTL  time.Duration
	SessionIdleTTL       time.Duration
	ContestSweepInterval time.Duration
	DockerHost           string
	ExecutionTimeout     time.Duration
	CodeRunMemoryMB      int
	CodeRunCPUShares     int
	CloudinaryCloudName  string
	CloudinaryAPIKey     string
	CloudinaryAPISecret  string
	CloudinaryFolder     string
	DefaultLanguage      string
	EventChannel         string
	RunsPerMinute        int
	CORSOrigins          string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the app runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "local"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARENA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Arena")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("contest_api.url", "http://localhost:8081")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("poll_interval", "10s")
	v.SetDefault("tick_interval", "1s")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("problem_list.cache_ttl", "1m")
	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("contest.sweep_interval", "5m")
	v.SetDefault("execution_timeout_ms", 5000)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("session.default_language", "JAVA")
	v.SetDefault("events.channel", "arena")
	v.SetDefault("rate_limit.runs_per_minute", 10)
	v.SetDefault("cors.allow_origins", "*")

	durations := map[string]*time.Duration{}
	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		ContestAPIURL:       strings.TrimRight(v.GetString("contest_api.url"), "/"),
		DatabaseURL:         v.GetString("database.url"),
		DatabaseDriver:      strings.ToLower(v.GetString("database.driver")),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		DockerHost:          v.GetString("docker_host"),
		CodeRunMemoryMB:     v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:    v.GetInt("code_run_cpu_shares"),
		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),
		DefaultLanguage:     strings.ToUpper(strings.TrimSpace(v.GetString("session.default_language"))),
		EventChannel:        v.GetString("events.channel"),
		RunsPerMinute:       v.GetInt("rate_limit.runs_per_minute"),
		CORSOrigins:         strings.TrimSpace(v.GetString("cors.allow_origins")),
	}
	durations["poll_interval"] = &cfg.PollInterval
	durations["tick_interval"] = &cfg.TickInterval
	durations["request_timeout"] = &cfg.RequestTimeout
	durations["problem_list.cache_ttl"] = &cfg.ProblemListCacheTTL
	durations["session.idle_ttl"] = &cfg.SessionIdleTTL
	durations["contest.sweep_interval"] = &cfg.ContestSweepInterval

	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		*target = parsed
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	cfg.ExecutionTimeout = time.Duration(timeoutMs) * time.Millisecond

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	if cfg.RunsPerMinute <= 0 {
		cfg.RunsPerMinute = 10
	}

	return cfg, nil
}
