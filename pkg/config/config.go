package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Cadence modes used to convert "evaluations needed" into days.
const (
	CadenceModeFixed   = "fixed"
	CadenceModeDerived = "derived"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Log           LogConfig
	Evolution     EvolutionConfig
	Notifications NotificationConfig
	Metrics       MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the values needed to verify access tokens issued by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// EvolutionConfig tunes the read-side progression analytics.
type EvolutionConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	CadenceMode  string
	CadenceDays  int
}

// NotificationConfig controls post-commit change notifications.
type NotificationConfig struct {
	Enabled bool
	Channel string
	Workers int
	Retries int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cadenceDays := v.GetInt("EVOLUTION_CADENCE_DAYS")
	if cadenceDays <= 0 {
		cadenceDays = 30
	}
	cadenceMode := strings.ToLower(strings.TrimSpace(v.GetString("EVOLUTION_CADENCE_MODE")))
	if cadenceMode != CadenceModeDerived {
		cadenceMode = CadenceModeFixed
	}
	cfg.Evolution = EvolutionConfig{
		CacheEnabled: v.GetBool("ENABLE_EVOLUTION_CACHE"),
		CacheTTL:     parseDuration(v.GetString("EVOLUTION_CACHE_TTL"), 10*time.Minute),
		CadenceMode:  cadenceMode,
		CadenceDays:  cadenceDays,
	}

	cfg.Notifications = NotificationConfig{
		Enabled: v.GetBool("ENABLE_NOTIFICATIONS"),
		Channel: v.GetString("NOTIFY_CHANNEL"),
		Workers: v.GetInt("NOTIFY_WORKERS"),
		Retries: v.GetInt("NOTIFY_RETRIES"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "swim_eval")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_EVOLUTION_CACHE", false)
	v.SetDefault("EVOLUTION_CACHE_TTL", "10m")
	v.SetDefault("EVOLUTION_CADENCE_MODE", CadenceModeFixed)
	v.SetDefault("EVOLUTION_CADENCE_DAYS", 30)

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFY_CHANNEL", "swim-eval:changes")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
