package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Recognition RecognitionConfig
	Emotion     EmotionConfig
	Storage     StorageConfig
	Roster      RosterConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RecognitionConfig tunes the face extractor client and the matcher.
type RecognitionConfig struct {
	ExtractorURL string
	Timeout      time.Duration
	Tolerance    float64
	EmbeddingDim int
	MatchPolicy  string
}

// EmotionConfig tunes the affect extractor client.
type EmotionConfig struct {
	ExtractorURL string
	Timeout      time.Duration
}

// StorageConfig locates on-disk photo storage.
type StorageConfig struct {
	PhotoDir string
}

// RosterConfig controls caching of course rosters and face references.
type RosterConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Recognition = RecognitionConfig{
		ExtractorURL: v.GetString("FACE_EXTRACTOR_URL"),
		Timeout:      parseDuration(v.GetString("FACE_EXTRACTOR_TIMEOUT"), 15*time.Second),
		Tolerance:    v.GetFloat64("FACE_MATCH_TOLERANCE"),
		EmbeddingDim: v.GetInt("FACE_EMBEDDING_DIM"),
		MatchPolicy:  v.GetString("FACE_MATCH_POLICY"),
	}

	cfg.Emotion = EmotionConfig{
		ExtractorURL: v.GetString("EMOTION_EXTRACTOR_URL"),
		Timeout:      parseDuration(v.GetString("EMOTION_EXTRACTOR_TIMEOUT"), 15*time.Second),
	}

	cfg.Storage = StorageConfig{
		PhotoDir: v.GetString("PHOTO_STORAGE_DIR"),
	}

	cfg.Roster = RosterConfig{
		CacheTTL: parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FACE_EXTRACTOR_URL", "http://localhost:5001")
	v.SetDefault("FACE_EXTRACTOR_TIMEOUT", "15s")
	v.SetDefault("FACE_MATCH_TOLERANCE", 0.6)
	v.SetDefault("FACE_EMBEDDING_DIM", 128)
	v.SetDefault("FACE_MATCH_POLICY", "first")

	v.SetDefault("EMOTION_EXTRACTOR_URL", "http://localhost:5002")
	v.SetDefault("EMOTION_EXTRACTOR_TIMEOUT", "15s")

	v.SetDefault("PHOTO_STORAGE_DIR", "./static/faces")

	v.SetDefault("ROSTER_CACHE_TTL", "5m")
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
