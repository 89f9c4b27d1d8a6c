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
	Timeline    TimelineConfig
	Travel      TravelConfig
	AutoScroll  AutoScrollConfig
	Buffer      BufferConfig
	Virtualizer VirtualizerConfig
	Exports     ExportsConfig
	Feeds       FeedsConfig
	Render      RenderConfig
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

// JWTConfig guards the mutation routes. Token issuance lives outside this
// service; only verification happens here.
type JWTConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimelineConfig fixes the linear time-to-pixel scale and card geometry used
// by the layout engine.
type TimelineConfig struct {
	HourWidth       float64
	CardHeight      float64
	LaneGap         float64
	LanePadding     float64
	SnapMinutes     int
	MinDuration     time.Duration
	DefaultDuration time.Duration
	MinVisualWidth  float64
}

// TravelConfig tunes the travel gap estimator. The tight/insufficient
// factors are heuristic product constants, not structural invariants.
type TravelConfig struct {
	AverageSpeedMph      float64
	MinGapMinutes        int
	MinTravelMinutes     int
	DefaultTravelMinutes int
	TightFactor          float64
	InsufficientFactor   float64
}

// AutoScrollConfig shapes the per-frame edge scrolling during a drag.
type AutoScrollConfig struct {
	EdgeBand     float64
	InnerBand    float64
	MinSpeed     float64
	MaxSpeed     float64
	Acceleration float64
}

// BufferConfig governs the materialized time window.
type BufferConfig struct {
	InitialDays         int
	ExtendDays          int
	GuardMargin         time.Duration
	ScrollEdgeThreshold float64
}

// VirtualizerConfig tunes the resource lane virtualizer.
type VirtualizerConfig struct {
	Overscan float64
}

// ExportsConfig configures asynchronous day-sheet generation.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	CleanupSchedule   string
	RetainFor         time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// FeedsConfig toggles the per-resource ICS feed.
type FeedsConfig struct {
	ICSEnabled bool
}

// RenderConfig points at an optional YAML theme for SVG board snapshots.
type RenderConfig struct {
	ThemePath string
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
		Enabled: v.GetBool("JWT_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timeline = TimelineConfig{
		HourWidth:       v.GetFloat64("TIMELINE_HOUR_WIDTH"),
		CardHeight:      v.GetFloat64("TIMELINE_CARD_HEIGHT"),
		LaneGap:         v.GetFloat64("TIMELINE_LANE_GAP"),
		LanePadding:     v.GetFloat64("TIMELINE_LANE_PADDING"),
		SnapMinutes:     v.GetInt("TIMELINE_SNAP_MINUTES"),
		MinDuration:     parseDuration(v.GetString("TIMELINE_MIN_DURATION"), 15*time.Minute),
		DefaultDuration: parseDuration(v.GetString("TIMELINE_DEFAULT_DURATION"), 2*time.Hour),
		MinVisualWidth:  v.GetFloat64("TIMELINE_MIN_VISUAL_WIDTH"),
	}

	cfg.Travel = TravelConfig{
		AverageSpeedMph:      v.GetFloat64("TRAVEL_AVERAGE_SPEED_MPH"),
		MinGapMinutes:        v.GetInt("TRAVEL_MIN_GAP_MINUTES"),
		MinTravelMinutes:     v.GetInt("TRAVEL_MIN_TRAVEL_MINUTES"),
		DefaultTravelMinutes: v.GetInt("TRAVEL_DEFAULT_TRAVEL_MINUTES"),
		TightFactor:          v.GetFloat64("TRAVEL_TIGHT_FACTOR"),
		InsufficientFactor:   v.GetFloat64("TRAVEL_INSUFFICIENT_FACTOR"),
	}

	cfg.AutoScroll = AutoScrollConfig{
		EdgeBand:     v.GetFloat64("AUTOSCROLL_EDGE_BAND"),
		InnerBand:    v.GetFloat64("AUTOSCROLL_INNER_BAND"),
		MinSpeed:     v.GetFloat64("AUTOSCROLL_MIN_SPEED"),
		MaxSpeed:     v.GetFloat64("AUTOSCROLL_MAX_SPEED"),
		Acceleration: v.GetFloat64("AUTOSCROLL_ACCELERATION"),
	}

	cfg.Buffer = BufferConfig{
		InitialDays:         v.GetInt("BUFFER_INITIAL_DAYS"),
		ExtendDays:          v.GetInt("BUFFER_EXTEND_DAYS"),
		GuardMargin:         parseDuration(v.GetString("BUFFER_GUARD_MARGIN"), 36*time.Hour),
		ScrollEdgeThreshold: v.GetFloat64("BUFFER_SCROLL_EDGE_THRESHOLD"),
	}

	cfg.Virtualizer = VirtualizerConfig{
		Overscan: v.GetFloat64("VIRTUALIZER_OVERSCAN"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		CleanupSchedule:   v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
		RetainFor:         parseDuration(v.GetString("EXPORTS_RETAIN_FOR"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	cfg.Feeds = FeedsConfig{
		ICSEnabled: v.GetBool("ENABLE_ICS_FEEDS"),
	}

	cfg.Render = RenderConfig{
		ThemePath: v.GetString("RENDER_THEME_PATH"),
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
	v.SetDefault("DB_NAME", "dispatch_board")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMELINE_HOUR_WIDTH", 80.0)
	v.SetDefault("TIMELINE_CARD_HEIGHT", 48.0)
	v.SetDefault("TIMELINE_LANE_GAP", 4.0)
	v.SetDefault("TIMELINE_LANE_PADDING", 8.0)
	v.SetDefault("TIMELINE_SNAP_MINUTES", 15)
	v.SetDefault("TIMELINE_MIN_DURATION", "15m")
	v.SetDefault("TIMELINE_DEFAULT_DURATION", "2h")
	v.SetDefault("TIMELINE_MIN_VISUAL_WIDTH", 12.0)

	v.SetDefault("TRAVEL_AVERAGE_SPEED_MPH", 25.0)
	v.SetDefault("TRAVEL_MIN_GAP_MINUTES", 15)
	v.SetDefault("TRAVEL_MIN_TRAVEL_MINUTES", 5)
	v.SetDefault("TRAVEL_DEFAULT_TRAVEL_MINUTES", 15)
	v.SetDefault("TRAVEL_TIGHT_FACTOR", 1.5)
	v.SetDefault("TRAVEL_INSUFFICIENT_FACTOR", 1.0)

	v.SetDefault("AUTOSCROLL_EDGE_BAND", 200.0)
	v.SetDefault("AUTOSCROLL_INNER_BAND", 80.0)
	v.SetDefault("AUTOSCROLL_MIN_SPEED", 8.0)
	v.SetDefault("AUTOSCROLL_MAX_SPEED", 45.0)
	v.SetDefault("AUTOSCROLL_ACCELERATION", 2.5)

	v.SetDefault("BUFFER_INITIAL_DAYS", 3)
	v.SetDefault("BUFFER_EXTEND_DAYS", 2)
	v.SetDefault("BUFFER_GUARD_MARGIN", "36h")
	v.SetDefault("BUFFER_SCROLL_EDGE_THRESHOLD", 300.0)

	v.SetDefault("VIRTUALIZER_OVERSCAN", 200.0)

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "@hourly")
	v.SetDefault("EXPORTS_RETAIN_FOR", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_ICS_FEEDS", false)

	v.SetDefault("RENDER_THEME_PATH", "")
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
