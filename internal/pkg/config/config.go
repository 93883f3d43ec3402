package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Proximity ProximityConfig `mapstructure:"proximity"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	// SessionTTL bounds the once-per-session announcement latch, in seconds.
	SessionTTL int `mapstructure:"session_ttl"`
	// LocationTTL is how long a device's latest reading is kept, in seconds.
	LocationTTL int `mapstructure:"location_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Announcement sinks.
const (
	SinkLog   = "log"
	SinkNATS  = "nats"
	SinkKafka = "kafka"
)

// Point sources.
const (
	SourceConfig   = "config"
	SourceDatabase = "database"
)

type ProximityConfig struct {
	ThresholdMeters float64       `mapstructure:"threshold_meters"`
	Language        string        `mapstructure:"language"`
	SpeechRate      float64       `mapstructure:"speech_rate"`
	AnnounceOnce    bool          `mapstructure:"announce_once"`
	Sink            string        `mapstructure:"sink"`
	Source          string        `mapstructure:"source"`
	Points          []PointConfig `mapstructure:"points"`
}

// PointConfig is one configured point of interest.
type PointConfig struct {
	Name  string  `mapstructure:"name"`
	Label string  `mapstructure:"label"`
	Lat   float64 `mapstructure:"lat"`
	Lon   float64 `mapstructure:"lon"`
}

// DefaultPoints are the two points shipped with the application.
func DefaultPoints() []PointConfig {
	return []PointConfig{
		{Name: "警車", Label: "新和國小", Lat: 24.9854889, Lon: 121.5176303},
		{Name: "救護車", Label: "興南夜市", Lat: 24.9885223, Lon: 121.5119486},
	}
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Environment variables: SCHOOLMAPS_PROXIMITY_THRESHOLD_METERS → proximity.threshold_meters
	v.SetEnvPrefix("SCHOOLMAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "schoolmaps")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "schoolmaps")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "schoolmaps")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.session_ttl", 12*60*60)
	v.SetDefault("valkey.location_ttl", 15*60)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "schoolmaps.announcements")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "announcement-queue")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("proximity.threshold_meters", domain.DefaultAlertThreshold)
	v.SetDefault("proximity.language", "zh-TW")
	v.SetDefault("proximity.speech_rate", 0.5)
	v.SetDefault("proximity.announce_once", true)
	v.SetDefault("proximity.sink", SinkLog)
	v.SetDefault("proximity.source", SourceConfig)

	points := make([]map[string]any, 0, 2)
	for _, p := range DefaultPoints() {
		points = append(points, map[string]any{"name": p.Name, "label": p.Label, "lat": p.Lat, "lon": p.Lon})
	}
	v.SetDefault("proximity.points", points)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Proximity.Source == SourceDatabase {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.Valkey.SessionTTL <= 0 {
		errs = append(errs, "valkey.session_ttl must be positive")
	}
	if c.Valkey.LocationTTL <= 0 {
		errs = append(errs, "valkey.location_ttl must be positive")
	}

	p := c.Proximity
	if p.ThresholdMeters <= 0 {
		errs = append(errs, fmt.Sprintf("proximity.threshold_meters must be positive, got %g", p.ThresholdMeters))
	}
	if p.Language != "zh-TW" {
		errs = append(errs, fmt.Sprintf("proximity.language %q is not supported", p.Language))
	}
	switch p.Sink {
	case SinkLog:
	case SinkNATS:
		if c.NATS.URL == "" {
			errs = append(errs, "nats.url is required for the nats sink")
		}
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, "kafka.brokers and kafka.topic are required for the kafka sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("proximity.sink must be log, nats or kafka, got %q", p.Sink))
	}
	switch p.Source {
	case SourceConfig, SourceDatabase:
	default:
		errs = append(errs, fmt.Sprintf("proximity.source must be config or database, got %q", p.Source))
	}

	seen := make(map[string]bool, len(p.Points))
	for i, pt := range p.Points {
		if pt.Name == "" {
			errs = append(errs, fmt.Sprintf("proximity.points[%d].name is required", i))
			continue
		}
		if seen[pt.Name] {
			errs = append(errs, fmt.Sprintf("proximity.points[%d].name %q is duplicated", i, pt.Name))
		}
		seen[pt.Name] = true
		if pt.Lat < -90 || pt.Lat > 90 {
			errs = append(errs, fmt.Sprintf("proximity.points[%d].lat must be -90..90, got %g", i, pt.Lat))
		}
		if pt.Lon < -180 || pt.Lon > 180 {
			errs = append(errs, fmt.Sprintf("proximity.points[%d].lon must be -180..180, got %g", i, pt.Lon))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// PointSet converts the configured points, keeping their order.
func (c *Config) PointSet() (domain.PointSet, error) {
	points := make([]domain.PointOfInterest, 0, len(c.Proximity.Points))
	for _, p := range c.Proximity.Points {
		points = append(points, domain.PointOfInterest{
			Name:     p.Name,
			Label:    p.Label,
			Location: domain.GeoPoint{Lat: p.Lat, Lon: p.Lon},
		})
	}
	return domain.NewPointSet(points...)
}
