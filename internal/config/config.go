package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "SCRIBE"

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Agent         ServerConfig        `mapstructure:"agent"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Recorder      RecorderConfig      `mapstructure:"recorder"`
	Mirror        MirrorConfig        `mapstructure:"mirror"`
	Store         StoreConfig         `mapstructure:"store"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	CORS          CORSConfig          `mapstructure:"cors"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// AuthConfig protects the records API with HS256 bearer tokens.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
	Issuer  string `mapstructure:"issuer"`
}

type RemoteConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Token           string        `mapstructure:"token"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type TranscriptionConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	FormType string        `mapstructure:"form_type"`
}

type RecorderConfig struct {
	Command     string        `mapstructure:"command"`
	InputFormat string        `mapstructure:"input_format"`
	InputDevice string        `mapstructure:"input_device"`
	SampleRate  int           `mapstructure:"sample_rate"`
	Channels    int           `mapstructure:"channels"`
	ChunkSize   int           `mapstructure:"chunk_size"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type MirrorConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	Key           string `mapstructure:"key"`
	RedisURL      string `mapstructure:"redis_url"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type StoreConfig struct {
	OfflineWrites bool          `mapstructure:"offline_writes"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type MessagingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	RedisURL string `mapstructure:"redis_url"`
	Channel  string `mapstructure:"channel"`

	// MetricsAddr is where the event worker serves /metrics.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	AllowedMethods []string      `mapstructure:"allowed_methods"`
	AllowedHeaders []string      `mapstructure:"allowed_headers"`
	MaxAge         time.Duration `mapstructure:"max_age"`
}

// Secrets are only ever read from the environment.
type Secrets struct {
	RemoteToken        string `envconfig:"REMOTE_TOKEN"`
	TranscriptionToken string `envconfig:"TRANSCRIPTION_TOKEN"`
	MirrorKey          string `envconfig:"MIRROR_KEY"`
	JWTSecret          string `envconfig:"JWT_SECRET"`
	DBPassword         string `envconfig:"DB_PASSWORD"`
}

// LoadConfig reads .env, then config.yaml from . or ./config, then the
// environment.
func LoadConfig() (*Config, error) {
	return Load(".env", ".", "./config")
}

// Load is LoadConfig with explicit locations. A missing .env or config file
// is not an error; defaults apply.
func Load(envFile string, paths ...string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(secrets)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&c.Remote.Token, s.RemoteToken)
	overlay(&c.Transcription.Token, s.TranscriptionToken)
	overlay(&c.Mirror.EncryptionKey, s.MirrorKey)
	overlay(&c.Auth.Secret, s.JWTSecret)
	overlay(&c.Database.Password, s.DBPassword)
}

func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Agent.Port <= 0 {
		problems = append(problems, "server and agent ports must be positive")
	}
	if c.Remote.BaseURL == "" {
		problems = append(problems, "remote.base_url is required")
	}
	if c.Transcription.BaseURL == "" {
		problems = append(problems, "transcription.base_url is required")
	}
	switch c.Mirror.Driver {
	case "file", "redis", "memory":
	default:
		problems = append(problems, fmt.Sprintf("mirror.driver %q must be file, redis or memory", c.Mirror.Driver))
	}
	if c.Mirror.Driver == "redis" && c.Mirror.RedisURL == "" {
		problems = append(problems, "mirror.redis_url is required for the redis driver")
	}
	if c.Messaging.Enabled && c.Messaging.RedisURL == "" {
		problems = append(problems, "messaging.redis_url is required when messaging is enabled")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		problems = append(problems, "auth.secret is required when auth is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("agent.host", "127.0.0.1")
	v.SetDefault("agent.port", 8090)
	v.SetDefault("agent.read_timeout", 15*time.Second)
	v.SetDefault("agent.write_timeout", 90*time.Second)
	v.SetDefault("agent.request_timeout", 75*time.Second)
	v.SetDefault("agent.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "scribe")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "scribe")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "scribe")

	v.SetDefault("remote.base_url", "http://localhost:8000")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.retry_attempts", 1)
	v.SetDefault("remote.retry_delay", time.Second)
	v.SetDefault("remote.breaker_failures", 5)
	v.SetDefault("remote.breaker_timeout", 30*time.Second)

	v.SetDefault("transcription.base_url", "http://localhost:8000")
	v.SetDefault("transcription.token", "")
	v.SetDefault("transcription.timeout", 60*time.Second)
	v.SetDefault("transcription.form_type", "")

	v.SetDefault("recorder.command", "ffmpeg")
	v.SetDefault("recorder.input_format", "pulse")
	v.SetDefault("recorder.input_device", "default")
	v.SetDefault("recorder.sample_rate", 44100)
	v.SetDefault("recorder.channels", 1)
	v.SetDefault("recorder.chunk_size", 4096)
	v.SetDefault("recorder.max_duration", 10*time.Minute)

	v.SetDefault("mirror.driver", "file")
	v.SetDefault("mirror.path", "data/patients.json")
	v.SetDefault("mirror.key", "s2t-patients")
	v.SetDefault("mirror.redis_url", "")
	v.SetDefault("mirror.encryption_key", "")

	v.SetDefault("store.offline_writes", false)
	v.SetDefault("store.probe_interval", 30*time.Second)

	v.SetDefault("messaging.enabled", false)
	v.SetDefault("messaging.redis_url", "")
	v.SetDefault("messaging.metrics_addr", ":9091")
	v.SetDefault("messaging.channel", "scribe.patients")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 12*time.Hour)
}
