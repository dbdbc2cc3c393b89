package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/vadimbarashkov/shorturls/pkg/shortcode"
	"github.com/vadimbarashkov/shorturls/pkg/validate"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env          string        `yaml:"env" env:"ENV"`
	BaseURL      string        `yaml:"base_url" env:"BASE_URL"`
	Storage      string        `yaml:"storage" env:"STORAGE"`
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`
	ShortCode    ShortCode     `yaml:"short_code" envPrefix:"SHORT_CODE_"`
	Validity     Validity      `yaml:"validity" envPrefix:"VALIDITY_"`
	HTTPServer   `yaml:"http_server"`
	Postgres     `yaml:"postgres" envPrefix:"POSTGRES_"`
	Cache        Cache   `yaml:"cache" envPrefix:"CACHE_"`
	Sweeper      Sweeper `yaml:"sweeper" envPrefix:"SWEEPER_"`
	Log          Log     `yaml:"log" envPrefix:"LOG_"`
}

type ShortCode struct {
	Length int `yaml:"length" env:"LENGTH"`
}

// Validity bounds the lifetime of a short URL.
type Validity struct {
	Default time.Duration `yaml:"default" env:"DEFAULT"`
	Max     time.Duration `yaml:"max" env:"MAX"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" env:"PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" env:"HTTP_MAX_HEADER_BYTES"`
	CertFile       string        `yaml:"cert_file" env:"HTTP_CERT_FILE"`
	KeyFile        string        `yaml:"key_file" env:"HTTP_KEY_FILE"`
}

var defaultHTTPServer = HTTPServer{
	Port:           5000,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	DB              string        `yaml:"db" env:"DB"`
	SSLMode         string        `yaml:"sslmode" env:"SSLMODE"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Cache struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	TTL             time.Duration `yaml:"ttl" env:"TTL"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	Redis           Redis         `yaml:"redis" envPrefix:"REDIS_"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

var defaultCache = Cache{
	Driver:          CacheNone,
	TTL:             time.Hour,
	CleanupInterval: 10 * time.Minute,
	Redis: Redis{
		Addr: "localhost:6379",
	},
}

// Sweeper configures the background removal of expired URLs.
type Sweeper struct {
	Enabled   bool          `yaml:"enabled" env:"ENABLED"`
	Interval  time.Duration `yaml:"interval" env:"INTERVAL"`
	Grace     time.Duration `yaml:"grace" env:"GRACE"`
	BatchSize int           `yaml:"batch_size" env:"BATCH_SIZE"`
}

var defaultSweeper = Sweeper{
	Enabled:   true,
	Interval:  10 * time.Minute,
	Grace:     24 * time.Hour,
	BatchSize: 500,
}

type Log struct {
	Level   string `yaml:"level" env:"LEVEL"`
	JSON    bool   `yaml:"json" env:"JSON"`
	Concise bool   `yaml:"concise" env:"CONCISE"`
}

var defaultLog = Log{
	Level:   "info",
	Concise: true,
}

// SlogLevel returns the configured level, or info if it cannot be parsed.
func (l *Log) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse environment: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

func (cfg *Config) validate() error {
	switch cfg.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, cfg.Env)
	}

	if !validate.URL(cfg.BaseURL) {
		return fmt.Errorf("%w: base_url must be an http or https URL, got %q", ErrInvalidConfig, cfg.BaseURL)
	}

	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, cfg.Storage)
	}

	switch cfg.Cache.Driver {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("%w: unknown cache driver %q", ErrInvalidConfig, cfg.Cache.Driver)
	}

	if cfg.ShortCode.Length < shortcode.MinLength || cfg.ShortCode.Length > shortcode.MaxLength {
		return fmt.Errorf("%w: short_code.length must be between %d and %d",
			ErrInvalidConfig, shortcode.MinLength, shortcode.MaxLength)
	}

	if cfg.Validity.Default <= 0 || cfg.Validity.Max < cfg.Validity.Default {
		return fmt.Errorf("%w: validity.default must be positive and not above validity.max", ErrInvalidConfig)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:5000"
	cfg.Storage = StoragePostgres
	cfg.StoreTimeout = 5 * time.Second
	cfg.ShortCode = ShortCode{Length: shortcode.DefaultLength}
	cfg.Validity = Validity{Default: 30 * time.Minute, Max: 365 * 24 * time.Hour}
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Cache = defaultCache
	cfg.Sweeper = defaultSweeper
	cfg.Log = defaultLog
}
