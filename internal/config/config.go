package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Storage backends and counter modes selectable in config.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	CounterEmbedded = "embedded"
	CounterCell     = "cell"
)

type Config struct {
	Env string `yaml:"env"`
	// BaseURL overrides the request origin in generated short links.
	BaseURL    string `yaml:"base_url"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Counter    `yaml:"counter"`
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Backend  string `yaml:"backend"`
	Redis    `yaml:"redis"`
	Postgres `yaml:"postgres"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

var defaultRedis = Redis{
	Addr: "localhost:6379",
}

type Postgres struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"db"`
	SSLMode  string `yaml:"sslmode"`
}

var defaultPostgres = Postgres{
	Host:    "localhost",
	Port:    5432,
	SSLMode: "disable",
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Counter struct {
	// Mode selects the redirect counting strategy: "embedded" folds the
	// count into the record, "cell" uses the atomic per-code counter.
	Mode string `yaml:"mode"`
}

// Load reads the YAML config at path on top of the defaults. An empty
// path returns the defaults, which run the service on the in-memory
// backend.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path == "" {
		return &cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.Redis = defaultRedis
	cfg.Storage.Postgres = defaultPostgres
	cfg.Counter.Mode = CounterEmbedded
}
