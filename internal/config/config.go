package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Supabase SupabaseConfig `koanf:"supabase"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	URL          string `koanf:"url"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	// MaxLifetime is in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
}

type SupabaseConfig struct {
	URL            string        `koanf:"url"`
	AnonKey        string        `koanf:"anon_key"`
	ServiceRoleKey string        `koanf:"service_role_key"`
	JWTSecret      string        `koanf:"jwt_secret"`
	Timeout        time.Duration `koanf:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Environment string `koanf:"environment"`
}

// Load reads the yaml file at configPath, then overlays environment
// variables prefixed TUTORLY_ (TUTORLY_DATABASE_URL -> database.url).
// A .env.local file, if present, is loaded into the environment first
// so local development does not need exported secrets.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		log.Printf("No .env.local file loaded: %v", err)
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := k.Load(env.Provider("TUTORLY_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "TUTORLY_")
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Multi-word leaf keys do not survive the underscore-to-dot mapping
	// above, so the secret-bearing variables are mapped by hand.
	for envKey, path := range map[string]string{
		"TUTORLY_DATABASE_URL":              "database.url",
		"TUTORLY_SUPABASE_URL":              "supabase.url",
		"TUTORLY_SUPABASE_ANON_KEY":         "supabase.anon_key",
		"TUTORLY_SUPABASE_SERVICE_ROLE_KEY": "supabase.service_role_key",
		"TUTORLY_SUPABASE_JWT_SECRET":       "supabase.jwt_secret",
	} {
		if v := os.Getenv(envKey); v != "" {
			k.Set(path, v)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// MustLoad loads the configuration or exits.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5050
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 20
	}
	if cfg.Database.MaxLifetime == 0 {
		cfg.Database.MaxLifetime = 30
	}
	if cfg.Supabase.Timeout == 0 {
		cfg.Supabase.Timeout = 30 * time.Second
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = "development"
	}
}
