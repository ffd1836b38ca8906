package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Log    LogConfig    `mapstructure:"log"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Site   SiteConfig   `mapstructure:"site"`
	API    APIConfig    `mapstructure:"api"`
	Embed  EmbedConfig  `mapstructure:"embed"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig holds TLS-specific configuration.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DBConfig holds database-specific configuration.
type DBConfig struct {
	Driver      string `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// CacheConfig holds configuration for the SQLite-backed cache.
type CacheConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// SiteConfig describes the public front end the API serves content for.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	MediaURL string `mapstructure:"media_url"`
}

// APIConfig holds configuration for the read API.
type APIConfig struct {
	// BaseURL is the public origin of the API, used in detail_url.
	BaseURL  string `mapstructure:"base_url"`
	Prefix   string `mapstructure:"prefix"`
	LimitMax int    `mapstructure:"limit_max"`
	// StrictBlocks fails the whole page when a single block cannot be
	// serialized instead of rendering that block as null.
	StrictBlocks bool `mapstructure:"strict_blocks"`
}

// EmbedConfig holds oEmbed resolver configuration.
type EmbedConfig struct {
	Timeout   time.Duration    `mapstructure:"timeout"`
	MaxWidth  int              `mapstructure:"max_width"`
	CacheTTL  time.Duration    `mapstructure:"cache_ttl"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig declares an additional oEmbed provider.
type ProviderConfig struct {
	Name     string   `mapstructure:"name"`
	Endpoint string   `mapstructure:"endpoint"`
	URLs     []string `mapstructure:"urls"`
}

// setDefaults registers the default value of every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "cms.db")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cache.file_path", "cache.db")
	v.SetDefault("site.base_url", "http://localhost:3000")
	v.SetDefault("site.media_url", "/media/")
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.prefix", "/api/v2")
	v.SetDefault("api.limit_max", 20)
	v.SetDefault("api.strict_blocks", false)
	v.SetDefault("embed.timeout", 10*time.Second)
	v.SetDefault("embed.max_width", 612)
	v.SetDefault("embed.cache_ttl", 24*time.Hour)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Set up viper to read from config file
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/headless-cms/")
	v.AddConfigPath("$HOME/.headless-cms")

	// Attempt to read the config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		// Config file not found; proceed with defaults and env vars
	}

	// Set up viper to read from environment variables
	v.SetEnvPrefix("CMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal the config into the Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.API.Prefix = "/" + strings.Trim(cfg.API.Prefix, "/")
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	cfg.Site.BaseURL = strings.TrimSuffix(cfg.Site.BaseURL, "/")
	if !strings.HasSuffix(cfg.Site.MediaURL, "/") {
		cfg.Site.MediaURL += "/"
	}

	return &cfg, nil
}
