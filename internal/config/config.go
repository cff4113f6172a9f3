package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the media library.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Library  LibraryConfig  `mapstructure:"library"`
	Thumbs   ThumbsConfig   `mapstructure:"thumbs"`
	Semantic SemanticConfig `mapstructure:"semantic"`
	Optimize OptimizeConfig `mapstructure:"optimize"`
	Qdrant   QdrantConfig   `mapstructure:"qdrant"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	DSN             string        `mapstructure:"dsn"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LibraryConfig controls the on-disk library tree and the storage budget.
// BudgetGB is a convenience form; BudgetBytes wins when both are set.
type LibraryConfig struct {
	Root        string  `mapstructure:"root"`
	BudgetBytes int64   `mapstructure:"budget_bytes"`
	BudgetGB    float64 `mapstructure:"budget_gb"`
}

// Budget resolves the configured byte budget.
func (c *LibraryConfig) Budget() int64 {
	if c.BudgetBytes > 0 {
		return c.BudgetBytes
	}
	if c.BudgetGB > 0 {
		return int64(c.BudgetGB * 1024 * 1024 * 1024)
	}
	return 0
}

type ThumbsConfig struct {
	Async       bool `mapstructure:"async"`
	Concurrency int  `mapstructure:"concurrency"`
	Width       int  `mapstructure:"width"`
}

type SemanticConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Threshold      float64 `mapstructure:"threshold"`
	Dimensions     int     `mapstructure:"dimensions"`
	CandidateLimit int     `mapstructure:"candidate_limit"`
	Index          string  `mapstructure:"index"` // local, qdrant
}

type OptimizeConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MinSavingsPercent float64 `mapstructure:"min_savings_percent"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

// ArchiveConfig controls the optional archive-on-evict backend. When
// enabled, the garbage collector uploads originals to an S3-compatible
// bucket before deleting them locally.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// Load reads configuration from the given file (or the default search
// paths), applies defaults, and overlays environment variables.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/medialib.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("library.root", "./data/library")
	v.SetDefault("library.budget_gb", 20)
	v.SetDefault("thumbs.async", true)
	v.SetDefault("thumbs.concurrency", 2)
	v.SetDefault("thumbs.width", 480)
	v.SetDefault("semantic.enabled", true)
	v.SetDefault("semantic.threshold", 0.35)
	v.SetDefault("semantic.dimensions", 256)
	v.SetDefault("semantic.candidate_limit", 500)
	v.SetDefault("semantic.index", "local")
	v.SetDefault("optimize.enabled", false)
	v.SetDefault("optimize.min_savings_percent", 10)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "medialib")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "medialib-archive")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("library.root", "MEDIALIB_ROOT")
	v.BindEnv("library.budget_bytes", "MEDIALIB_BUDGET_BYTES")
	v.BindEnv("library.budget_gb", "MEDIALIB_BUDGET_GB")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
