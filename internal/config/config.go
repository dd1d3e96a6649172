package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yourorg/listing-sync/internal/env"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Listings ListingsConfig `yaml:"listings" mapstructure:"listings"`
	GHL      GHLConfig      `yaml:"ghl" mapstructure:"ghl"`
	Tokens   TokensConfig   `yaml:"tokens" mapstructure:"tokens"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int           `yaml:"port" mapstructure:"port"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RequestTimeout     time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	PostConnectURL     string        `yaml:"post_connect_url" mapstructure:"post_connect_url"`
	CORSOrigins        []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ListingsConfig points at the RapidAPI-hosted listing provider.
type ListingsConfig struct {
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	Host             string        `yaml:"host" mapstructure:"host"`
	APIKey           string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DetailRetries    int           `yaml:"detail_retries" mapstructure:"detail_retries"`
	DetailRPS        float64       `yaml:"detail_rps" mapstructure:"detail_rps"`
	PlaceholderImage string        `yaml:"placeholder_image" mapstructure:"placeholder_image"`
}

// GHLConfig holds the GoHighLevel OAuth client and contacts API settings.
type GHLConfig struct {
	ClientID     string        `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string        `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri" mapstructure:"redirect_uri"`
	AuthorizeURL string        `yaml:"authorize_url" mapstructure:"authorize_url"`
	TokenURL     string        `yaml:"token_url" mapstructure:"token_url"`
	ContactsURL  string        `yaml:"contacts_url" mapstructure:"contacts_url"`
	APIVersion   string        `yaml:"api_version" mapstructure:"api_version"`
	Scopes       []string      `yaml:"scopes" mapstructure:"scopes"`
	UserType     string        `yaml:"user_type" mapstructure:"user_type"`
	Tags         []string      `yaml:"tags" mapstructure:"tags"`
	Source       string        `yaml:"source" mapstructure:"source"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TokensConfig selects where the OAuth bundle is persisted.
type TokensConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := env.Load(); err != nil {
		return nil, eris.Wrap(err, "config: dotenv")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 4002)
	v.SetDefault("server.rate_limit_per_minute", 100)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.post_connect_url", "/")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("listings.base_url", "")
	v.SetDefault("listings.host", "")
	v.SetDefault("listings.api_key", "")
	v.SetDefault("listings.timeout", 10*time.Second)
	v.SetDefault("listings.detail_retries", 2)
	v.SetDefault("listings.detail_rps", 2.0)
	v.SetDefault("listings.placeholder_image", "https://via.placeholder.com/400x300?text=No+Image")
	v.SetDefault("ghl.client_id", "")
	v.SetDefault("ghl.client_secret", "")
	v.SetDefault("ghl.redirect_uri", "")
	v.SetDefault("ghl.authorize_url", "https://marketplace.gohighlevel.com/oauth/chooselocation")
	v.SetDefault("ghl.token_url", "https://services.leadconnectorhq.com/oauth/token")
	v.SetDefault("ghl.contacts_url", "https://services.leadconnectorhq.com/contacts/")
	v.SetDefault("ghl.api_version", "2021-07-28")
	v.SetDefault("ghl.scopes", []string{"contacts.write", "locations.readonly"})
	v.SetDefault("ghl.user_type", "Location")
	v.SetDefault("ghl.tags", []string{"property_listing", "listing_agent"})
	v.SetDefault("ghl.source", "listing-sync")
	v.SetDefault("ghl.timeout", 15*time.Second)
	v.SetDefault("tokens.backend", "memory")
	v.SetDefault("tokens.key_prefix", "ghl_")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.dsn", "")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
