package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"payguard/internal/logging"
	"payguard/internal/policy"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Facilitator FacilitatorConfig `mapstructure:"facilitator"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Server      ServerConfig      `mapstructure:"server"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN keeps
// the engine on the volatile in-process ledger.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	TenantID        string        `mapstructure:"tenant_id"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PolicyConfig locates the policy document: a file path or an inline JSON
// string, not both.
type PolicyConfig struct {
	Path   string `mapstructure:"path"`
	Inline string `mapstructure:"inline"`
}

// PricingConfig prices protected entrypoints as USD strings; conversion to
// base units happens exactly once, at load.
type PricingConfig struct {
	DefaultUSD       string            `mapstructure:"default_usd"`
	DefaultStreamUSD string            `mapstructure:"default_stream_usd"`
	Entrypoints      map[string]string `mapstructure:"entrypoints"`
}

// FacilitatorConfig covers the external proof-verification service.
type FacilitatorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Network        string        `mapstructure:"network"`
	PayTo          string        `mapstructure:"pay_to"`
	Asset          string        `mapstructure:"asset"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RateLimitConfig selects the limiter backend.
type RateLimitConfig struct {
	Backend   string `mapstructure:"backend"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ServerConfig governs the serve command.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	Upstream        string        `mapstructure:"upstream"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "payguard")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("facilitator.network", "base")
	v.SetDefault("facilitator.request_timeout", "10s")
	v.SetDefault("facilitator.user_agent", "payguard/1.0")

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.key_prefix", "payguard:ratelimit")

	v.SetDefault("server.listen", ":8402")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks so malformed prices and limits fail at
// startup, not per request.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("ratelimit.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}

	if c.Policy.Path != "" && c.Policy.Inline != "" {
		return fmt.Errorf("policy.path and policy.inline are mutually exclusive")
	}

	if _, err := c.Pricing.Build(); err != nil {
		return err
	}

	if c.Facilitator.PayTo != "" {
		if _, ok := policy.NormalizeWallet(c.Facilitator.PayTo); !ok {
			return fmt.Errorf("facilitator.pay_to is not a valid wallet address")
		}
	}

	if c.Server.Upstream != "" {
		u, err := url.Parse(c.Server.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.upstream must be an absolute URL")
		}
	}

	return nil
}

// Build converts the pricing configuration into resolved base-unit prices.
// A nil result means nothing is priced.
func (p PricingConfig) Build() (*policy.Pricing, error) {
	pricing := &policy.Pricing{}

	if p.DefaultUSD != "" || p.DefaultStreamUSD != "" {
		var (
			price *policy.Price
			err   error
		)
		if p.DefaultStreamUSD != "" {
			price, err = policy.NewSplitPrice(p.DefaultUSD, p.DefaultStreamUSD)
		} else {
			price, err = policy.NewFlatPrice(p.DefaultUSD)
		}
		if err != nil {
			return nil, fmt.Errorf("pricing defaults: %w", err)
		}
		pricing.Default = price
	}

	if len(p.Entrypoints) > 0 {
		pricing.Entrypoints = make(map[string]*policy.Price, len(p.Entrypoints))
		for entrypoint, usd := range p.Entrypoints {
			price, err := policy.NewFlatPrice(usd)
			if err != nil {
				return nil, fmt.Errorf("pricing.entrypoints[%s]: %w", entrypoint, err)
			}
			pricing.Entrypoints[entrypoint] = price
		}
	}

	if pricing.Default == nil && len(pricing.Entrypoints) == 0 {
		return nil, nil
	}
	return pricing, nil
}
