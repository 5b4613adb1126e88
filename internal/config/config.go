package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server  ServerConfig
	Refresh RefreshConfig
	Sources SourcesConfig
	Notify  NotifyConfig
	Log     LogConfig
}

// ServerConfig defines the HTTP surface used by the presentation layer.
type ServerConfig struct {
	Addr            string
	RefreshRate     float64       `mapstructure:"refresh_rate"`
	RefreshBurst    int           `mapstructure:"refresh_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RefreshConfig defines the refresh cycle and scheduler settings.
type RefreshConfig struct {
	Interval         time.Duration
	CycleTimeout     time.Duration `mapstructure:"cycle_timeout"`
	KeepStaleOnError bool          `mapstructure:"keep_stale_on_error"`
}

// SourcesConfig defines the three upstreams.
type SourcesConfig struct {
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	Domestic      SourceConfig
	International SourceConfig
	FX            SourceConfig `mapstructure:"fx"`
}

// SourceConfig defines settings for a specific upstream.
type SourceConfig struct {
	Provider string
	Endpoint string
	// Market is the trading pair or symbol for price sources, the base currency for fx.
	Market string
	// Quote is the currency the fetched value is denominated in.
	Quote string
}

// NotifyConfig controls the optional notifier.
type NotifyConfig struct {
	Enabled  bool
	Delivery string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.refresh_rate", 1.0)
	v.SetDefault("server.refresh_burst", 3)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("refresh.interval", "180s")
	v.SetDefault("refresh.cycle_timeout", "30s")
	v.SetDefault("refresh.keep_stale_on_error", true)

	v.SetDefault("sources.http_timeout", "10s")
	v.SetDefault("sources.user_agent", "kimchi-premium/1.0")
	v.SetDefault("sources.domestic.provider", "upbit")
	v.SetDefault("sources.domestic.endpoint", "https://api.upbit.com/v1/ticker")
	v.SetDefault("sources.domestic.market", "KRW-BTC")
	v.SetDefault("sources.domestic.quote", "KRW")
	v.SetDefault("sources.international.provider", "binance")
	v.SetDefault("sources.international.endpoint", "https://api.binance.com/api/v3/ticker/price")
	v.SetDefault("sources.international.market", "BTCUSDT")
	v.SetDefault("sources.international.quote", "USD")
	v.SetDefault("sources.fx.provider", "open-er-api")
	v.SetDefault("sources.fx.endpoint", "https://open.er-api.com/v6/latest")
	v.SetDefault("sources.fx.market", "USD")
	v.SetDefault("sources.fx.quote", "KRW")

	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.delivery", "log")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("KIMCHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	err = config.Validate()
	return
}

// Validate rejects settings the refresh cycle cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Refresh.Interval <= 0 {
		errs = append(errs, errors.New("refresh.interval must be positive"))
	}
	if c.Refresh.CycleTimeout <= 0 {
		errs = append(errs, errors.New("refresh.cycle_timeout must be positive"))
	}
	for name, src := range map[string]SourceConfig{
		"domestic":      c.Sources.Domestic,
		"international": c.Sources.International,
		"fx":            c.Sources.FX,
	} {
		if src.Endpoint == "" {
			errs = append(errs, fmt.Errorf("sources.%s.endpoint is required", name))
		}
		if src.Market == "" {
			errs = append(errs, fmt.Errorf("sources.%s.market is required", name))
		}
	}
	if c.Notify.Enabled {
		switch c.Notify.Delivery {
		case "log", "websocket":
		default:
			errs = append(errs, fmt.Errorf("unknown notify.delivery: %q", c.Notify.Delivery))
		}
	}
	return errors.Join(errs...)
}
