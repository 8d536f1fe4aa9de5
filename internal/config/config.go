package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Broker     Broker     `mapstructure:"broker"`
	Sync       Sync       `mapstructure:"sync"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	Logger     Logger     `mapstructure:"logger"`
	Database   Database   `mapstructure:"database"`
}

// Broker holds the configuration for the broker API.
type Broker struct {
	BaseURL        string  `mapstructure:"base_url"`
	RequestTimeout int     `mapstructure:"request_timeout"` // seconds, per call
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	PageLimit      int     `mapstructure:"page_limit"`
	FetchContracts bool    `mapstructure:"fetch_contracts"`
}

// Sync holds the configuration for the background reconciler.
type Sync struct {
	TickInterval     int  `mapstructure:"tick_interval"` // seconds
	DaysBack         int  `mapstructure:"days_back"`
	AnalyzeAfterSync bool `mapstructure:"analyze_after_sync"`
}

// Thresholds holds the risk-rule thresholds. They are read once at startup
// and passed into the detector by value, so concurrent analyses with
// different settings cannot interfere.
type Thresholds struct {
	MaxPositionSizePct   float64 `mapstructure:"max_position_size_pct"`
	MinWinRate           float64 `mapstructure:"min_win_rate"`
	MaxDrawdownPct       float64 `mapstructure:"max_drawdown_pct"`
	MinRRRatio           float64 `mapstructure:"min_rr_ratio"`
	MaxRevengeTradingPct float64 `mapstructure:"max_revenge_trading_pct"`
	MinSLUsageRate       float64 `mapstructure:"min_sl_usage_rate"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("broker.request_timeout", 30)
	viper.SetDefault("broker.rate_limit", 2) // requests per second
	viper.SetDefault("broker.rate_limit_burst", 2)
	viper.SetDefault("broker.page_limit", 1000)
	viper.SetDefault("broker.fetch_contracts", true)

	viper.SetDefault("sync.tick_interval", 900)
	viper.SetDefault("sync.days_back", 90)
	viper.SetDefault("sync.analyze_after_sync", true)

	viper.SetDefault("thresholds.max_position_size_pct", 2.0)
	viper.SetDefault("thresholds.min_win_rate", 40.0)
	viper.SetDefault("thresholds.max_drawdown_pct", 20.0)
	viper.SetDefault("thresholds.min_rr_ratio", 1.0)
	viper.SetDefault("thresholds.max_revenge_trading_pct", 10.0)
	viper.SetDefault("thresholds.min_sl_usage_rate", 80.0)

	viper.SetDefault("database.dsn", "riskradar.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
