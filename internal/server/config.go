package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_only", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/storesight.db")

	// Plugin defaults
	v.SetDefault("plugins.sentry.enabled", true)
	v.SetDefault("plugins.sentry.ewma_alpha", 0.2)
	v.SetDefault("plugins.sentry.min_sample_size", 20)
	v.SetDefault("plugins.sentry.batch_max_age", "720h")
	v.SetDefault("plugins.sentry.debounce_window", "60s")
	v.SetDefault("plugins.sentry.cooldown", "120s")
	v.SetDefault("plugins.sentry.hysteresis_max_age", "1h")
	v.SetDefault("plugins.sentry.baseline_retention", "1440h")
	v.SetDefault("plugins.sentry.anomaly_retention", "720h")
	v.SetDefault("plugins.sentry.event_retention", "1440h")
	v.SetDefault("plugins.sentry.maintenance_interval", "1h")
	v.SetDefault("plugins.sentry.shards", 16)
	v.SetDefault("plugins.sentry.queue_depth", 256)
	v.SetDefault("plugins.sentry.learning_rate", 0.1)
	v.SetDefault("plugins.sentry.max_adjustment", 0.3)
	v.SetDefault("plugins.sentry.min_confidence_for_learning", 0.7)
	v.SetDefault("plugins.sentry.false_positive_weight", 1.0)
	v.SetDefault("plugins.alert.enabled", true)
	v.SetDefault("plugins.alert.url", "")
	v.SetDefault("plugins.alert.timeout", "10s")
	v.SetDefault("plugins.alert.min_severity", "high")
	v.SetDefault("plugins.alert.rate_per_minute", 60)
	v.SetDefault("plugins.alert.rate_burst", 10)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("storesight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/storesight")
	}

	// Environment variable support: SS_SERVER_PORT=9090
	v.SetEnvPrefix("SS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
