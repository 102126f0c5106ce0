// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Provider struct {
		URLTemplate string `mapstructure:"url_template"`
		UserAgent   string `mapstructure:"user_agent"`
		Parallelism int    `mapstructure:"parallelism"`
		DelayMs     int    `mapstructure:"delay_ms"`
	} `mapstructure:"provider"`
	Notification struct {
		Enabled bool   `mapstructure:"enabled"`
		Title   string `mapstructure:"title"`
		Icon    string `mapstructure:"icon"`
	} `mapstructure:"notification"`
	KeepAlive struct {
		Title string `mapstructure:"title"`
		Text  string `mapstructure:"text"`
		Icon  string `mapstructure:"icon"`
	} `mapstructure:"keepalive"`
	Recovery struct {
		SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
		StaleAfterHours      int `mapstructure:"stale_after_hours"`
	} `mapstructure:"recovery"`
	Cache struct {
		// Tiles older than this many days are deleted by the cache-trim
		// job. Zero disables trimming.
		TrimAfterDays       int `mapstructure:"trim_after_days"`
		TrimIntervalMinutes int `mapstructure:"trim_interval_minutes"`
	} `mapstructure:"cache"`
	Admin struct {
		// Bcrypt hash of the admin token. Empty disables auth on
		// mutating endpoints.
		TokenHash string `mapstructure:"token_hash"`
	} `mapstructure:"admin"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "TILEVAULT_"
	// prefix. e.g., TILEVAULT_DATABASE_PATH overrides the `database.path` key.
	viper.SetEnvPrefix("TILEVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./tilevault.db")
	viper.SetDefault("provider.url_template", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("provider.user_agent", "tilevault-go")
	viper.SetDefault("provider.parallelism", 4)
	viper.SetDefault("provider.delay_ms", 0)
	viper.SetDefault("notification.enabled", true)
	viper.SetDefault("notification.title", "Downloading Map...")
	viper.SetDefault("notification.icon", "")
	viper.SetDefault("keepalive.title", "tilevault")
	viper.SetDefault("keepalive.text", "Downloading map tiles in the background")
	viper.SetDefault("keepalive.icon", "")
	viper.SetDefault("recovery.sweep_interval_minutes", 60)
	viper.SetDefault("recovery.stale_after_hours", 72)
	viper.SetDefault("cache.trim_after_days", 0)
	viper.SetDefault("cache.trim_interval_minutes", 1440)
	viper.SetDefault("admin.token_hash", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
