package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Blacklist BlacklistConfig `mapstructure:"blacklist"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SerialConfig struct {
	Port            string        `mapstructure:"port"`
	ModemName       string        `mapstructure:"modem_name"`
	ExcludePorts    []string      `mapstructure:"exclude_ports"`
	BaudRate        int           `mapstructure:"baud_rate"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	InitATCommands  []string      `mapstructure:"init_at_commands"` // empty: modem.DefaultInitCommands
}

type BlacklistConfig struct {
	NumbersFile string        `mapstructure:"numbers_file"`
	NamesFile   string        `mapstructure:"names_file"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type ScreeningConfig struct {
	TollFreePrefixes   []string      `mapstructure:"toll_free_prefixes"`
	ShortNamePolicy    string        `mapstructure:"short_name_policy"`
	ShortNameMinLength int           `mapstructure:"short_name_min_length"`
	RingWindow         time.Duration `mapstructure:"ring_window"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

var AppConfig Config

// LoadConfig reads config.yaml from the working directory, or path when set,
// merges environment overrides and fills AppConfig.
func LoadConfig(path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Keys must be known to viper for env-only overrides to unmarshal.
	v.SetDefault("server.enabled", true)
	v.SetDefault("serial.port", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		// Config file is optional when running with defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unable to decode into struct: %w", err)
	}

	applyDefaults(&cfg)
	AppConfig = cfg
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "callscreen.db"
	}

	if cfg.Serial.ModemName == "" {
		cfg.Serial.ModemName = "U.S. Robotics"
	}
	if cfg.Serial.BaudRate <= 0 {
		cfg.Serial.BaudRate = 57600
	}
	if cfg.Serial.ReadTimeout <= 0 {
		cfg.Serial.ReadTimeout = 2 * time.Second
	}
	if cfg.Serial.WriteTimeout <= 0 {
		cfg.Serial.WriteTimeout = 3 * time.Second
	}
	if cfg.Serial.ResponseTimeout <= 0 {
		cfg.Serial.ResponseTimeout = 120 * time.Second
	}

	if cfg.Blacklist.NumbersFile == "" {
		cfg.Blacklist.NumbersFile = "blacklist_numbers.csv"
	}
	if cfg.Blacklist.NamesFile == "" {
		cfg.Blacklist.NamesFile = "blacklist_names.csv"
	}

	if cfg.Screening.TollFreePrefixes == nil {
		cfg.Screening.TollFreePrefixes = []string{"800"}
	}
	if cfg.Screening.ShortNamePolicy == "" {
		cfg.Screening.ShortNamePolicy = "off"
	}
	if cfg.Screening.ShortNameMinLength <= 0 {
		cfg.Screening.ShortNameMinLength = 3
	}
	if cfg.Screening.RingWindow <= 0 {
		cfg.Screening.RingWindow = 10 * time.Second
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "CHANGE_ME_IN_CONFIG"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}
}
