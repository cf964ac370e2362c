package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type NotifierConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	DrainInterval time.Duration `mapstructure:"drain_interval"`
	ScanInterval  time.Duration `mapstructure:"scan_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"`
}

type EmailConfig struct {
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SMSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"sender_id"`
}

type PushConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	Notifier    NotifierConfig `mapstructure:"notifier"`
	Email       EmailConfig    `mapstructure:"email"`
	SMS         SMSConfig      `mapstructure:"sms"`
	Push        PushConfig     `mapstructure:"push"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.DatabaseURL == "" {
		log.Fatal("database_url must be set in the config file")
	}

	if config.Notifier.BatchSize == 0 {
		config.Notifier.BatchSize = 25
	}
	if config.Notifier.DrainInterval == 0 {
		config.Notifier.DrainInterval = 30 * time.Second
	}
	if config.Notifier.ScanInterval == 0 {
		config.Notifier.ScanInterval = 5 * time.Minute
	}
	if config.Notifier.MaxAttempts == 0 {
		config.Notifier.MaxAttempts = 3
	}
	if config.Notifier.BackoffBase == 0 {
		config.Notifier.BackoffBase = time.Minute
	}
	if config.Notifier.BackoffCap == 0 {
		config.Notifier.BackoffCap = time.Hour
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}

	return &config
}
