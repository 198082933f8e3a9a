package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	DataDir     string        `mapstructure:"data_dir"`
	MaxMessages int           `mapstructure:"max_messages"`
	PollPeriod  time.Duration `mapstructure:"poll_period"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	Secret      string        `mapstructure:"secret"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("max_messages", 100)
	v.SetDefault("poll_period", "1s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("secret", "parley-dev-secret")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxMessages < 2 {
		return nil, fmt.Errorf("max_messages must be at least 2, got %d", cfg.MaxMessages)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Data: %s\n", cfg.Mode, cfg.Port, cfg.DataDir)
	return &cfg, nil
}
