package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/x402gate/x402gate/webhook"
)

// ServerConfig is the top-level daemon configuration, loaded once at startup.
type ServerConfig struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Registry struct {
		URL     string `mapstructure:"url"`
		APIKey  string `mapstructure:"api_key"`
		Publish bool   `mapstructure:"publish"`
	} `mapstructure:"registry"`

	Endpoints []webhook.Config `mapstructure:"endpoints"`
}

// loadConfig reads x402-webhookd.yaml (current directory or /etc/x402gate)
// plus X402GATE_-prefixed environment overrides.
func loadConfig() (*ServerConfig, error) {
	viper.SetConfigName("x402-webhookd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/x402gate")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8402)
	viper.SetDefault("log.level", "info")

	viper.SetEnvPrefix("X402GATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config ServerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no webhook endpoints configured")
	}

	return &config, nil
}
