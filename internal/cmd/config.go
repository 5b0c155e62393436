package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds process settings. Phase durations are compile-time constants
// in the timer package, not configuration.
type Config struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	LogLevel  string `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		Port:      "3000",
		StaticDir: "./web",
		LogLevel:  "info",
	}
}

// loadConfig reads the optional yaml config file and applies environment
// overrides on top. A missing file is not an error; defaults apply.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.Port = getEnv("PORT", config.Port)
	config.StaticDir = getEnv("STATIC_DIR", config.StaticDir)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)

	return config, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
