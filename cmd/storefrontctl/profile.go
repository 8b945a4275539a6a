package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envProfile = "STOREFRONTCTL_PROFILE"

// Profile — настройки подключения CLI к сервису витрины.
type Profile struct {
	BaseURL  string            `yaml:"base_url"`
	Timeout  time.Duration     `yaml:"timeout"`
	LogLevel string            `yaml:"log_level"`
	Headers  map[string]string `yaml:"headers"`
	Kafka    KafkaProfile      `yaml:"kafka"`
}

// KafkaProfile настраивает команду watch.
type KafkaProfile struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

func defaultProfile() Profile {
	return Profile{
		BaseURL:  "http://localhost:8080",
		Timeout:  10 * time.Second,
		LogLevel: "warn",
		Kafka: KafkaProfile{
			Topic: "storefront.order.events",
			Group: "storefrontctl",
		},
	}
}

// loadProfile читает YAML-профиль поверх значений по умолчанию.
// Пустой путь без STOREFRONTCTL_PROFILE означает профиль по умолчанию.
func loadProfile(path string) (Profile, error) {
	profile := defaultProfile()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(envProfile))
	}
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", path, err)
	}
	if strings.TrimSpace(profile.BaseURL) == "" {
		return Profile{}, errors.New("profile base_url is empty")
	}
	if profile.Timeout <= 0 {
		return Profile{}, fmt.Errorf("profile timeout must be positive, got %s", profile.Timeout)
	}
	return profile, nil
}
