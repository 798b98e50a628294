package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Steam     SteamConfig
	Recommend RecommendConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type StorageConfig struct {
	DataDir string
	Backend string
}

type SteamConfig struct {
	BaseURL string
}

type RecommendConfig struct {
	TopK           int
	FuzzyThreshold int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: "csv",
		},
		Steam: SteamConfig{
			BaseURL: "https://steamcommunity.com",
		},
		Recommend: RecommendConfig{
			TopK:           10,
			FuzzyThreshold: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/steamrec/config.json, then applies STEAMREC_*
// environment overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// EnsureToken returns the configured API token, generating and
// persisting one on first use so the server and CLI agree without any
// manual setup.
func EnsureToken(cfg *Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := newFileBackend().SetString("server.token", token); err != nil {
		return "", fmt.Errorf("persisting api token: %w", err)
	}
	cfg.Server.Token = token
	return token, nil
}
