package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Encode serialises the configuration into a single command-line safe token
// (base64 of JSON) for handing to a spawned worker process.
func Encode(cfg AppConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode.
func Decode(blob string) (AppConfig, error) {
	var cfg AppConfig
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return cfg, errors.New("empty config blob")
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return cfg, fmt.Errorf("decode config blob: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
