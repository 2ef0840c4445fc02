package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is used when neither flag, env nor file name a backend.
const DefaultBackendURL = "http://localhost:8080"

// Environment variables consulted for the backend origin, in order.
// NEXT_PUBLIC_BACKEND_URL is shared with the web frontend.
var BackendURLEnv = []string{"NEXT_PUBLIC_BACKEND_URL", "SCREENER_BACKEND_URL"}

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return &cfg, nil
}

// ResolveBackendURL applies flag > env > file > default precedence.
// A nil cfg is treated as an empty file.
func ResolveBackendURL(flagValue string, cfg *Config) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return strings.TrimRight(v, "/")
	}
	for _, name := range BackendURLEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	if cfg != nil && strings.TrimSpace(cfg.Backend.URL) != "" {
		return strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	}
	return DefaultBackendURL
}
