package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Upstream is one service behind the gateway.
type Upstream struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	URL    string `yaml:"url"`
	EnvURL string `yaml:"env_url,omitempty"`
}

// ServicesConfig is the gateway routing table.
type ServicesConfig struct {
	Services []Upstream `yaml:"services"`
}

// LoadServicesConfigFromPath loads the routing table from a YAML file.
func LoadServicesConfigFromPath(path string) (*ServicesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services config: %w", err)
	}

	var cfg ServicesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse services config: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc.Name == "" {
			return nil, fmt.Errorf("service entry without name")
		}
		if !strings.HasPrefix(svc.Prefix, "/") {
			return nil, fmt.Errorf("service %s: prefix must start with /", svc.Name)
		}
		if svc.URL == "" && svc.EnvURL == "" {
			return nil, fmt.Errorf("service %s: url is required", svc.Name)
		}
		if _, dup := seen[svc.Prefix]; dup {
			return nil, fmt.Errorf("service %s: duplicate prefix %s", svc.Name, svc.Prefix)
		}
		seen[svc.Prefix] = struct{}{}
	}

	cfg.applyEnv()
	return &cfg, nil
}

// LoadServicesConfigOrDefault falls back to the built-in table when the file
// is absent or invalid.
func LoadServicesConfigOrDefault(path string) *ServicesConfig {
	cfg, err := LoadServicesConfigFromPath(path)
	if err != nil {
		return DefaultServicesConfig()
	}
	return cfg
}

// DefaultServicesConfig routes /api/<service> to the local service ports.
func DefaultServicesConfig() *ServicesConfig {
	cfg := &ServicesConfig{
		Services: []Upstream{
			{Name: "auth", Prefix: "/api/auth", URL: "http://localhost:4001", EnvURL: "AUTH_SERVICE_URL"},
			{Name: "posts", Prefix: "/api/posts", URL: "http://localhost:4002", EnvURL: "POSTS_SERVICE_URL"},
			{Name: "chat", Prefix: "/api/chat", URL: "http://localhost:4003", EnvURL: "CHAT_SERVICE_URL"},
			{Name: "notifications", Prefix: "/api/notifications", URL: "http://localhost:4004", EnvURL: "NOTIFICATIONS_SERVICE_URL"},
		},
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv lets deployment override each upstream URL.
func (c *ServicesConfig) applyEnv() {
	for i := range c.Services {
		if name := c.Services[i].EnvURL; name != "" {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				c.Services[i].URL = v
			}
		}
	}
}
