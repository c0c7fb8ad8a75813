package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file. Environment variable
// references ($VAR or ${VAR}) are expanded before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return cfg, nil
}

// ResolveSecrets replaces inline values with secrets fetched from AWS Secrets
// Manager when secret names are configured. Called once at startup.
func (c *Config) ResolveSecrets(loader SecretsLoader) error {
	if !c.Secrets.Enabled {
		return nil
	}

	if name := c.Secrets.GeolocationAPIKey; name != "" {
		v, err := loader.GetSecret(name)
		if err != nil {
			return fmt.Errorf("resolve geolocation api key: %w", err)
		}
		c.Geolocation.APIKey = v
	}
	if name := c.Secrets.DatabaseURL; name != "" {
		v, err := loader.GetSecret(name)
		if err != nil {
			return fmt.Errorf("resolve database url: %w", err)
		}
		c.DatabaseURL = v
	}
	if name := c.Secrets.RedisPassword; name != "" {
		v, err := loader.GetSecret(name)
		if err != nil {
			return fmt.Errorf("resolve redis password: %w", err)
		}
		c.Redis.Password = v
	}
	return nil
}
