package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models tendertrack.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
	} `yaml:"org"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		Issuer     string `yaml:"issuer"`
		TTLMinutes int    `yaml:"ttl_minutes"`
	} `yaml:"auth"`
	Seed struct {
		Admin struct {
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			Name     string `yaml:"name"`
		} `yaml:"admin"`
	} `yaml:"seed"`
	Alerts struct {
		WebhookURL      string `yaml:"webhook_url"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"alerts"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ttrack init", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.Name == "" {
		return fmt.Errorf("config.org.name is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if c.Auth.TTLMinutes < 0 {
		return fmt.Errorf("config.auth.ttl_minutes must not be negative")
	}
	if c.Seed.Admin.Username != "" && c.Seed.Admin.Password == "" {
		return fmt.Errorf("config.seed.admin.password is required when a seed admin is set")
	}
	if c.Alerts.IntervalSeconds < 0 {
		return fmt.Errorf("config.alerts.interval_seconds must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "tendertrack.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgName string) string {
	return fmt.Sprintf(defaultTemplate, orgName)
}

// Default returns the default Config struct for an organization.
func Default(orgName string) *Config {
	cfg, err := FromYAML([]byte(GenerateDefault(orgName)))
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Auth.TTLMinutes == 0 {
		cfg.Auth.TTLMinutes = 8 * 60
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "tendertrack"
	}
	if cfg.Alerts.IntervalSeconds == 0 {
		cfg.Alerts.IntervalSeconds = 60
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `org:
  name: %s

auth:
  jwt_secret: change-me
  issuer: tendertrack
  ttl_minutes: 480

seed:
  admin:
    username: admin
    password: admin
    name: Administrator

alerts:
  webhook_url: ""
  interval_seconds: 60
`
