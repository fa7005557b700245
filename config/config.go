// Package config loads the competition configuration from a YAML or JSON
// file with K_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/core/competition"
	"github.com/kilianp07/retailmarket/core/metrics"
	"github.com/kilianp07/retailmarket/core/rules"
	"github.com/kilianp07/retailmarket/core/scheduler"
	"github.com/kilianp07/retailmarket/infra/kafka"
	"github.com/kilianp07/retailmarket/infra/mqtt"
)

type Config struct {
	Competition competition.Config `json:"competition"`
	Scheduler   scheduler.Config   `json:"scheduler"`
	Router      command.Config     `json:"router"`
	Rules       rules.Config       `json:"rules"`
	Ledger      LedgerConfig       `json:"ledger"`
	Audit       AuditConfig        `json:"audit"`
	Modules     ModulesConfig      `json:"modules"`
	Transport   TransportConfig    `json:"transport"`
	MQTT        mqtt.Config        `json:"mqtt"`
	Kafka       kafka.Config       `json:"kafka"`
	Metrics     metrics.Config     `json:"metrics"`
	Sentry      SentryConfig       `json:"sentry"`
}

// LedgerConfig points at the seed file of tariffs known at startup.
type LedgerConfig struct {
	TariffsFile string `json:"tariffs_file"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Competition.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Router.SetDefaults()
	c.Rules.SetDefaults()
	c.Audit.SetDefaults()
}

// Validate checks every section and reports the first failure.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"competition", c.Competition.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"router", c.Router.Validate},
		{"rules", c.Rules.Validate},
		{"audit", c.Audit.Validate},
		{"modules", c.Modules.Validate},
		{"transport", c.Transport.Validate},
		{"kafka", c.Kafka.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	if c.MQTT.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	return nil
}
