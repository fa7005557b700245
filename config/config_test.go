package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/rules"
)

const sample = `competition:
  module_timeout_ms: 250
  concurrent_broadcast: true
scheduler:
  timeslot_length_minutes: 60
  simulation_rate: 3600
  base_time: "2009-01-01T00:00:00Z"
rules:
  empty_chain: reject
ledger:
  tariffs_file: tariffs.yaml
audit:
  backend: sqlite
  path: audit.db
modules:
  customers:
    - id: village
      type: logging
      conf:
        delay: 10ms
  enforcers:
    - id: guard
      type: deny_tariffs
      conf:
        tariff_ids: [2]
transport:
  command_channel: market/commands
  event_channel: market/events
  module_channel: market/modules
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "server"
metrics:
  sinks:
    - type: "nop"
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"module_timeout_ms", cfg.Competition.ModuleTimeoutMS, 250},
		{"grace_period_ms default", cfg.Competition.GracePeriodMS, 5000},
		{"concurrent_broadcast", cfg.Competition.ConcurrentBroadcast, true},
		{"simulation_rate", cfg.Scheduler.SimulationRate, 3600.0},
		{"base_time", cfg.Scheduler.BaseTime.Equal(time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)), true},
		{"router queue default", cfg.Router.QueueSize, 256},
		{"empty_chain", cfg.Rules.EmptyChain, rules.PolicyReject},
		{"tariffs_file", cfg.Ledger.TariffsFile, "tariffs.yaml"},
		{"audit backend", cfg.Audit.Backend, "sqlite"},
		{"customers", len(cfg.Modules.Customers), 1},
		{"enforcer type", cfg.Modules.ByCapability(model.CapabilityTariffRuleEnforcer)[0].Type, "deny_tariffs"},
		{"command_channel", cfg.Transport.CommandChannel, "market/commands"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("K_COMPETITION__MODULE_TIMEOUT_MS", "750")
	t.Setenv("K_TRANSPORT__EVENT_CHANNEL", "other/events")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.Competition.ModuleTimeoutMS)
	assert.Equal(t, "other/events", cfg.Transport.EventChannel)
}

func TestLoad_JSON(t *testing.T) {
	data := `{"transport":{"command_channel":"c","event_channel":"e","module_channel":"m"},"mqtt":{"broker":"tcp://b:1883"},"audit":{"backend":"memory"}}`
	cfg, err := Load(writeConfig(t, "config.json", data))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Audit.Backend)
	assert.Equal(t, 60, cfg.Scheduler.TimeslotLengthMinutes)
	assert.Equal(t, rules.PolicyAccept, cfg.Rules.EmptyChain)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
	}{
		"missing channel": {"c.yaml", "transport:\n  command_channel: c\n  event_channel: e\nmqtt:\n  broker: tcp://b:1883\n"},
		"missing broker":  {"c.yaml", "transport:\n  command_channel: c\n  event_channel: e\n  module_channel: m\n"},
		"bad rate":        {"c.yaml", "scheduler:\n  simulation_rate: -1\ntransport:\n  command_channel: c\n  event_channel: e\n  module_channel: m\nmqtt:\n  broker: tcp://b:1883\n"},
		"bad policy":      {"c.yaml", "rules:\n  empty_chain: maybe\ntransport:\n  command_channel: c\n  event_channel: e\n  module_channel: m\nmqtt:\n  broker: tcp://b:1883\n"},
		"module no type":  {"c.yaml", "modules:\n  customers:\n    - id: x\ntransport:\n  command_channel: c\n  event_channel: e\n  module_channel: m\nmqtt:\n  broker: tcp://b:1883\n"},
		"unsupported":     {"c.toml", "x = 1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.name, tc.data))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestAuditConfig(t *testing.T) {
	c := AuditConfig{}
	c.SetDefaults()
	assert.Equal(t, "jsonl", c.Backend)
	assert.NotEmpty(t, c.Path)
	assert.Error(t, AuditConfig{Backend: "csv", Path: "x"}.Validate())
	assert.Error(t, AuditConfig{Backend: "sqlite"}.Validate())
	r := AuditConfig{Backend: "rotating", Path: "a.log"}
	r.SetDefaults()
	assert.Equal(t, 100, r.MaxSizeMB)
}
