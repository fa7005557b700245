package plugins

import (
	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/core/factory"
	"github.com/kilianp07/retailmarket/core/registry"
	"github.com/kilianp07/retailmarket/participants"
)

func init() {
	RegisterCustomer("logging", func(id string, conf map[string]any) (registry.Module, error) {
		var c participants.CustomerConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return participants.NewLoggingCustomer(id, c), nil
	})

	RegisterDistributionUtility("logging", func(id string, conf map[string]any) (registry.Module, error) {
		var c participants.UtilityConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return participants.NewLoggingUtility(id, c), nil
	})

	RegisterEnforcer("accept_all", func(id string, _ map[string]any) (registry.Module, error) {
		return participants.NewAcceptAll(id), nil
	})
	RegisterEnforcer("deny_tariffs", func(id string, conf map[string]any) (registry.Module, error) {
		var c participants.DenyTariffsConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return participants.NewDenyTariffs(id, c), nil
	})
	RegisterEnforcer("deny_action", func(id string, conf map[string]any) (registry.Module, error) {
		var c participants.DenyActionConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return participants.NewDenyAction(id, c)
	})

	RegisterAuditStore("memory", func(config.AuditConfig) (audit.Store, error) {
		return audit.NewMemoryStore(), nil
	})
	RegisterAuditStore("jsonl", func(c config.AuditConfig) (audit.Store, error) {
		return audit.NewJSONLStore(c.Path)
	})
	RegisterAuditStore("rotating", func(c config.AuditConfig) (audit.Store, error) {
		return audit.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	RegisterAuditStore("sqlite", func(c config.AuditConfig) (audit.Store, error) {
		return audit.NewSQLiteStore(c.Path)
	})
}
