package plugins

import (
	"encoding/json"
	"fmt"

	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/logger"
	"github.com/kilianp07/retailmarket/core/model"
	"github.com/kilianp07/retailmarket/core/registry"
)

// Directive loads or unloads a participant module at runtime, or pauses
// and resumes the clock on behalf of a broker.
type Directive struct {
	Op         string         `json:"op"`
	Broker     string         `json:"broker,omitempty"`
	Capability string         `json:"capability"`
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Conf       map[string]any `json:"conf"`
}

// Pauser grants clock pauses to brokers.
type Pauser interface {
	RequestPause(broker string) error
	ReleasePause(broker string) error
}

// Directives applies module directives to a registry. pauser may be nil,
// in which case pause directives are refused.
type Directives struct {
	reg    *registry.Registry
	pauser Pauser
	log    logger.Logger
}

func NewDirectives(reg *registry.Registry, pauser Pauser, log logger.Logger) *Directives {
	return &Directives{reg: reg, pauser: pauser, log: log}
}

// HandleDirective decodes and applies one directive. A registration of an
// existing id replaces the module.
func (d *Directives) HandleDirective(raw []byte) error {
	var dir Directive
	if err := json.Unmarshal(raw, &dir); err != nil {
		return fmt.Errorf("decode directive: %w", err)
	}
	switch dir.Op {
	case "pause", "resume":
		return d.pause(dir)
	}
	c, err := model.ParseCapability(dir.Capability)
	if err != nil {
		return err
	}
	if dir.ID == "" {
		return fmt.Errorf("directive %s: id is required", dir.Op)
	}
	switch dir.Op {
	case "register":
		m, err := NewModule(c, config.ModuleSpec{ID: dir.ID, Type: dir.Type, Conf: dir.Conf})
		if err != nil {
			return err
		}
		if err := d.reg.Register(c, dir.ID, m); err != nil {
			return err
		}
		d.log.Infof("module %s/%s registered (%s)", c, dir.ID, dir.Type)
	case "unregister":
		if !d.reg.Unregister(c, dir.ID) {
			return fmt.Errorf("unregister %s/%s: %w", c, dir.ID, registry.ErrNotFound)
		}
		d.log.Infof("module %s/%s unregistered", c, dir.ID)
	default:
		return fmt.Errorf("unknown directive op %q", dir.Op)
	}
	return nil
}

func (d *Directives) pause(dir Directive) error {
	if d.pauser == nil {
		return fmt.Errorf("directive %s: pausing is not available", dir.Op)
	}
	if dir.Broker == "" {
		return fmt.Errorf("directive %s: broker is required", dir.Op)
	}
	if dir.Op == "pause" {
		return d.pauser.RequestPause(dir.Broker)
	}
	return d.pauser.ReleasePause(dir.Broker)
}
