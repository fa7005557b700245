package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/model"
)

// TariffDef seeds one tariff in the ledger.
type TariffDef struct {
	ID     int64  `yaml:"id"`
	Broker string `yaml:"broker"`
	Token  string `yaml:"token"`
}

func (d TariffDef) ToModel() model.Tariff {
	return model.Tariff{ID: d.ID, Broker: d.Broker, OwnerAuthToken: d.Token}
}

// EnforcerDef registers a built-in rule enforcer.
type EnforcerDef struct {
	ID   string         `yaml:"id"`
	Type string         `yaml:"type"`
	Conf map[string]any `yaml:"conf,omitempty"`
}

func (d EnforcerDef) ToSpec() config.ModuleSpec {
	return config.ModuleSpec{ID: d.ID, Type: d.Type, Conf: d.Conf}
}

// Tick lists the raw commands received before one timeslot.
type Tick struct {
	Commands []string `yaml:"commands"`
}

type Expected struct {
	// Outcomes counts successful results by audit outcome.
	Outcomes map[string]int `yaml:"outcomes"`
	// Errors counts refused commands by error kind.
	Errors  map[string]int `yaml:"errors"`
	Revoked []int64        `yaml:"revoked"`
	Active  []int64        `yaml:"active"`
}

type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	EmptyChain  string        `yaml:"empty_chain,omitempty"`
	Tariffs     []TariffDef   `yaml:"tariffs"`
	Enforcers   []EnforcerDef `yaml:"enforcers,omitempty"`
	Ticks       []Tick        `yaml:"ticks"`
	Expected    Expected      `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
