// Package accounting owns the tariff ledger and applies tariff commands to it.
//
// The ledger can only be mutated through Service, which serializes every
// write and records the outcome in the audit store.
package accounting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/retailmarket/core/model"
)

// Ledger stores tariffs by id.
type Ledger struct {
	mu      sync.RWMutex
	tariffs map[int64]model.Tariff
}

// NewLedger returns a ledger holding the given tariffs.
func NewLedger(tariffs ...model.Tariff) (*Ledger, error) {
	l := &Ledger{tariffs: make(map[int64]model.Tariff, len(tariffs))}
	for _, t := range tariffs {
		if err := l.Add(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add inserts a new active tariff. Ids must be positive and unique.
func (l *Ledger) Add(t model.Tariff) error {
	if t.ID <= 0 {
		return fmt.Errorf("tariff id must be positive, got %d", t.ID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tariffs[t.ID]; ok {
		return fmt.Errorf("tariff %d already exists", t.ID)
	}
	t.Status = model.TariffActive
	t.RevokedAt = time.Time{}
	l.tariffs[t.ID] = t
	return nil
}

// Get returns a copy of the tariff with the given id.
func (l *Ledger) Get(id int64) (model.Tariff, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tariffs[id]
	if !ok {
		return model.Tariff{}, fmt.Errorf("tariff %d: %w", id, ErrNotFound)
	}
	return t, nil
}

// List returns every tariff ordered by id.
func (l *Ledger) List() []model.Tariff {
	l.mu.RLock()
	out := make([]model.Tariff, 0, len(l.tariffs))
	for _, t := range l.tariffs {
		out = append(out, t)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// markRevoked moves an active tariff to Revoked. It reports false when the
// tariff was already revoked.
func (l *Ledger) markRevoked(id int64, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tariffs[id]
	if !ok {
		return false, fmt.Errorf("tariff %d: %w", id, ErrNotFound)
	}
	if t.IsRevoked() {
		return false, nil
	}
	t.Status = model.TariffRevoked
	t.RevokedAt = at
	l.tariffs[id] = t
	return true, nil
}

type seedFile struct {
	Tariffs []model.Tariff `json:"tariffs" yaml:"tariffs"`
}

// LoadTariffs reads a YAML or JSON seed file of the form
// {tariffs: [{id, broker, owner_auth_token}]}.
func LoadTariffs(path string) ([]model.Tariff, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed seedFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &seed)
	case ".json":
		err = json.Unmarshal(b, &seed)
	default:
		return nil, fmt.Errorf("unsupported tariff file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return seed.Tariffs, nil
}
