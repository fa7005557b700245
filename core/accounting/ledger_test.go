package accounting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retailmarket/core/model"
)

func TestLedger_AddGetList(t *testing.T) {
	l, err := NewLedger(model.Tariff{ID: 3, Broker: "b"}, model.Tariff{ID: 1, Broker: "a", Status: model.TariffRevoked})
	require.NoError(t, err)

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, model.TariffActive, list[0].Status, "new tariffs start active")

	assert.Error(t, l.Add(model.Tariff{ID: 3}))
	assert.Error(t, l.Add(model.Tariff{ID: 0}))
	_, err = l.Get(7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_GetReturnsCopy(t *testing.T) {
	l, err := NewLedger(model.Tariff{ID: 1, Broker: "a"})
	require.NoError(t, err)
	got, _ := l.Get(1)
	got.Broker = "changed"
	again, _ := l.Get(1)
	assert.Equal(t, "a", again.Broker)
}

func TestLoadTariffs(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "tariffs.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("tariffs:\n  - id: 2\n    broker: MyBroker\n    owner_auth_token: MyBrokerAuthToken\n"), 0o644))
	js := filepath.Join(dir, "tariffs.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"tariffs":[{"id":5,"broker":"x","owner_auth_token":"t"}]}`), 0o644))

	ts, err := LoadTariffs(yml)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "MyBrokerAuthToken", ts[0].OwnerAuthToken)

	ts, err = LoadTariffs(js)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, int64(5), ts[0].ID)

	_, err = LoadTariffs(filepath.Join(dir, "tariffs.toml"))
	assert.Error(t, err)
}
