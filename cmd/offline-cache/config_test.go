package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	offlinecache "github.com/always-cache/offline-cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "offline-cache.yml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestGetConfigDefaults(t *testing.T) {
	config, err := getConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", config.Listen)
	assert.Equal(t, driverSQLite, config.Store.Driver)
	assert.NoError(t, config.validate())

	_, err = config.originURL()
	assert.ErrorIs(t, err, errNoOrigin)
}

func TestGetConfigFromFile(t *testing.T) {
	filename := writeConfig(t, `
origin: https://first-aid.example
version: v2.0.0
manifest:
  - /
  - /offline-medical-guide
navigationTimeout: 1500ms
emergencyNumber: "112"
store:
  driver: redis
  redis:
    addr: redis:6379
    db: 2
`)
	config, err := getConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "https://first-aid.example", config.Origin)
	assert.Equal(t, []string{"/", "/offline-medical-guide"}, config.Manifest)
	assert.Equal(t, 1500*time.Millisecond, config.NavigationTimeout)
	assert.Equal(t, "redis:6379", config.Store.Redis.Addr)
	assert.Equal(t, 2, config.Store.Redis.DB)
	// defaults survive when not in the file
	assert.Equal(t, "offline-cache:", config.Store.Redis.Prefix)

	cacheConfig := config.cacheConfig()
	assert.Equal(t, "v2.0.0", cacheConfig.Version)
	assert.Equal(t, "112", cacheConfig.EmergencyNumber)
}

func TestGetConfigEnvOverridesFile(t *testing.T) {
	filename := writeConfig(t, "origin: https://first-aid.example\nemergencyNumber: \"112\"\n")
	t.Setenv("OFFLINE_CACHE_EMERGENCY_NUMBER", "999")
	t.Setenv("OFFLINE_CACHE_API_PREFIXES", "/api/,/graphql")
	t.Setenv("OFFLINE_CACHE_STORE_DRIVER", "memory")

	config, err := getConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "999", config.EmergencyNumber)
	assert.Equal(t, "https://first-aid.example", config.Origin)
	assert.Equal(t, []string{"/api/", "/graphql"}, config.APIPrefixes)
	assert.Equal(t, driverMemory, config.Store.Driver)
}

func TestGetConfigMissingFile(t *testing.T) {
	_, err := getConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	config := defaultConfig()
	config.Store.Driver = "mongo"
	assert.Error(t, config.validate())

	config = defaultConfig()
	config.NavigationTimeout = -time.Second
	assert.Error(t, config.validate())

	for number, valid := range map[string]bool{"": true, "112": true, "+44 999": true, "call-now": false, "+": false} {
		config = defaultConfig()
		config.EmergencyNumber = number
		if valid {
			assert.NoError(t, config.validate(), number)
		} else {
			assert.Error(t, config.validate(), number)
		}
	}
}

func TestUndialableEmergencyNumberFromEnv(t *testing.T) {
	t.Setenv("OFFLINE_CACHE_EMERGENCY_NUMBER", "ambulance")
	_, err := (&cli{}).loadConfig()
	assert.ErrorContains(t, err, "no digits to dial")
}

func TestOriginURL(t *testing.T) {
	tests := map[string]string{
		"https://first-aid.example": "https://first-aid.example",
		"http://127.0.0.1:3000/":    "http://127.0.0.1:3000/",
		"first-aid.example":         "https://first-aid.example",
		"10.0.0.2":                  "https://10.0.0.2",
	}
	for origin, expected := range tests {
		u, err := Config{Origin: origin}.originURL()
		require.NoError(t, err, origin)
		assert.Equal(t, expected, u.String(), origin)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Setenv("OFFLINE_CACHE_LISTEN", ":9000")
	c := &cli{listen: ":7000", storeDriver: driverMemory, origin: "http://localhost:3000"}
	config, err := c.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", config.Listen)
	assert.Equal(t, driverMemory, config.Store.Driver)
	assert.Equal(t, "http://localhost:3000", config.Origin)
}

func TestOpenRegistry(t *testing.T) {
	ctx := context.Background()
	for _, store := range []StoreConfig{
		{Driver: driverMemory},
		{Driver: driverSQLite, SQLite: SQLiteStore{Filename: filepath.Join(t.TempDir(), "cache.db")}},
	} {
		registry, closeRegistry, err := store.openRegistry()
		require.NoError(t, err, store.Driver)
		_, err = registry.Open(ctx, "first-aid-static-v1")
		require.NoError(t, err, store.Driver)
		assert.NoError(t, closeRegistry(), store.Driver)
	}

	_, _, err := StoreConfig{Driver: "mongo"}.openRegistry()
	assert.Error(t, err)
}

func TestInstallThenListGenerations(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset " + r.URL.Path))
	}))
	defer origin.Close()
	db := filepath.Join(t.TempDir(), "cache.db")

	out := &bytes.Buffer{}
	cmd := newRootCmd(out)
	cmd.SetArgs([]string{"install", "--origin", origin.URL, "--store", driverSQLite, "--db", db})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	var report offlinecache.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, offlinecache.DefaultManifest, report.Done)

	out.Reset()
	cmd = newRootCmd(out)
	cmd.SetArgs([]string{"generations", "--keys", "--store", driverSQLite, "--db", db})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "* first-aid-static-"+offlinecache.DefaultVersion)
	assert.Contains(t, out.String(), "    /offline-medical-guide\n")
}
