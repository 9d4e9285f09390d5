package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestConnection_DSN(t *testing.T) {
	c := Connection{Host: "db", Port: 5433, Database: "app", Username: "ops", Password: "p@ss/word", SSLMode: "disable"}
	assert.Equal(t, "postgresql://ops:p%40ss%2Fword@db:5433/app?sslmode=disable", c.DSN())

	parsed, err := ParseDSN(c.DSN())
	require.NoError(t, err)
	assert.Equal(t, "p@ss/word", parsed.Password)
	assert.Equal(t, 5433, parsed.Port)
	assert.Equal(t, "postgres-db-5433-app", parsed.Name)

	assert.Equal(t, "postgresql://db/app", Connection{Host: "db", Database: "app"}.DSN())
	assert.Equal(t, "ops@db:5433/app", c.DisplayString())
}

func TestParseDSN_Invalid(t *testing.T) {
	for _, dsn := range []string{"mysql://x/y", "postgres://db:port/app", "::bad"} {
		_, err := ParseDSN(dsn)
		assert.Error(t, err, dsn)
	}
	c, err := ParseDSN("postgres://db/app")
	require.NoError(t, err)
	assert.Equal(t, 5432, c.Port)
}

func TestAddConnection(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.AddConnection(Connection{Name: "a"}))
	assert.False(t, cfg.AddConnection(Connection{Name: "a", Host: "other"}))
	assert.Len(t, cfg.Connections, 1)
	assert.Nil(t, cfg.FindConnection("b"))
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Volumes.Backend)
	assert.Equal(t, "json", cfg.Preferences.Output)
	assert.Nil(t, DefaultConnection(cfg))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := &Config{
		Connections: []Connection{
			{Name: "a", Driver: "postgres", Host: "db-a", Port: 5432, Database: "app", Username: "ops", Password: "plain"},
			{Name: "b", Driver: "postgres", Host: "db-b", Port: 5432, Database: "app", Username: "ops", Password: "kept-out", PasswordKeyring: true},
		},
		Volumes:     VolumesConfig{Backend: "hcloud", DataDir: "/var/lib/minaops"},
		Preferences: Preferences{DefaultConnection: "b", Output: "table", LogLevel: "info", LogFormat: "json"},
	}
	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "kept-out")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Connections, 2)
	assert.Equal(t, "plain", loaded.Connections[0].Password)
	assert.Empty(t, loaded.Connections[1].Password)
	assert.True(t, loaded.Connections[1].PasswordKeyring)
	assert.Equal(t, "hcloud", loaded.Volumes.Backend)
	assert.Equal(t, "b", DefaultConnection(loaded).Name)
	assert.Equal(t, "table", loaded.Preferences.Output)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volumes:\n  backend: local\n"), 0o600))

	t.Setenv("MINAOPS_VOLUMES_BACKEND", "hcloud")
	t.Setenv("HCLOUD_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hcloud", cfg.Volumes.Backend)
	assert.Equal(t, "from-env", cfg.Volumes.HCloud.Token)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections: [\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func env(vars map[string]string) Getenv {
	return func(k string) string { return vars[k] }
}

func TestResolveConnection_Precedence(t *testing.T) {
	cfg := &Config{Connections: []Connection{
		{Name: "prod", Host: "prod-db", Port: 6432, Database: "app", Username: "profile-user", SSLMode: "require"},
	}}

	conn, err := cfg.ResolveConnection(Login{}, env(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "prod-db", conn.Host)
	assert.Equal(t, 6432, conn.Port)
	assert.Equal(t, "require", conn.SSLMode)

	conn, err = cfg.ResolveConnection(Login{}, env(map[string]string{"PGUSER": "env-user", "PGPORT": "7000"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "env-user", conn.Username)
	assert.Equal(t, 7000, conn.Port)

	conn, err = cfg.ResolveConnection(Login{User: "flag-user", Database: "other"}, env(map[string]string{"PGUSER": "env-user"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "flag-user", conn.Username)
	assert.Equal(t, "other", conn.Database)

	empty := &Config{}
	conn, err = empty.ResolveConnection(Login{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost", conn.Host)
	assert.Equal(t, 5432, conn.Port)
	assert.Equal(t, "prefer", conn.SSLMode)
}

func TestResolveConnection_Errors(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.ResolveConnection(Login{Profile: "missing"}, nil, nil)
	assert.Error(t, err)

	_, err = cfg.ResolveConnection(Login{}, env(map[string]string{"PGPORT": "abc"}), nil)
	assert.Error(t, err)
}

func TestResolveConnection_Keyring(t *testing.T) {
	keyring.MockInit()
	kr := NewKeyring()
	cfg := &Config{Connections: []Connection{{Name: "vault", Host: "db", Username: "ops", PasswordKeyring: true}}}

	_, err := cfg.ResolveConnection(Login{}, nil, kr)
	assert.Error(t, err, "nothing stored yet")

	require.NoError(t, kr.Set("vault", "from-keyring"))
	conn, err := cfg.ResolveConnection(Login{}, nil, kr)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", conn.Password)

	conn, err = cfg.ResolveConnection(Login{Password: "explicit"}, nil, kr)
	require.NoError(t, err)
	assert.Equal(t, "explicit", conn.Password)
}
