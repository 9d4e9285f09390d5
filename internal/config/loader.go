package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".minaops"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "MINAOPS"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType(configType)

	v.SetDefault("volumes.backend", "local")
	v.SetDefault("volumes.data_dir", "")
	v.SetDefault("volumes.hcloud.endpoint", "")
	v.SetDefault("volumes.hcloud.token", "")
	v.SetDefault("preferences.default_connection", "")
	v.SetDefault("preferences.output", "json")
	v.SetDefault("preferences.log_level", "warn")
	v.SetDefault("preferences.log_format", "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("volumes.hcloud.token", envPrefix+"_VOLUMES_HCLOUD_TOKEN", "HCLOUD_TOKEN")
	return v
}

// Load reads the configuration from path, or from ~/.minaops/config.yaml
// when path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := configDirPath()
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		v.SetConfigName(configFile)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Volumes.DataDir == "" {
		dir, err := configDirPath()
		if err == nil {
			cfg.Volumes.DataDir = filepath.Join(dir, "volumes")
		}
	}
	return cfg, nil
}

// Save writes the configuration to path, or to ~/.minaops/config.yaml
// when path is empty. Passwords of keyring-backed profiles are never
// written.
func Save(path string, cfg *Config) error {
	if path == "" {
		dir, err := configDirPath()
		if err != nil {
			return fmt.Errorf("config dir: %w", err)
		}
		path = filepath.Join(dir, configFile+"."+configType)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	conns := make([]Connection, len(cfg.Connections))
	for i, c := range cfg.Connections {
		if c.PasswordKeyring {
			c.Password = ""
		}
		conns[i] = c
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("connections", conns)
	v.Set("volumes", cfg.Volumes)
	v.Set("preferences", cfg.Preferences)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		if c := cfg.FindConnection(cfg.Preferences.DefaultConnection); c != nil {
			return c
		}
	}

	return &cfg.Connections[0]
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
