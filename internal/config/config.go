package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection  `mapstructure:"connections" yaml:"connections"`
	Volumes     VolumesConfig `mapstructure:"volumes" yaml:"volumes"`
	Preferences Preferences   `mapstructure:"preferences" yaml:"preferences"`
}

// Connection represents a saved database connection profile.
type Connection struct {
	Name            string `mapstructure:"name" yaml:"name"`
	Driver          string `mapstructure:"driver" yaml:"driver"`
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Database        string `mapstructure:"database" yaml:"database"`
	Username        string `mapstructure:"username" yaml:"username"`
	Password        string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordKeyring bool   `mapstructure:"password_keyring" yaml:"password_keyring,omitempty"`
	SSLMode         string `mapstructure:"sslmode" yaml:"sslmode"`
}

// VolumesConfig selects and configures the volume backend.
type VolumesConfig struct {
	Backend string       `mapstructure:"backend" yaml:"backend"`
	DataDir string       `mapstructure:"data_dir" yaml:"data_dir"`
	HCloud  HCloudConfig `mapstructure:"hcloud" yaml:"hcloud"`
}

// HCloudConfig holds Hetzner Cloud API settings.
type HCloudConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Token    string `mapstructure:"token" yaml:"token,omitempty"`
}

// Preferences holds user preferences.
type Preferences struct {
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
	Output            string `mapstructure:"output" yaml:"output"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string `mapstructure:"log_format" yaml:"log_format"`
}

// DSN builds a PostgreSQL connection URL from the connection profile.
// Credentials are escaped.
func (c Connection) DSN() string {
	u := url.URL{Scheme: "postgresql", Path: "/" + c.Database}
	u.Host = c.Host
	if c.Port > 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection URL into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return Connection{}, fmt.Errorf("invalid DSN: port %q: %w", portStr, err)
		}
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	conn.Name = fmt.Sprintf("postgres-%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	return cfg.FindConnection(name) != nil
}

// FindConnection returns the named connection or nil.
func (cfg *Config) FindConnection(name string) *Connection {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i]
		}
	}
	return nil
}

// AddConnection appends a connection if it doesn't already exist. It
// reports whether the connection was added.
func (cfg *Config) AddConnection(conn Connection) bool {
	if cfg.HasConnection(conn.Name) {
		return false
	}
	cfg.Connections = append(cfg.Connections, conn)
	return true
}
