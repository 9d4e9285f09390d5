package config

import (
	"fmt"
	"strconv"
)

// Login holds connection options given for one invocation. Empty fields
// fall through to the environment, then the profile, then defaults.
type Login struct {
	Profile  string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Getenv looks up an environment variable.
type Getenv func(string) string

// ResolveConnection merges defaults, the selected profile, the libpq
// environment variables and l, in increasing order of precedence. A
// keyring-backed profile password is read from secrets only when no
// other source supplied one.
func (cfg *Config) ResolveConnection(l Login, env Getenv, secrets SecretStore) (Connection, error) {
	conn := Connection{
		Driver:  "postgres",
		Host:    "localhost",
		Port:    5432,
		SSLMode: "prefer",
	}

	var profile *Connection
	if l.Profile != "" {
		profile = cfg.FindConnection(l.Profile)
		if profile == nil {
			return Connection{}, fmt.Errorf("connection profile %q not found", l.Profile)
		}
	} else {
		profile = DefaultConnection(cfg)
	}
	if profile != nil {
		conn.Name = profile.Name
		conn.PasswordKeyring = profile.PasswordKeyring
		overlay(&conn, Login{
			Host:     profile.Host,
			Port:     profile.Port,
			User:     profile.Username,
			Password: profile.Password,
			Database: profile.Database,
			SSLMode:  profile.SSLMode,
		})
	}

	if env != nil {
		fromEnv, err := loginFromEnv(env)
		if err != nil {
			return Connection{}, err
		}
		overlay(&conn, fromEnv)
	}
	overlay(&conn, l)

	if conn.Password == "" && conn.PasswordKeyring && secrets != nil {
		pw, err := secrets.Get(conn.Name)
		if err != nil {
			return Connection{}, fmt.Errorf("password for %s: %w", conn.Name, err)
		}
		conn.Password = pw
	}
	return conn, nil
}

func loginFromEnv(env Getenv) (Login, error) {
	l := Login{
		Host:     env("PGHOST"),
		User:     env("PGUSER"),
		Password: env("PGPASSWORD"),
		Database: env("PGDATABASE"),
		SSLMode:  env("PGSSLMODE"),
	}
	if p := env("PGPORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Login{}, fmt.Errorf("PGPORT: %w", err)
		}
		l.Port = port
	}
	return l, nil
}

func overlay(c *Connection, l Login) {
	if l.Host != "" {
		c.Host = l.Host
	}
	if l.Port > 0 {
		c.Port = l.Port
	}
	if l.User != "" {
		c.Username = l.User
	}
	if l.Password != "" {
		c.Password = l.Password
	}
	if l.Database != "" {
		c.Database = l.Database
	}
	if l.SSLMode != "" {
		c.SSLMode = l.SSLMode
	}
}
