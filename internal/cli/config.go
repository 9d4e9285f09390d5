package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joacominatel/minaops/internal/app"
	"github.com/joacominatel/minaops/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(g *globals, d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection profiles and stored passwords",
	}
	cmd.AddCommand(newAddConnectionCommand(g), newSetPasswordCommand(g, d))
	return cmd
}

func newAddConnectionCommand(g *globals) *cobra.Command {
	var (
		name       string
		useKeyring bool
		makeDef    bool
	)
	cmd := &cobra.Command{
		Use:   "add-connection DSN",
		Short: "Save a PostgreSQL connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := config.ParseDSN(args[0])
			if err != nil {
				return &app.ErrConfig{Cause: err}
			}
			if name != "" {
				conn.Name = name
			}
			if useKeyring {
				conn.PasswordKeyring = true
				conn.Password = ""
			}
			if !g.cfg.AddConnection(conn) {
				return &app.ErrConfig{Cause: fmt.Errorf("connection %q already exists", conn.Name)}
			}
			if makeDef {
				g.cfg.Preferences.DefaultConnection = conn.Name
			}
			if err := config.Save(g.configPath, g.cfg); err != nil {
				return err
			}
			g.log.WithField("profile", conn.Name).Info("connection saved")
			return writeJSON(cmd.OutOrStdout(), map[string]any{"changed": true, "name": conn.Name})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "profile name (default derived from the DSN)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "read the password from the OS keyring instead of the file")
	cmd.Flags().BoolVar(&makeDef, "default", false, "make this the default connection")
	return cmd
}

func newSetPasswordCommand(g *globals, d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-password PROFILE",
		Short: "Store a profile password in the OS keyring, read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := args[0]
			if !g.cfg.HasConnection(profile) {
				return &app.ErrConfig{Cause: fmt.Errorf("connection profile %q not found", profile)}
			}
			pw, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return &app.ErrConfig{Cause: err}
			}
			if err := d.Secrets.Set(profile, pw); err != nil {
				return err
			}
			g.log.WithField("profile", profile).Info("password stored in keyring")
			return writeJSON(cmd.OutOrStdout(), map[string]any{"changed": true, "name": profile})
		},
	}
	return cmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password must not be empty")
	}
	return line, nil
}

func newVersionCommand(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "minaops "+d.Version)
			return err
		},
	}
}
