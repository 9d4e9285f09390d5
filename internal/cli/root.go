// Package cli wires the minaops commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joacominatel/minaops/internal/app"
	"github.com/joacominatel/minaops/internal/config"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/joacominatel/minaops/internal/database/postgres"
	"github.com/joacominatel/minaops/internal/logging"
	"github.com/joacominatel/minaops/internal/tui"
	"github.com/joacominatel/minaops/internal/tui/results"
	"github.com/joacominatel/minaops/internal/tui/statusbar"
	"github.com/joacominatel/minaops/internal/volume"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Deps are the collaborators commands are built from. Tests replace them.
type Deps struct {
	Version   string
	Stdout    io.Writer
	Stderr    io.Writer
	Getenv    config.Getenv
	Secrets   config.SecretStore
	NewDriver func(log logrus.FieldLogger) database.Driver
	OpenStore func(cfg config.VolumesConfig, version string, log logrus.FieldLogger) (volume.Store, error)
	RunViewer func(t results.Table, s statusbar.Summary) error
}

// DefaultDeps returns the production collaborators.
func DefaultDeps(version string) Deps {
	return Deps{
		Version: version,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		Secrets: config.NewKeyring(),
		NewDriver: func(log logrus.FieldLogger) database.Driver {
			return postgres.New(log)
		},
		OpenStore: OpenStore,
		RunViewer: func(t results.Table, s statusbar.Summary) error {
			return tui.Run(t, s, nil, nil)
		},
	}
}

// globals holds the persistent flags and what PersistentPreRunE derived
// from them.
type globals struct {
	configPath  string
	logLevel    string
	logFormat   string
	output      string
	interactive bool

	cfg *config.Config
	log *logrus.Entry
}

// NewRootCommand builds the command tree.
func NewRootCommand(d Deps) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "minaops",
		Short:         "Run PostgreSQL statements and gather volume facts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init(cmd, d)
		},
	}
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &app.ErrConfig{Cause: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.minaops/config.yaml)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")
	pf.StringVarP(&g.output, "output", "o", "", "output format: json or table")
	pf.BoolVarP(&g.interactive, "interactive", "i", false, "browse results in the terminal viewer")

	root.AddCommand(
		newQueryCommand(g, d),
		newVolumeCommand(g, d),
		newConfigCommand(g, d),
		newVersionCommand(d),
	)
	return root
}

func (g *globals) init(cmd *cobra.Command, d Deps) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return &app.ErrConfig{Cause: err}
	}
	g.cfg = cfg

	if g.logLevel == "" {
		g.logLevel = cfg.Preferences.LogLevel
	}
	if g.logFormat == "" {
		g.logFormat = cfg.Preferences.LogFormat
	}
	if g.output == "" {
		g.output = cfg.Preferences.Output
	}
	switch g.output {
	case "", "json", "table":
	default:
		return &app.ErrConfig{Cause: fmt.Errorf("unknown output format %q", g.output)}
	}

	log, err := logging.New(logging.Options{Level: g.logLevel, Format: g.logFormat, Out: d.Stderr})
	if err != nil {
		return &app.ErrConfig{Cause: err}
	}
	g.log = logging.WithRun(log, cmd.CommandPath())
	return nil
}

// failure is the document printed when an invocation fails.
type failure struct {
	Failed bool   `json:"failed"`
	Msg    string `json:"msg"`
}

// Execute runs the command tree with args and returns the process exit
// code. Failures are reported on stdout as a JSON document.
func Execute(d Deps, args []string) int {
	root := NewRootCommand(d)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return app.ExitOK
	}
	enc := json.NewEncoder(d.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(failure{Failed: true, Msg: logging.MaskSecrets(err.Error())})
	return app.ExitCode(err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
