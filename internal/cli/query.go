package cli

import (
	"context"
	"fmt"

	"github.com/joacominatel/minaops/internal/app"
	"github.com/joacominatel/minaops/internal/config"
	"github.com/joacominatel/minaops/internal/database"
	"github.com/joacominatel/minaops/internal/tui/results"
	"github.com/joacominatel/minaops/internal/tui/statusbar"
	"github.com/spf13/cobra"
)

type queryFlags struct {
	argsFile   string
	positional []string
	named      []string
	args       config.QueryArgs
}

func newQueryCommand(g *globals, d Deps) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a statement or script against PostgreSQL",
		Long: `Run one statement (--query) or a script file (--path-to-script) in a
single session and print the query result: query text with arguments
interpolated, rowcount, statusmessage, query_result and changed.

Placeholders are %s for --arg values and %(name)s for --named values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qa, err := f.merge(cmd)
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), g, d, qa)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.argsFile, "args", "", "YAML or JSON file with module arguments")
	fl.StringVar(&f.args.Connection, "connection", "", "named connection profile")
	fl.StringVar(&f.args.LoginHost, "login-host", "", "database host")
	fl.IntVar(&f.args.Port, "port", 0, "database port")
	fl.StringVar(&f.args.LoginUser, "login-user", "", "database user")
	fl.StringVar(&f.args.LoginPassword, "login-password", "", "database password")
	fl.StringVar(&f.args.DB, "db", "", "database name")
	fl.StringVar(&f.args.SSLMode, "ssl-mode", "", "sslmode: disable, allow, prefer, require, verify-ca, verify-full")
	fl.StringVarP(&f.args.Query, "query", "q", "", "statement to run")
	fl.StringVar(&f.args.PathToScript, "path-to-script", "", "script file to run")
	fl.StringArrayVar(&f.positional, "arg", nil, "positional argument for %s (repeatable, YAML scalar)")
	fl.StringArrayVar(&f.named, "named", nil, "named argument key=value for %(key)s (repeatable)")
	fl.StringVar(&f.args.SessionRole, "session-role", "", "role to switch to before running")
	fl.BoolVar(&f.args.Autocommit, "autocommit", false, "run without a wrapping transaction")
	fl.BoolVar(&f.args.Check, "check", false, "run and roll back")
	return cmd
}

// merge overlays explicitly set flags on the args file.
func (f *queryFlags) merge(cmd *cobra.Command) (config.QueryArgs, error) {
	var out config.QueryArgs
	if f.argsFile != "" {
		if err := config.LoadArgs(f.argsFile, &out); err != nil {
			return out, &app.ErrConfig{Cause: err}
		}
	}

	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("connection", &out.Connection, f.args.Connection)
	set("login-host", &out.LoginHost, f.args.LoginHost)
	set("login-user", &out.LoginUser, f.args.LoginUser)
	set("login-password", &out.LoginPassword, f.args.LoginPassword)
	set("db", &out.DB, f.args.DB)
	set("ssl-mode", &out.SSLMode, f.args.SSLMode)
	set("query", &out.Query, f.args.Query)
	set("path-to-script", &out.PathToScript, f.args.PathToScript)
	set("session-role", &out.SessionRole, f.args.SessionRole)
	if fl.Changed("port") {
		out.Port = f.args.Port
	}
	if fl.Changed("autocommit") {
		out.Autocommit = f.args.Autocommit
	}
	if fl.Changed("check") {
		out.Check = f.args.Check
	}
	if fl.Changed("arg") {
		out.PositionalArgs = config.ParsePositional(f.positional)
	}
	if fl.Changed("named") {
		named, err := config.ParseNamed(f.named)
		if err != nil {
			return out, &app.ErrConfig{Cause: err}
		}
		out.NamedArgs = named
	}
	return out, nil
}

func runQuery(ctx context.Context, g *globals, d Deps, qa config.QueryArgs) error {
	conn, err := g.cfg.ResolveConnection(qa.Login(), d.Getenv, d.Secrets)
	if err != nil {
		return &app.ErrConfig{Cause: err}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := g.log.WithField("connection", conn.DisplayString())
	svc := app.NewService(d.NewDriver(log), log)
	res, err := svc.RunQuery(ctx, conn.DSN(), database.Params{
		Query:          qa.Query,
		PathToScript:   qa.PathToScript,
		PositionalArgs: qa.PositionalArgs,
		NamedArgs:      qa.NamedArgs,
		SessionRole:    qa.SessionRole,
		Autocommit:     qa.Autocommit,
		Check:          qa.Check,
	})
	if err != nil {
		return err
	}

	summary := statusbar.Summary{Status: res.StatusMessage, RowCount: res.RowCount, Changed: res.Changed}
	table := results.FromQueryResult(res)
	switch {
	case g.interactive:
		return d.RunViewer(table, summary)
	case g.output == "table":
		bar := statusbar.New(summary)
		_, err := fmt.Fprintf(d.Stdout, "%s\n%s\n", results.Render(table), bar.Left())
		return err
	default:
		return writeJSON(d.Stdout, res)
	}
}
