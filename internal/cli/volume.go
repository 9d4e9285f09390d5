package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/joacominatel/minaops/internal/app"
	"github.com/joacominatel/minaops/internal/config"
	"github.com/joacominatel/minaops/internal/tui/results"
	"github.com/joacominatel/minaops/internal/tui/statusbar"
	"github.com/joacominatel/minaops/internal/volume"
	"github.com/joacominatel/minaops/internal/volume/badgerstore"
	"github.com/joacominatel/minaops/internal/volume/hcloudstore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// OpenStore opens the volume backend selected in cfg.
func OpenStore(cfg config.VolumesConfig, version string, log logrus.FieldLogger) (volume.Store, error) {
	switch cfg.Backend {
	case "", "local":
		return badgerstore.Open(badgerstore.Config{DataDir: cfg.DataDir, Logger: log})
	case "hcloud":
		return hcloudstore.New(hcloudstore.Config{
			Token:    cfg.HCloud.Token,
			Endpoint: cfg.HCloud.Endpoint,
			Version:  version,
			Logger:   log,
		})
	default:
		return nil, fmt.Errorf("%w: unknown volume backend %q", volume.ErrInvalidParams, cfg.Backend)
	}
}

func newVolumeCommand(g *globals, d Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Gather facts about volumes and manage fixture volumes",
	}
	cmd.AddCommand(newVolumeFactsCommand(g, d), newVolumeEnsureCommand(g, d))
	return cmd
}

func openVolumeService(g *globals, d Deps) (*app.VolumeService, error) {
	backend := g.cfg.Volumes.Backend
	if backend == "" {
		backend = "local"
	}
	log := g.log.WithField("backend", backend)
	store, err := d.OpenStore(g.cfg.Volumes, d.Version, log)
	if err != nil {
		if errors.Is(err, volume.ErrInvalidParams) {
			return nil, &app.ErrConfig{Cause: err}
		}
		return nil, &app.ErrConnection{Backend: backend, Cause: err}
	}
	return app.NewVolumeService(store, backend, log), nil
}

func loadVolumeArgs(path string) (config.VolumeArgs, error) {
	var va config.VolumeArgs
	if path == "" {
		return va, nil
	}
	if err := config.LoadArgs(path, &va); err != nil {
		return va, &app.ErrConfig{Cause: err}
	}
	return va, nil
}

func newVolumeFactsCommand(g *globals, d Deps) *cobra.Command {
	var (
		argsFile string
		flags    config.VolumeArgs
	)
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "List volumes matching at most one of --id, --name or --label-selector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			va, err := loadVolumeArgs(argsFile)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("id") {
				va.ID = flags.ID
			}
			if fl.Changed("name") {
				va.Name = flags.Name
			}
			if fl.Changed("label-selector") {
				va.LabelSelector = flags.LabelSelector
			}
			if fl.Changed("check") {
				va.Check = flags.Check
			}

			svc, err := openVolumeService(g, d)
			if err != nil {
				return err
			}
			defer svc.Close()

			facts, err := svc.Facts(cmd.Context(), volume.FactsParams{
				ID:            va.ID,
				Name:          va.Name,
				LabelSelector: va.LabelSelector,
				Check:         va.Check,
			})
			if err != nil {
				return err
			}

			table := results.FromFacts(facts)
			summary := statusbar.Summary{Status: table.Title, RowCount: int64(len(facts))}
			switch {
			case g.interactive:
				return d.RunViewer(table, summary)
			case g.output == "table":
				_, err := fmt.Fprintln(d.Stdout, results.Render(table))
				return err
			default:
				return writeJSON(d.Stdout, struct {
					Changed bool         `json:"changed"`
					Volumes volume.Facts `json:"volumes"`
				}{Volumes: facts})
			}
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&argsFile, "args", "", "YAML or JSON file with module arguments")
	fl.StringVar(&flags.ID, "id", "", "volume id")
	fl.StringVar(&flags.Name, "name", "", "volume name")
	fl.StringVar(&flags.LabelSelector, "label-selector", "", "label selector such as key=value or key!=value")
	fl.BoolVar(&flags.Check, "check", false, "check mode (accepted, changes nothing)")
	return cmd
}

func newVolumeEnsureCommand(g *globals, d Deps) *cobra.Command {
	var (
		argsFile string
		flags    config.VolumeArgs
		server   string
	)
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create, update or delete a named volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			va, err := loadVolumeArgs(argsFile)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("name") {
				va.Name = flags.Name
			}
			if fl.Changed("state") || va.State == "" {
				va.State = flags.State
			}
			if fl.Changed("size") {
				va.Size = flags.Size
			}
			if fl.Changed("location") {
				va.Location = flags.Location
			}
			if fl.Changed("label") {
				va.Labels = flags.Labels
			}
			if fl.Changed("server") {
				va.Server = &server
			}
			if fl.Changed("format") {
				va.Format = flags.Format
			}
			if fl.Changed("check") {
				va.Check = flags.Check
			}

			svc, err := openVolumeService(g, d)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Ensure(cmd.Context(), volume.Desired{
				Name:     va.Name,
				State:    volume.State(va.State),
				Size:     va.Size,
				Location: va.Location,
				Labels:   va.Labels,
				Server:   va.Server,
				Format:   va.Format,
			}, va.Check)
			if err != nil {
				return err
			}

			if g.output == "table" && res.State != nil {
				_, err := fmt.Fprintf(d.Stdout, "%s\nchanged: %s\n",
					results.Render(results.FromFacts(volume.Facts{*res.State})), strconv.FormatBool(res.Changed))
				return err
			}
			return writeJSON(d.Stdout, res)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&argsFile, "args", "", "YAML or JSON file with module arguments")
	fl.StringVar(&flags.Name, "name", "", "volume name")
	fl.StringVar(&flags.State, "state", string(volume.StatePresent), "present or absent")
	fl.IntVar(&flags.Size, "size", 0, "size in GB (required to create, may only grow)")
	fl.StringVar(&flags.Location, "location", "", "location, fixed after creation")
	fl.StringToStringVar(&flags.Labels, "label", nil, "labels as key=value (repeatable)")
	fl.StringVar(&server, "server", "", "server to attach to, empty to detach")
	fl.StringVar(&flags.Format, "format", "", "filesystem to create, e.g. ext4")
	fl.BoolVar(&flags.Check, "check", false, "report what would change without changing it")
	return cmd
}
