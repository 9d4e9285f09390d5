// Package hcloudstore serves the volume modules from the Hetzner Cloud API.
package hcloudstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/joacominatel/minaops/internal/volume"
	"github.com/sirupsen/logrus"
)

// Config holds API credentials and an optional endpoint override.
type Config struct {
	Token    string
	Endpoint string
	Version  string
	Logger   logrus.FieldLogger

	// PollInterval overrides how often running actions are polled.
	PollInterval time.Duration
}

// Store implements volume.Store against the Hetzner Cloud API.
type Store struct {
	client *hcloud.Client
	log    logrus.FieldLogger
}

var _ volume.Store = (*Store)(nil)

// New builds a Store. It does not contact the API.
func New(cfg Config) (*Store, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: an API token is required for the hcloud backend", volume.ErrInvalidParams)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	opts := []hcloud.ClientOption{
		hcloud.WithToken(cfg.Token),
		hcloud.WithApplication("minaops", version),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, hcloud.WithEndpoint(cfg.Endpoint))
	}
	if cfg.PollInterval > 0 {
		opts = append(opts, hcloud.WithPollBackoffFunc(hcloud.ConstantBackoff(cfg.PollInterval)))
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{client: hcloud.NewClient(opts...), log: log}, nil
}

// Close is a no-op; the API client holds no session.
func (s *Store) Close() error { return nil }

// classify maps API errors and failed actions to the volume error classes.
// Anything else is treated as the backend being unreachable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		apiErr    hcloud.Error
		actionErr hcloud.ActionError
	)
	if errors.As(err, &apiErr) || errors.As(err, &actionErr) {
		return fmt.Errorf("%w: %s: %v", volume.ErrRejected, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", volume.ErrUnavailable, op, err)
}

// serverNames caches server id to name lookups for one call.
type serverNames map[int64]string

func (s *Store) toVolume(ctx context.Context, v *hcloud.Volume, names serverNames) (volume.Volume, error) {
	out := volume.Volume{
		ID:               v.ID,
		Name:             v.Name,
		Labels:           maps.Clone(v.Labels),
		Size:             v.Size,
		LinuxDevice:      v.LinuxDevice,
		Status:           string(v.Status),
		DeleteProtection: v.Protection.Delete,
		Created:          v.Created,
	}
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	if v.Location != nil {
		out.Location = v.Location.Name
	}
	if v.Server != nil {
		name, err := s.serverName(ctx, v.Server, names)
		if err != nil {
			return volume.Volume{}, err
		}
		out.Server = name
	}
	if v.Format != nil {
		out.Format = *v.Format
	}
	return out, nil
}

// serverName resolves the attached server's name. Volume responses carry
// only the server id.
func (s *Store) serverName(ctx context.Context, ref *hcloud.Server, names serverNames) (string, error) {
	if ref.Name != "" {
		return ref.Name, nil
	}
	if name, ok := names[ref.ID]; ok {
		return name, nil
	}
	srv, _, err := s.client.Server.GetByID(ctx, ref.ID)
	if err != nil {
		return "", classify(fmt.Sprintf("get server %d", ref.ID), err)
	}
	name := strconv.FormatInt(ref.ID, 10)
	if srv != nil && srv.Name != "" {
		name = srv.Name
	}
	names[ref.ID] = name
	return name, nil
}

// Get returns the volume with the given id or nil.
func (s *Store) Get(ctx context.Context, id int64) (*volume.Volume, error) {
	v, _, err := s.client.Volume.GetByID(ctx, id)
	if err != nil {
		return nil, classify(fmt.Sprintf("get volume %d", id), err)
	}
	if v == nil {
		return nil, nil
	}
	out, err := s.toVolume(ctx, v, serverNames{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByName returns the volume with the given name or nil.
func (s *Store) GetByName(ctx context.Context, name string) (*volume.Volume, error) {
	v, _, err := s.client.Volume.GetByName(ctx, name)
	if err != nil {
		return nil, classify(fmt.Sprintf("get volume %q", name), err)
	}
	if v == nil {
		return nil, nil
	}
	out, err := s.toVolume(ctx, v, serverNames{})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through all volumes. The selector is evaluated server-side.
func (s *Store) List(ctx context.Context, sel volume.LabelSelector) ([]volume.Volume, error) {
	vols, err := s.client.Volume.AllWithOpts(ctx, hcloud.VolumeListOpts{
		ListOpts: hcloud.ListOpts{LabelSelector: sel.String()},
	})
	if err != nil {
		return nil, classify("list volumes", err)
	}
	names := serverNames{}
	out := make([]volume.Volume, 0, len(vols))
	for _, v := range vols {
		vol, err := s.toVolume(ctx, v, names)
		if err != nil {
			return nil, err
		}
		out = append(out, vol)
	}
	return out, nil
}

// Create creates a volume and waits for the create action to finish.
func (s *Store) Create(ctx context.Context, opts volume.CreateOpts) (*volume.Volume, error) {
	if opts.Location == "" && opts.Server == "" {
		return nil, fmt.Errorf("%w: volume %q needs a location or a server", volume.ErrInvalidParams, opts.Name)
	}
	createOpts := hcloud.VolumeCreateOpts{
		Name:   opts.Name,
		Size:   opts.Size,
		Labels: opts.Labels,
	}
	if opts.Location != "" {
		createOpts.Location = &hcloud.Location{Name: opts.Location}
	}
	if opts.Format != "" {
		format := opts.Format
		createOpts.Format = &format
	}
	if opts.Server != "" {
		srv, err := s.server(ctx, opts.Server)
		if err != nil {
			return nil, err
		}
		createOpts.Server = srv
		createOpts.Location = nil
	}

	res, _, err := s.client.Volume.Create(ctx, createOpts)
	if err != nil {
		return nil, classify(fmt.Sprintf("create volume %q", opts.Name), err)
	}
	if err := s.wait(ctx, append([]*hcloud.Action{res.Action}, res.NextActions...)...); err != nil {
		return nil, classify(fmt.Sprintf("create volume %q", opts.Name), err)
	}
	s.log.WithFields(logrus.Fields{"id": res.Volume.ID, "name": opts.Name}).Info("volume created")
	return s.Get(ctx, res.Volume.ID)
}

// Update applies label, size and attachment changes.
func (s *Store) Update(ctx context.Context, id int64, opts volume.UpdateOpts) (*volume.Volume, error) {
	ref := &hcloud.Volume{ID: id}
	op := fmt.Sprintf("update volume %d", id)

	if opts.Labels != nil {
		if _, _, err := s.client.Volume.Update(ctx, ref, hcloud.VolumeUpdateOpts{Labels: opts.Labels}); err != nil {
			return nil, classify(op, err)
		}
	}
	if opts.Size != nil {
		action, _, err := s.client.Volume.Resize(ctx, ref, *opts.Size)
		if err != nil {
			return nil, classify(op, err)
		}
		if err := s.wait(ctx, action); err != nil {
			return nil, classify(op, err)
		}
	}
	if opts.Server != nil {
		if err := s.attach(ctx, id, *opts.Server); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *Store) attach(ctx context.Context, id int64, server string) error {
	op := fmt.Sprintf("attach volume %d", id)
	cur, _, err := s.client.Volume.GetByID(ctx, id)
	if err != nil {
		return classify(op, err)
	}
	if cur == nil {
		return fmt.Errorf("%w: volume %d not found", volume.ErrRejected, id)
	}
	if cur.Server != nil {
		action, _, err := s.client.Volume.Detach(ctx, cur)
		if err != nil {
			return classify(op, err)
		}
		if err := s.wait(ctx, action); err != nil {
			return classify(op, err)
		}
	}
	if server == "" {
		return nil
	}
	srv, err := s.server(ctx, server)
	if err != nil {
		return err
	}
	action, _, err := s.client.Volume.Attach(ctx, cur, srv)
	if err != nil {
		return classify(op, err)
	}
	return classify(op, s.wait(ctx, action))
}

// Delete removes the volume. A volume that no longer exists is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.client.Volume.Delete(ctx, &hcloud.Volume{ID: id})
	if hcloud.IsError(err, hcloud.ErrorCodeNotFound) {
		return nil
	}
	if err != nil {
		return classify(fmt.Sprintf("delete volume %d", id), err)
	}
	s.log.WithField("id", id).Info("volume deleted")
	return nil
}

func (s *Store) server(ctx context.Context, name string) (*hcloud.Server, error) {
	srv, _, err := s.client.Server.GetByName(ctx, name)
	if err != nil {
		return nil, classify(fmt.Sprintf("get server %q", name), err)
	}
	if srv == nil {
		return nil, fmt.Errorf("%w: server %q not found", volume.ErrInvalidParams, name)
	}
	return srv, nil
}

func (s *Store) wait(ctx context.Context, actions ...*hcloud.Action) error {
	pending := make([]*hcloud.Action, 0, len(actions))
	for _, a := range actions {
		if a != nil {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return s.client.Action.WaitFor(ctx, pending...)
}
