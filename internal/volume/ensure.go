package volume

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// State is the desired presence of a volume.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Desired describes the state a named volume should converge to. Zero
// Size, nil Labels and nil Server leave the existing value unchanged.
type Desired struct {
	Name     string
	State    State
	Size     int
	Location string
	Labels   map[string]string
	Server   *string
	Format   string
}

// EnsureResult reports what Ensure did or, in check mode, would do.
type EnsureResult struct {
	Changed bool    `json:"changed"`
	State   *Volume `json:"state"`
}

func (d Desired) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidParams)
	}
	switch d.State {
	case StatePresent, StateAbsent:
	default:
		return fmt.Errorf("%w: state must be present or absent, got %q", ErrInvalidParams, d.State)
	}
	if d.Size < 0 {
		return fmt.Errorf("%w: size must not be negative", ErrInvalidParams)
	}
	for k, v := range d.Labels {
		if err := validateLabelKey(k); err != nil {
			return fmt.Errorf("%w: label: %v", ErrInvalidParams, err)
		}
		if err := validateLabelValue(v); err != nil {
			return fmt.Errorf("%w: label %s: %v", ErrInvalidParams, k, err)
		}
	}
	return nil
}

// Ensure converges the named volume to d. In check mode it only computes
// the outcome.
func Ensure(ctx context.Context, s Store, d Desired, check bool) (EnsureResult, error) {
	if err := d.validate(); err != nil {
		return EnsureResult{}, err
	}

	current, err := s.GetByName(ctx, d.Name)
	if err != nil {
		return EnsureResult{}, err
	}

	if d.State == StateAbsent {
		if current == nil {
			return EnsureResult{}, nil
		}
		if current.DeleteProtection {
			return EnsureResult{}, fmt.Errorf("%w: volume %s is delete protected", ErrRejected, d.Name)
		}
		if !check {
			if err := s.Delete(ctx, current.ID); err != nil {
				return EnsureResult{}, err
			}
		}
		return EnsureResult{Changed: true}, nil
	}

	if current == nil {
		if d.Size == 0 {
			return EnsureResult{}, fmt.Errorf("%w: size is required to create volume %s", ErrInvalidParams, d.Name)
		}
		opts := CreateOpts{
			Name:     d.Name,
			Size:     d.Size,
			Location: d.Location,
			Labels:   d.Labels,
			Format:   d.Format,
		}
		if d.Server != nil {
			opts.Server = *d.Server
		}
		if check {
			return EnsureResult{Changed: true, State: planned(opts)}, nil
		}
		v, err := s.Create(ctx, opts)
		if err != nil {
			return EnsureResult{}, err
		}
		return EnsureResult{Changed: true, State: v}, nil
	}

	upd, changed, err := diff(*current, d)
	if err != nil {
		return EnsureResult{}, err
	}
	if !changed {
		return EnsureResult{State: current}, nil
	}
	if check {
		return EnsureResult{Changed: true, State: apply(*current, upd)}, nil
	}
	v, err := s.Update(ctx, current.ID, upd)
	if err != nil {
		return EnsureResult{}, err
	}
	return EnsureResult{Changed: true, State: v}, nil
}

// diff computes the update that moves cur to d.
func diff(cur Volume, d Desired) (UpdateOpts, bool, error) {
	var (
		upd     UpdateOpts
		changed bool
	)
	if d.Location != "" && d.Location != cur.Location {
		return upd, false, fmt.Errorf("%w: volume %s is in %s and cannot move to %s", ErrInvalidParams, cur.Name, cur.Location, d.Location)
	}
	if d.Size != 0 && d.Size != cur.Size {
		if d.Size < cur.Size {
			return upd, false, fmt.Errorf("%w: volume %s cannot shrink from %d to %d GB", ErrInvalidParams, cur.Name, cur.Size, d.Size)
		}
		size := d.Size
		upd.Size = &size
		changed = true
	}
	if d.Labels != nil && !maps.Equal(d.Labels, cur.Labels) {
		upd.Labels = maps.Clone(d.Labels)
		changed = true
	}
	if d.Server != nil && *d.Server != cur.Server {
		server := *d.Server
		upd.Server = &server
		changed = true
	}
	return upd, changed, nil
}

func apply(v Volume, upd UpdateOpts) *Volume {
	if upd.Size != nil {
		v.Size = *upd.Size
	}
	if upd.Labels != nil {
		v.Labels = maps.Clone(upd.Labels)
	}
	if upd.Server != nil {
		v.Server = *upd.Server
	}
	return &v
}

func planned(opts CreateOpts) *Volume {
	labels := opts.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	return &Volume{
		Name:     opts.Name,
		Size:     opts.Size,
		Location: opts.Location,
		Labels:   labels,
		Server:   opts.Server,
		Format:   opts.Format,
		Status:   "creating",
	}
}
