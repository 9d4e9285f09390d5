// Package volume implements read-only facts lookup over block-storage
// volumes and the desired-state operation used to set fixtures up and tear
// them down.
package volume

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrInvalidParams marks selectors or desired states rejected before
	// any backend call.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrUnavailable marks a backend that could not be reached.
	ErrUnavailable = errors.New("volume backend unavailable")

	// ErrRejected marks a request the backend refused.
	ErrRejected = errors.New("volume backend rejected request")
)

// Volume describes one block-storage volume.
type Volume struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Labels           map[string]string `json:"labels"`
	Size             int               `json:"size"`
	Location         string            `json:"location"`
	Server           string            `json:"server,omitempty"`
	LinuxDevice      string            `json:"linux_device"`
	Format           string            `json:"format,omitempty"`
	Status           string            `json:"status"`
	DeleteProtection bool              `json:"delete_protection"`
	Created          time.Time         `json:"created"`
}

// Facts is the ordered fact collection returned by a lookup.
type Facts []Volume

// Sorted returns facts ordered by id with nil replaced by an empty slice.
func (f Facts) Sorted() Facts {
	out := make(Facts, len(f))
	copy(out, f)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Names returns the volume names in order.
func (f Facts) Names() []string {
	names := make([]string, len(f))
	for i, v := range f {
		names[i] = v.Name
	}
	return names
}

// CreateOpts describes a volume to create.
type CreateOpts struct {
	Name     string
	Size     int
	Location string
	Labels   map[string]string
	Server   string
	Format   string
}

// UpdateOpts describes changes to an existing volume. Nil fields are left
// untouched.
type UpdateOpts struct {
	Size   *int
	Labels map[string]string
	Server *string
}

// Reader is the read side of a volume backend. Lookups by id or name
// return nil without error when nothing matches.
type Reader interface {
	Get(ctx context.Context, id int64) (*Volume, error)
	GetByName(ctx context.Context, name string) (*Volume, error)
	List(ctx context.Context, sel LabelSelector) ([]Volume, error)
}

// Store is a volume backend that can also be written to.
type Store interface {
	Reader
	Create(ctx context.Context, opts CreateOpts) (*Volume, error)
	Update(ctx context.Context, id int64, opts UpdateOpts) (*Volume, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}
