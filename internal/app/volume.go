package app

import (
	"context"
	"errors"

	"github.com/joacominatel/minaops/internal/volume"
	"github.com/sirupsen/logrus"
)

// VolumeService runs the volume modules against a store.
type VolumeService struct {
	store   volume.Store
	backend string
	log     logrus.FieldLogger
}

// NewVolumeService creates a volume service. backend names the store in
// connection errors.
func NewVolumeService(store volume.Store, backend string, log logrus.FieldLogger) *VolumeService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VolumeService{store: store, backend: backend, log: log}
}

// Close releases the underlying store.
func (s *VolumeService) Close() error {
	return s.store.Close()
}

// Facts looks volumes up. It never changes state, so check mode behaves
// exactly like a normal run.
func (s *VolumeService) Facts(ctx context.Context, p volume.FactsParams) (volume.Facts, error) {
	sel, err := volume.NewSelector(p)
	if err != nil {
		return nil, &ErrConfig{Cause: err}
	}
	facts, err := volume.Lookup(ctx, s.store, sel)
	if err != nil {
		return nil, s.wrap(err)
	}
	s.log.WithFields(logrus.Fields{
		"backend": s.backend,
		"check":   p.Check,
		"matched": len(facts),
	}).Debug("volume facts gathered")
	return facts, nil
}

// Ensure converges one volume to d.
func (s *VolumeService) Ensure(ctx context.Context, d volume.Desired, check bool) (volume.EnsureResult, error) {
	res, err := volume.Ensure(ctx, s.store, d, check)
	if err != nil {
		return volume.EnsureResult{}, s.wrap(err)
	}
	s.log.WithFields(logrus.Fields{
		"backend": s.backend,
		"name":    d.Name,
		"state":   d.State,
		"check":   check,
		"changed": res.Changed,
	}).Info("volume ensured")
	return res, nil
}

func (s *VolumeService) wrap(err error) error {
	switch {
	case errors.Is(err, volume.ErrInvalidParams):
		return &ErrConfig{Cause: err}
	case errors.Is(err, volume.ErrUnavailable):
		return &ErrConnection{Backend: s.backend, Cause: err}
	default:
		return &ErrQuery{Cause: err}
	}
}
