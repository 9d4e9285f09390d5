package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/joacominatel/minaops/internal/volume"
	"github.com/joacominatel/minaops/internal/volume/badgerstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// downStore fails every call the way an unreachable backend does.
type downStore struct{}

func (downStore) Get(context.Context, int64) (*volume.Volume, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) GetByName(context.Context, string) (*volume.Volume, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) List(context.Context, volume.LabelSelector) ([]volume.Volume, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) Create(context.Context, volume.CreateOpts) (*volume.Volume, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) Update(context.Context, int64, volume.UpdateOpts) (*volume.Volume, error) {
	return nil, fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) Delete(context.Context, int64) error {
	return fmt.Errorf("%w: dial tcp: refused", volume.ErrUnavailable)
}

func (downStore) Close() error { return nil }

func newLocalService(t *testing.T) *VolumeService {
	t.Helper()
	store, err := badgerstore.Open(badgerstore.Config{InMemory: true})
	require.NoError(t, err)
	svc := NewVolumeService(store, "local", quietLogger())
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestVolumeService_EnsureThenFacts(t *testing.T) {
	ctx := context.Background()
	svc := newLocalService(t)

	for _, d := range []volume.Desired{
		{Name: "vol-a", State: volume.StatePresent, Size: 10, Labels: map[string]string{"key": "value"}},
		{Name: "vol-b", State: volume.StatePresent, Size: 10, Labels: map[string]string{"key": "other"}},
	} {
		res, err := svc.Ensure(ctx, d, false)
		require.NoError(t, err)
		assert.True(t, res.Changed)
	}

	eq, err := svc.Facts(ctx, volume.FactsParams{LabelSelector: "key=value"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vol-a"}, eq.Names())

	ne, err := svc.Facts(ctx, volume.FactsParams{LabelSelector: "key!=value", Check: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"vol-b"}, ne.Names())

	none, err := svc.Facts(ctx, volume.FactsParams{Name: "missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVolumeService_ErrorClasses(t *testing.T) {
	ctx := context.Background()

	_, err := newLocalService(t).Facts(ctx, volume.FactsParams{ID: "1", Name: "x"})
	assert.Equal(t, ExitConfig, ExitCode(err))

	down := NewVolumeService(downStore{}, "hcloud", quietLogger())
	_, err = down.Facts(ctx, volume.FactsParams{})
	var connErr *ErrConnection
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "hcloud", connErr.Backend)

	svc := newLocalService(t)
	_, err = svc.Ensure(ctx, volume.Desired{Name: "a", State: volume.StatePresent, Size: 10}, false)
	require.NoError(t, err)
	_, err = svc.Ensure(ctx, volume.Desired{Name: "a", State: volume.StatePresent, Size: 5}, false)
	assert.Equal(t, ExitConfig, ExitCode(err))
}
