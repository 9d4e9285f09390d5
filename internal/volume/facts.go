package volume

import (
	"context"
	"fmt"
)

// Lookup returns the volumes matching sel. It never writes to r and returns
// an empty collection, not an error, when nothing matches.
func Lookup(ctx context.Context, r Reader, sel Selector) (Facts, error) {
	var (
		found []Volume
		err   error
	)
	switch sel.Kind() {
	case SelectByID:
		var v *Volume
		v, err = r.Get(ctx, sel.ID())
		if v != nil {
			found = []Volume{*v}
		}
	case SelectByName:
		var v *Volume
		v, err = r.GetByName(ctx, sel.Name())
		if v != nil {
			found = []Volume{*v}
		}
	case SelectByLabels:
		found, err = r.List(ctx, sel.Labels())
	case SelectAll:
		found, err = r.List(ctx, LabelSelector{})
	default:
		return nil, fmt.Errorf("%w: unknown selector", ErrInvalidParams)
	}
	if err != nil {
		return nil, err
	}
	return Facts(found).Sorted(), nil
}
