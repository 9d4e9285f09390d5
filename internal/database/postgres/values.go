package postgres

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// normalizeValue turns pgx-decoded values into plain JSON-friendly ones.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int16, int32, int64, float32, float64, time.Time:
		return x
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		return numericValue(x)
	case pgtype.Interval:
		return intervalString(x)
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	case netip.Prefix:
		return x.String()
	case netip.Addr:
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	case fmt.Stringer:
		return x.String()
	default:
		return x
	}
}

// numericValue keeps integral numerics as int64 when they fit and renders
// everything else as an exact JSON number.
func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	if n.NaN {
		return "NaN"
	}
	if n.InfinityModifier != pgtype.Finite {
		return n.InfinityModifier.String()
	}
	if n.Exp >= 0 {
		i := new(big.Int).Set(n.Int)
		if n.Exp > 0 {
			i.Mul(i, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
		}
		if i.IsInt64() {
			return i.Int64()
		}
	}
	raw, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprint(n)
	}
	return json.Number(raw)
}

func intervalString(iv pgtype.Interval) any {
	if !iv.Valid {
		return nil
	}
	d := time.Duration(iv.Microseconds) * time.Microsecond
	switch {
	case iv.Months == 0 && iv.Days == 0:
		return d.String()
	default:
		return fmt.Sprintf("%d mons %d days %s", iv.Months, iv.Days, d)
	}
}
