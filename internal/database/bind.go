package database

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Statement is one statement ready for execution.
type Statement struct {
	// SQL uses $n parameters and is what the server receives.
	SQL  string
	Args []any
	// Text is SQL with every argument rendered as a literal. It is only
	// used for reporting.
	Text string
}

// binder rewrites %s and %(name)s placeholders. Positional values are
// consumed across calls so a script shares one argument list.
type binder struct {
	args Args
	next int
}

func newBinder(args Args) *binder {
	return &binder{args: args}
}

// bind rewrites one statement. Without arguments the text is passed through
// untouched, so a bare % needs no escaping.
func (b *binder) bind(sql string) (Statement, error) {
	if b.args.Kind() == ArgsNone {
		return Statement{SQL: sql, Text: sql}, nil
	}

	var (
		out   strings.Builder
		text  strings.Builder
		vals  []any
		named map[string]int
	)
	for _, seg := range lexSQL(sql) {
		if seg.kind != segCode {
			out.WriteString(seg.text)
			text.WriteString(seg.text)
			continue
		}
		s := seg.text
		for i := 0; i < len(s); i++ {
			if s[i] != '%' {
				out.WriteByte(s[i])
				text.WriteByte(s[i])
				continue
			}
			if i+1 >= len(s) {
				return Statement{}, fmt.Errorf("%w: incomplete placeholder at end of statement", ErrInvalidParams)
			}
			var v any
			switch s[i+1] {
			case '%':
				out.WriteByte('%')
				text.WriteByte('%')
				i++
				continue
			case 's':
				if b.args.Kind() != ArgsPositional {
					return Statement{}, fmt.Errorf("%w: positional placeholder %%s used with named_args", ErrInvalidParams)
				}
				if b.next >= len(b.args.positional) {
					return Statement{}, fmt.Errorf("%w: not enough positional_args for the placeholders", ErrInvalidParams)
				}
				v = b.args.positional[b.next]
				b.next++
				vals = append(vals, v)
				fmt.Fprintf(&out, "$%d", len(vals))
				i++
			case '(':
				end := strings.Index(s[i:], ")s")
				if end < 0 {
					return Statement{}, fmt.Errorf("%w: unterminated named placeholder", ErrInvalidParams)
				}
				name := s[i+2 : i+end]
				if b.args.Kind() != ArgsNamed {
					return Statement{}, fmt.Errorf("%w: named placeholder %%(%s)s used with positional_args", ErrInvalidParams, name)
				}
				var ok bool
				v, ok = b.args.named[name]
				if !ok {
					return Statement{}, fmt.Errorf("%w: named_args has no key %q", ErrInvalidParams, name)
				}
				if named == nil {
					named = make(map[string]int)
				}
				n, seen := named[name]
				if !seen {
					vals = append(vals, v)
					n = len(vals)
					named[name] = n
				}
				fmt.Fprintf(&out, "$%d", n)
				i += end + 1
			default:
				return Statement{}, fmt.Errorf("%w: unsupported placeholder %%%c", ErrInvalidParams, s[i+1])
			}
			lit, err := QuoteLiteral(v)
			if err != nil {
				return Statement{}, err
			}
			text.WriteString(lit)
		}
	}
	return Statement{SQL: out.String(), Args: vals, Text: text.String()}, nil
}

// done reports arguments that no placeholder consumed.
func (b *binder) done() error {
	if b.args.Kind() == ArgsPositional && b.next < len(b.args.positional) {
		return fmt.Errorf("%w: %d of %d positional_args not used by any placeholder",
			ErrInvalidParams, len(b.args.positional)-b.next, len(b.args.positional))
	}
	return nil
}

// Bind rewrites a single statement's placeholders for driver-level binding.
func Bind(sql string, args Args) (Statement, error) {
	b := newBinder(args)
	st, err := b.bind(sql)
	if err != nil {
		return Statement{}, err
	}
	if err := b.done(); err != nil {
		return Statement{}, err
	}
	return st, nil
}

// Interpolate returns sql with arguments rendered as SQL literals.
func Interpolate(sql string, args Args) (string, error) {
	st, err := Bind(sql, args)
	if err != nil {
		return "", err
	}
	return st.Text, nil
}

// QuoteLiteral renders v as a PostgreSQL literal.
func QuoteLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case string:
		return quoteString(x), nil
	case []byte:
		return `'\x` + hex.EncodeToString(x) + `'::bytea`, nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(x).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(x).Uint(), 10), nil
	case float32:
		return quoteFloat(float64(x)), nil
	case float64:
		return quoteFloat(x), nil
	case json.Number:
		return x.String(), nil
	case time.Time:
		return quoteString(x.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return quoteString(x.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			p, err := QuoteLiteral(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "ARRAY[" + strings.Join(parts, ", ") + "]", nil
	case reflect.Map:
		raw, err := json.Marshal(sortedMap(rv))
		if err != nil {
			return "", fmt.Errorf("%w: argument %v: %v", ErrInvalidParams, v, err)
		}
		return quoteString(string(raw)), nil
	}
	return "", fmt.Errorf("%w: unsupported argument type %T", ErrInvalidParams, v)
}

// quoteString wraps pq.QuoteLiteral, which prefixes escape strings with a
// space.
func quoteString(s string) string {
	return strings.TrimLeft(pq.QuoteLiteral(s), " ")
}

func quoteFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'::float8"
	case math.IsInf(f, 1):
		return "'Infinity'::float8"
	case math.IsInf(f, -1):
		return "'-Infinity'::float8"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// sortedMap converts a reflected map with arbitrary key type into one that
// encoding/json renders deterministically.
func sortedMap(rv reflect.Value) map[string]any {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	m := make(map[string]any, len(keys))
	for _, k := range keys {
		m[fmt.Sprint(k.Interface())] = rv.MapIndex(k).Interface()
	}
	return m
}
