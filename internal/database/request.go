package database

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrInvalidParams marks module parameters rejected before any backend call.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrUnavailable marks failures to reach or keep a database session.
	ErrUnavailable = errors.New("database unavailable")
)

// SourceKind identifies where statement text comes from.
type SourceKind int

const (
	SourceInline SourceKind = iota + 1
	SourceScript
)

// Source is either an inline statement or a path to a script.
type Source struct {
	kind SourceKind
	text string
	path string
}

// Inline returns a source for a single inline statement.
func Inline(text string) Source {
	return Source{kind: SourceInline, text: text}
}

// ScriptPath returns a source for a script file.
func ScriptPath(path string) Source {
	return Source{kind: SourceScript, path: path}
}

func (s Source) Kind() SourceKind { return s.kind }
func (s Source) Text() string { return s.text }
func (s Source) Path() string { return s.path }

// ArgsKind identifies the parameter substitution mode.
type ArgsKind int

const (
	ArgsNone ArgsKind = iota
	ArgsPositional
	ArgsNamed
)

// Args holds either positional or named statement arguments.
type Args struct {
	kind       ArgsKind
	positional []any
	named      map[string]any
}

// NoArgs returns an empty argument set.
func NoArgs() Args { return Args{} }

// Positional returns arguments substituted for %s in order.
func Positional(values ...any) Args {
	return Args{kind: ArgsPositional, positional: values}
}

// Named returns arguments substituted for %(name)s by key.
func Named(values map[string]any) Args {
	return Args{kind: ArgsNamed, named: values}
}

func (a Args) Kind() ArgsKind { return a.kind }

// Params is the raw configuration surface of the query module.
type Params struct {
	Query          string
	PathToScript   string
	PositionalArgs []any
	NamedArgs      map[string]any
	SessionRole    string
	Autocommit     bool
	Check          bool
}

// Request is a validated query-module invocation.
type Request struct {
	Source      Source
	Args        Args
	SessionRole string
	Autocommit  bool
	Check       bool
}

// NewRequest validates p. Mutually exclusive options are rejected here,
// before a session is opened.
func NewRequest(p Params) (*Request, error) {
	hasQuery := strings.TrimSpace(p.Query) != ""
	hasScript := p.PathToScript != ""

	var src Source
	switch {
	case hasQuery && hasScript:
		return nil, fmt.Errorf("%w: query and path_to_script are mutually exclusive", ErrInvalidParams)
	case hasQuery:
		src = Inline(p.Query)
	case hasScript:
		src = ScriptPath(p.PathToScript)
	default:
		return nil, fmt.Errorf("%w: one of query or path_to_script is required", ErrInvalidParams)
	}

	var args Args
	switch {
	case p.PositionalArgs != nil && p.NamedArgs != nil:
		return nil, fmt.Errorf("%w: positional_args and named_args are mutually exclusive", ErrInvalidParams)
	case p.PositionalArgs != nil:
		args = Positional(p.PositionalArgs...)
	case p.NamedArgs != nil:
		args = Named(p.NamedArgs)
	}

	return &Request{
		Source:      src,
		Args:        args,
		SessionRole: p.SessionRole,
		Autocommit:  p.Autocommit,
		Check:       p.Check,
	}, nil
}

// Batch is a prepared request: statements in execution order.
type Batch struct {
	Statements  []Statement
	SessionRole string
	Autocommit  bool
	Check       bool
}

// Text joins the reportable text of every statement.
func (b *Batch) Text() string {
	parts := make([]string, len(b.Statements))
	for i, st := range b.Statements {
		parts[i] = st.Text
	}
	return strings.Join(parts, ";\n")
}

// Prepare loads the script if any and binds arguments. It touches only the
// local filesystem.
func (r *Request) Prepare() (*Batch, error) {
	var stmts []string
	switch r.Source.Kind() {
	case SourceInline:
		stmts = []string{r.Source.Text()}
	case SourceScript:
		raw, err := os.ReadFile(r.Source.Path())
		if err != nil {
			return nil, fmt.Errorf("%w: read path_to_script: %v", ErrInvalidParams, err)
		}
		stmts = SplitScript(string(raw))
		if len(stmts) == 0 {
			return nil, fmt.Errorf("%w: script %s contains no statements", ErrInvalidParams, r.Source.Path())
		}
	default:
		return nil, fmt.Errorf("%w: no statement source", ErrInvalidParams)
	}

	b := newBinder(r.Args)
	batch := &Batch{
		SessionRole: r.SessionRole,
		Autocommit:  r.Autocommit,
		Check:       r.Check,
	}
	for _, s := range stmts {
		st, err := b.bind(s)
		if err != nil {
			return nil, err
		}
		batch.Statements = append(batch.Statements, st)
	}
	if err := b.done(); err != nil {
		return nil, err
	}
	return batch, nil
}
