package volume

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operator is a label requirement operator.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpNotEquals
	OpExists
	OpNotExists
)

// Requirement is a single key constraint of a label selector.
type Requirement struct {
	Key   string
	Op    Operator
	Value string
}

func (r Requirement) String() string {
	switch r.Op {
	case OpEquals:
		return r.Key + "=" + r.Value
	case OpNotEquals:
		return r.Key + "!=" + r.Value
	case OpNotExists:
		return "!" + r.Key
	default:
		return r.Key
	}
}

// Matches reports whether labels satisfy the requirement. A volume without
// the key satisfies key!=value.
func (r Requirement) Matches(labels map[string]string) bool {
	v, ok := labels[r.Key]
	switch r.Op {
	case OpEquals:
		return ok && v == r.Value
	case OpNotEquals:
		return !ok || v != r.Value
	case OpExists:
		return ok
	case OpNotExists:
		return !ok
	}
	return false
}

// LabelSelector is a conjunction of requirements. The zero value matches
// everything.
type LabelSelector struct {
	reqs []Requirement
}

// ParseLabelSelector parses comma separated requirements of the forms
// key=value, key==value, key!=value, key and !key.
func ParseLabelSelector(expr string) (LabelSelector, error) {
	var sel LabelSelector
	if strings.TrimSpace(expr) == "" {
		return sel, nil
	}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return LabelSelector{}, fmt.Errorf("%w: empty requirement in label selector %q", ErrInvalidParams, expr)
		}
		req, err := parseRequirement(part)
		if err != nil {
			return LabelSelector{}, fmt.Errorf("%w: label selector %q: %v", ErrInvalidParams, expr, err)
		}
		sel.reqs = append(sel.reqs, req)
	}
	return sel, nil
}

func parseRequirement(s string) (Requirement, error) {
	var (
		req Requirement
		key string
		val string
	)
	switch {
	case strings.Contains(s, "!="):
		key, val, _ = strings.Cut(s, "!=")
		req.Op = OpNotEquals
	case strings.Contains(s, "=="):
		key, val, _ = strings.Cut(s, "==")
		req.Op = OpEquals
	case strings.Contains(s, "="):
		key, val, _ = strings.Cut(s, "=")
		req.Op = OpEquals
	case strings.HasPrefix(s, "!"):
		key = strings.TrimSpace(s[1:])
		req.Op = OpNotExists
	default:
		key = s
		req.Op = OpExists
	}

	req.Key = strings.TrimSpace(key)
	req.Value = strings.TrimSpace(val)
	if err := validateLabelKey(req.Key); err != nil {
		return Requirement{}, err
	}
	if req.Op == OpEquals || req.Op == OpNotEquals {
		if err := validateLabelValue(req.Value); err != nil {
			return Requirement{}, err
		}
	}
	return req, nil
}

// Label keys may carry a DNS-style prefix: example.com/role.
func validateLabelKey(k string) error {
	if k == "" {
		return fmt.Errorf("missing key")
	}
	prefix, name, hasPrefix := strings.Cut(k, "/")
	if !hasPrefix {
		name, prefix = prefix, ""
	}
	if hasPrefix {
		if prefix == "" || strings.ContainsFunc(prefix, func(r rune) bool {
			return !(r == '.' || r == '-' || isAlnum(r))
		}) {
			return fmt.Errorf("invalid key prefix %q", prefix)
		}
	}
	if name == "" || len(name) > 63 || !validLabelToken(name) {
		return fmt.Errorf("invalid key %q", k)
	}
	return nil
}

func validateLabelValue(v string) error {
	if v == "" {
		return nil
	}
	if len(v) > 63 || !validLabelToken(v) {
		return fmt.Errorf("invalid value %q", v)
	}
	return nil
}

// validLabelToken checks [a-zA-Z0-9]([-_.a-zA-Z0-9]*[a-zA-Z0-9])?.
func validLabelToken(s string) bool {
	for i, r := range s {
		edge := i == 0 || i == len(s)-1
		switch {
		case isAlnum(r):
		case !edge && (r == '-' || r == '_' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Requirements returns a copy of the parsed requirements.
func (s LabelSelector) Requirements() []Requirement {
	return append([]Requirement(nil), s.reqs...)
}

// Empty reports whether the selector has no requirements.
func (s LabelSelector) Empty() bool {
	return len(s.reqs) == 0
}

// Matches reports whether labels satisfy every requirement.
func (s LabelSelector) Matches(labels map[string]string) bool {
	for _, r := range s.reqs {
		if !r.Matches(labels) {
			return false
		}
	}
	return true
}

// String renders the selector in the canonical form accepted by the
// cloud API.
func (s LabelSelector) String() string {
	parts := make([]string, len(s.reqs))
	for i, r := range s.reqs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// SelectorKind identifies which filter a facts lookup applies.
type SelectorKind int

const (
	SelectAll SelectorKind = iota
	SelectByID
	SelectByName
	SelectByLabels
)

// Selector is a validated facts filter: at most one of id, name or label
// selector.
type Selector struct {
	kind   SelectorKind
	id     int64
	name   string
	labels LabelSelector
}

func (s Selector) Kind() SelectorKind { return s.kind }
func (s Selector) ID() int64 { return s.id }
func (s Selector) Name() string { return s.name }
func (s Selector) Labels() LabelSelector { return s.labels }

// FactsParams is the raw configuration surface of the facts module.
type FactsParams struct {
	ID            string
	Name          string
	LabelSelector string
	Check         bool
}

// NewSelector validates p into a Selector.
func NewSelector(p FactsParams) (Selector, error) {
	var set []string
	if p.ID != "" {
		set = append(set, "id")
	}
	if p.Name != "" {
		set = append(set, "name")
	}
	if p.LabelSelector != "" {
		set = append(set, "label_selector")
	}
	if len(set) > 1 {
		sort.Strings(set)
		return Selector{}, fmt.Errorf("%w: parameters are mutually exclusive: %s", ErrInvalidParams, strings.Join(set, "|"))
	}

	switch {
	case p.ID != "":
		id, err := strconv.ParseInt(strings.TrimSpace(p.ID), 10, 64)
		if err != nil || id <= 0 {
			return Selector{}, fmt.Errorf("%w: id %q is not a positive integer", ErrInvalidParams, p.ID)
		}
		return Selector{kind: SelectByID, id: id}, nil
	case p.Name != "":
		return Selector{kind: SelectByName, name: p.Name}, nil
	case p.LabelSelector != "":
		if strings.TrimSpace(p.LabelSelector) == "" {
			return Selector{}, fmt.Errorf("%w: label_selector is blank", ErrInvalidParams)
		}
		ls, err := ParseLabelSelector(p.LabelSelector)
		if err != nil {
			return Selector{}, err
		}
		return Selector{kind: SelectByLabels, labels: ls}, nil
	}
	return Selector{kind: SelectAll}, nil
}
