package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// QueryArgs is the argument document of the query module.
type QueryArgs struct {
	Connection     string         `yaml:"connection"`
	LoginHost      string         `yaml:"login_host"`
	Port           int            `yaml:"port"`
	LoginUser      string         `yaml:"login_user"`
	LoginPassword  string         `yaml:"login_password"`
	DB             string         `yaml:"db"`
	SSLMode        string         `yaml:"ssl_mode"`
	Query          string         `yaml:"query"`
	PathToScript   string         `yaml:"path_to_script"`
	PositionalArgs ArgList        `yaml:"positional_args"`
	NamedArgs      ArgMap         `yaml:"named_args"`
	SessionRole    string         `yaml:"session_role"`
	Autocommit     bool           `yaml:"autocommit"`
	Check          bool           `yaml:"check_mode"`
}

// Login returns the connection options of the document.
func (a QueryArgs) Login() Login {
	return Login{
		Profile:  a.Connection,
		Host:     a.LoginHost,
		Port:     a.Port,
		User:     a.LoginUser,
		Password: a.LoginPassword,
		Database: a.DB,
		SSLMode:  a.SSLMode,
	}
}

// ArgList holds positional statement arguments. Timestamps are kept as
// the text that was written.
type ArgList []any

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ArgList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: positional_args must be a list", n.Line)
	}
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	*l = v.([]any)
	return nil
}

// ArgMap holds named statement arguments, decoded like ArgList.
type ArgMap map[string]any

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *ArgMap) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: named_args must be a mapping", n.Line)
	}
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	*m = v.(map[string]any)
	return nil
}

// nodeValue decodes n like a plain any target would, except that
// !!timestamp scalars stay strings.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!timestamp" {
			return n.Value, nil
		}
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// VolumeArgs is the argument document of the volume modules.
type VolumeArgs struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	LabelSelector string            `yaml:"label_selector"`
	State         string            `yaml:"state"`
	Size          int               `yaml:"size"`
	Location      string            `yaml:"location"`
	Labels        map[string]string `yaml:"labels"`
	Server        *string           `yaml:"server"`
	Format        string            `yaml:"format"`
	Check         bool              `yaml:"check_mode"`
}

// LoadArgs decodes a YAML or JSON argument file into out. Unknown keys
// are rejected. Scalar types are kept as written, so 5 stays an int and
// "5" stays a string.
func LoadArgs(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read args: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode args %s: %w", path, err)
	}
	return nil
}

// ParseScalar decodes a single command-line value as a YAML scalar:
// 5 is an int, 1.5 a float, true a bool, null nil and anything else,
// dates included, a string. Flow sequences such as [1,2] decode to slices.
func ParseScalar(s string) any {
	if strings.TrimSpace(s) == "" {
		return s
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) == 0 {
		return s
	}
	n := doc.Content[0]
	switch n.Kind {
	case yaml.MappingNode:
		return s
	case yaml.SequenceNode:
		if !strings.HasPrefix(strings.TrimSpace(s), "[") {
			return s
		}
	}
	v, err := nodeValue(n)
	if err != nil {
		return s
	}
	return v
}

// ParseNamed splits key=value pairs into named arguments, decoding each
// value with ParseScalar.
func ParseNamed(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("named argument %q: expected key=value", p)
		}
		out[k] = ParseScalar(v)
	}
	return out, nil
}

// ParsePositional decodes each value with ParseScalar.
func ParsePositional(values []string) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = ParseScalar(v)
	}
	return out
}
