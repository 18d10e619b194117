package duration

import (
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Value adapts a *Duration to a command line flag.
type Value struct {
	target *Duration
	set    bool
}

var _ flag.Value = (*Value)(nil)

// NewValue stores def into p and returns a flag value writing to p.
func NewValue(def Duration, p *Duration) *Value {
	*p = def
	return &Value{target: p}
}

// Set implements flag.Value.
func (v *Value) Set(s string) error {
	d, err := Parse(s)
	if err != nil {
		return err
	}
	*v.target = d
	v.set = true
	return nil
}

// String implements flag.Value.
func (v *Value) String() string {
	if v.target == nil {
		return ""
	}
	return v.target.String()
}

// Type implements flag.Value.
func (v *Value) Type() string {
	return "duration"
}

// Changed reports whether Set succeeded at least once.
func (v *Value) Changed() bool {
	return v.set
}

// UnmarshalYAML accepts either a time string ("1:30", "2m") or a plain
// integer count of seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a time string, got %s", node.Line, kindName(node.Kind))
	}

	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if n <= 0 {
			return fmt.Errorf("line %d: %w: %d must be positive", node.Line, ErrOutOfRange, n)
		}
		*d = Seconds(n)
		return nil
	}

	parsed, err := Parse(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the compact string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "scalar"
	}
}
