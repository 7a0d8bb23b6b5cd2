// Package samples holds a catalog of example fragments to shake.
package samples

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/shakelines/internal/shaker"
)

//go:embed samples.yaml
var builtin []byte

// Sample is one named search request.
type Sample struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Code        string   `yaml:"code" json:"code"`
	ArgNames    []string `yaml:"arg_names" json:"arg_names,omitempty"`
	ArgValues   []any    `yaml:"arg_values" json:"arg_values,omitempty"`
	Expected    any      `yaml:"expected" json:"expected"`
}

// Request converts the sample to a search request.
func (s Sample) Request() shaker.Request {
	return shaker.Request{
		Code:      s.Code,
		ArgNames:  s.ArgNames,
		ArgValues: s.ArgValues,
		Expected:  s.Expected,
	}
}

// Catalog is an ordered set of samples.
type Catalog struct {
	Samples []Sample `yaml:"samples" json:"samples"`
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Names must be present and unique.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Samples))
	for i, s := range c.Samples {
		if s.Name == "" {
			return nil, fmt.Errorf("sample %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate sample %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &c, nil
}

// Find returns the sample called name.
func (c *Catalog) Find(name string) (Sample, error) {
	for _, s := range c.Samples {
		if s.Name == name {
			return s, nil
		}
	}
	return Sample{}, fmt.Errorf("unknown sample %q", name)
}
