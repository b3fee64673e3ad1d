package lint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the YAML-defined gate configuration for the warning
// validator. All fields are optional; zero values fall back to the
// defaults.
type Policy struct {
	Version     int      `yaml:"version"`
	MaxWarnings int      `yaml:"max_warnings"`
	Escalate    []string `yaml:"escalate,omitempty"`
	Disable     []string `yaml:"disable,omitempty"`
}

// DefaultMaxWarnings is the gate threshold when no policy overrides it.
const DefaultMaxWarnings = 10

// DefaultPolicy returns the built-in gate policy.
func DefaultPolicy() *Policy {
	return &Policy{Version: 1, MaxWarnings: DefaultMaxWarnings}
}

// LoadPolicy reads a YAML policy file from disk.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if p.MaxWarnings <= 0 {
		p.MaxWarnings = DefaultMaxWarnings
	}
	return &p, nil
}

func (p *Policy) disabled(code string) bool {
	for _, c := range p.Disable {
		if c == code {
			return true
		}
	}
	return false
}

func (p *Policy) escalated(code string) bool {
	for _, c := range p.Escalate {
		if c == code {
			return true
		}
	}
	return false
}
