package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default_rules.toml
var defaultRulesTOML string

type rulePack struct {
	Rules []Rule `toml:"rule"`
}

// DefaultRules returns the built-in rule pack.
func DefaultRules() []Rule {
	rules, err := ParseRules(defaultRulesTOML)
	if err != nil {
		panic(fmt.Sprintf("extract: built-in rules: %v", err))
	}
	return rules
}

// ParseRules decodes a TOML rule pack made of [[rule]] tables.
func ParseRules(data string) ([]Rule, error) {
	var pack rulePack
	meta, err := toml.Decode(data, &pack)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidRule, strings.Join(keys, ", "))
	}
	for i := range pack.Rules {
		if err := pack.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return pack.Rules, nil
}

// LoadRuleFile reads a rule pack from disk.
func LoadRuleFile(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rules, err := ParseRules(string(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// LoadRuleFiles appends every pack in paths to the built-in rules.
func LoadRuleFiles(paths ...string) ([]Rule, error) {
	rules := DefaultRules()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		more, err := LoadRuleFile(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, more...)
	}
	return rules, nil
}
