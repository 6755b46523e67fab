package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kiebridge/internal/kie"
)

// Scenario is an end-to-end rules check: compile assets, construct and
// insert facts, optionally fire the rules, then compare fact fields.
type Scenario struct {
	// Name identifies the scenario in output.
	Name string `yaml:"name"`

	// Description says what the scenario checks.
	Description string `yaml:"description,omitempty"`

	// Assets lists rule files. Relative paths are resolved against the
	// scenario file's directory by Load.
	Assets []string `yaml:"assets,omitempty"`

	// Rules is inline rule source compiled after Assets.
	Rules string `yaml:"rules,omitempty"`

	// Package is the rule package facts are declared in. Defaults to
	// kie.DefaultPackage.
	Package string `yaml:"package,omitempty"`

	// Facts are constructed in order. Later facts may reference earlier
	// ones by id.
	Facts []FactStep `yaml:"facts"`

	// Fire runs fireAllRules after all facts are inserted.
	Fire bool `yaml:"fire,omitempty"`

	// Expect holds the checks evaluated after firing.
	Expect Expect `yaml:"expect"`
}

// FactStep constructs one fact.
//
//	- id: alice
//	  type: Student
//	  args: [Alice]
//	  fields: {lecture: {ref: physics}}
type FactStep struct {
	// ID is the alias later steps and expectations use.
	ID string `yaml:"id"`

	// Type is the simple name of a declared fact type.
	Type string `yaml:"type"`

	// Args fill the declared fields in order.
	Args []any `yaml:"args,omitempty"`

	// Fields are applied by name on top of Args.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Insert controls whether the fact goes into working memory.
	// Defaults to true.
	Insert *bool `yaml:"insert,omitempty"`
}

// inserted reports whether the step inserts its fact.
func (f FactStep) inserted() bool {
	return f.Insert == nil || *f.Insert
}

// Expect holds the checks of a scenario.
type Expect struct {
	// Fired is the expected number of rule firings.
	Fired *int64 `yaml:"fired,omitempty"`

	// FactCount is the expected number of facts in working memory.
	FactCount *int64 `yaml:"fact_count,omitempty"`

	// Facts are field checks.
	Facts []FieldCheck `yaml:"facts,omitempty"`
}

// FieldCheck compares one field of a fact. Exactly one of Equals, Ref
// and Null is set.
type FieldCheck struct {
	Fact  string `yaml:"fact"`
	Field string `yaml:"field"`

	// Equals is a literal the field must equal. Numbers compare by value.
	Equals any `yaml:"equals,omitempty"`

	// Ref names a fact the field must hold (identity, not value).
	Ref string `yaml:"ref,omitempty"`

	// Null requires the field to be null. The key is is_null because a
	// bare null key decodes as the YAML null value.
	Null bool `yaml:"is_null,omitempty"`
}

// Load reads a scenario file and resolves its asset paths.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, p := range sc.Assets {
		if !filepath.IsAbs(p) {
			sc.Assets[i] = filepath.Join(base, p)
		}
	}
	return sc, nil
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// AssetList returns the scenario's rule sources in compilation order.
func (s *Scenario) AssetList() []kie.Asset {
	assets := kie.Files(s.Assets...)
	if s.Rules != "" {
		assets = append(assets, kie.Text(s.Rules))
	}
	return assets
}

func (s *Scenario) pkg() string {
	if s.Package == "" {
		return kie.DefaultPackage
	}
	return s.Package
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Assets) == 0 && s.Rules == "" {
		return fmt.Errorf("assets or rules are required")
	}

	ids := make(map[string]bool, len(s.Facts))
	for i, f := range s.Facts {
		if f.ID == "" {
			return fmt.Errorf("facts[%d]: id is required", i)
		}
		if f.Type == "" {
			return fmt.Errorf("facts[%d]: type is required", i)
		}
		if ids[f.ID] {
			return fmt.Errorf("facts[%d]: duplicate id %q", i, f.ID)
		}
		for _, alias := range refsIn(f.Args, f.Fields) {
			if !ids[alias] {
				return fmt.Errorf("facts[%d]: reference to unknown fact %q", i, alias)
			}
		}
		ids[f.ID] = true
	}

	for i, c := range s.Expect.Facts {
		if !ids[c.Fact] {
			return fmt.Errorf("expect.facts[%d]: unknown fact %q", i, c.Fact)
		}
		if c.Field == "" {
			return fmt.Errorf("expect.facts[%d]: field is required", i)
		}
		set := 0
		if c.Equals != nil {
			set++
		}
		if c.Ref != "" {
			set++
			if !ids[c.Ref] {
				return fmt.Errorf("expect.facts[%d]: reference to unknown fact %q", i, c.Ref)
			}
		}
		if c.Null {
			set++
		}
		if set != 1 {
			return fmt.Errorf("expect.facts[%d]: exactly one of equals, ref or is_null is required", i)
		}
	}
	return nil
}

// refAlias reports whether v is a {ref: alias} value.
func refAlias(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	alias, ok := m["ref"].(string)
	return alias, ok
}

// refsIn collects the aliases referenced anywhere in args and fields.
func refsIn(args []any, fields map[string]any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		if alias, ok := refAlias(v); ok {
			out = append(out, alias)
			return
		}
		switch val := v.(type) {
		case []any:
			for _, e := range val {
				walk(e)
			}
		case map[string]any:
			for _, e := range val {
				walk(e)
			}
		}
	}
	for _, a := range args {
		walk(a)
	}
	for _, f := range fields {
		walk(f)
	}
	return out
}
