// Package yamlsuite implements an engine whose units are *.suite.yaml files.
//
// A suite file declares variables and a list of tests. Each test holds
// expr-lang boolean expressions evaluated against the merged variables:
//
//	name: arithmetic
//	vars:
//	  x: 2
//	tests:
//	  - name: doubles
//	    expect: x * 2 == 4
//	  - name: within tolerance
//	    vars: {y: 4.1}
//	    standard: abs(y - x * 2) < 0.5
//	  - name: later
//	    ignore: not implemented yet
//	groups:
//	  - name: strings
//	    tests:
//	      - name: concat
//	        expect: '"a" + "b" == "ab"'
//
// Tests inside groups are named "group/test".
package yamlsuite

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is a parsed suite file.
type File struct {
	Name   string         `yaml:"name"`
	Vars   map[string]any `yaml:"vars,omitempty"`
	Tests  []Test         `yaml:"tests,omitempty"`
	Groups []Group        `yaml:"groups,omitempty"`
}

// Group nests tests under a common name and variables.
type Group struct {
	Name   string         `yaml:"name"`
	Vars   map[string]any `yaml:"vars,omitempty"`
	Tests  []Test         `yaml:"tests,omitempty"`
	Groups []Group        `yaml:"groups,omitempty"`
}

// Test is a single test declaration. The first of Ignore, Panic and Fail
// that is set decides the outcome without evaluating anything.
type Test struct {
	Name     string         `yaml:"name"`
	Vars     map[string]any `yaml:"vars,omitempty"`
	Expect   string         `yaml:"expect,omitempty"`
	Standard string         `yaml:"standard,omitempty"`
	Ignore   string         `yaml:"ignore,omitempty"`
	Fail     string         `yaml:"fail,omitempty"`
	Panic    string         `yaml:"panic,omitempty"`
}

// Case is a test flattened out of its groups, with variables merged from
// the file down to the test.
type Case struct {
	Name string
	Vars map[string]any
	Test Test
}

// ParseFile reads and parses a suite file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return f, nil
}

// Parse parses suite file contents.
func Parse(data []byte) (*File, error) {
	var f File

	err := yaml.Unmarshal(data, &f)
	if err != nil {
		return nil, err
	}

	err = f.validate()
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool)

	for _, c := range f.Cases() {
		if c.Test.Name == "" || strings.HasSuffix(c.Name, "/") {
			return fmt.Errorf("%w: test without name in %q", ErrInvalidFile, c.Name)
		}

		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate test %q", ErrInvalidFile, c.Name)
		}

		seen[c.Name] = true
	}

	return nil
}

// Cases flattens the file into its tests in declaration order: top-level
// tests first, then each group depth-first.
func (f *File) Cases() []Case {
	var cases []Case

	collect(&cases, nil, f.Vars, f.Tests, f.Groups)

	return cases
}

func collect(cases *[]Case, path []string, vars map[string]any, tests []Test, groups []Group) {
	for _, t := range tests {
		merged := maps.Clone(vars)
		if merged == nil {
			merged = make(map[string]any)
		}

		maps.Copy(merged, t.Vars)

		*cases = append(*cases, Case{
			Name: strings.Join(append(append([]string(nil), path...), t.Name), "/"),
			Vars: merged,
			Test: t,
		})
	}

	for _, g := range groups {
		merged := maps.Clone(vars)
		if merged == nil {
			merged = make(map[string]any)
		}

		maps.Copy(merged, g.Vars)

		collect(cases, append(append([]string(nil), path...), g.Name), merged, g.Tests, g.Groups)
	}
}
