// Package queryset lets a CLI demo declare a named set of integer inputs and
// queries from a YAML file instead of Go source, for scripted demos of the
// increcache REPL.
//
// This is intentionally shallow: every input is a plain integer keyed by
// name and every query is a sum of named inputs, so the file format stays simple (one cannot
// declare arbitrary key/value types this way — see cmd/increcache for the
// Go-level System that backs it). It plays the same role the teacher's APOC
// configuration does for choosing which functions are active, adapted here
// to choosing which named inputs and derived sums exist for a session.
package queryset

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Query describes one derived value: the sum of a list of named inputs.
// It is deliberately the simplest possible non-trivial query shape — enough
// to exercise caching and invalidation from a declarative file without
// inventing an expression language.
type Query struct {
	// Name identifies the query for the REPL's `run <name>` command.
	Name string `yaml:"name"`
	// Inputs lists the input names this query reads (and therefore depends
	// on) when it runs.
	Inputs []string `yaml:"inputs"`
}

// Set is a named collection of inputs (with optional initial values) and
// derived queries, loadable from YAML or built programmatically.
type Set struct {
	// Inputs maps input name to its initial integer value.
	Inputs map[string]int `yaml:"inputs"`
	// Queries lists the named sum queries available to run.
	Queries []Query `yaml:"queries"`
}

// Default returns a small built-in set (three inputs, one sum query) used
// when no file is given — enough to drive `increcache demo` out of the box.
func Default() *Set {
	return &Set{
		Inputs: map[string]int{"a": 1, "b": 2, "c": 3},
		Queries: []Query{
			{Name: "sum", Inputs: []string{"a", "b", "c"}},
		},
	}
}

// Load reads a Set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("queryset: read %s: %w", path, err)
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("queryset: parse %s: %w", path, err)
	}
	if set.Inputs == nil {
		set.Inputs = make(map[string]int)
	}
	return &set, nil
}

// LoadOrDefault loads path if non-empty, otherwise returns Default(). A
// read or parse error still returns Default() — a scripted demo should not
// fail outright over a malformed queryset file; it falls back the way
// apoc.LoadConfigOrDefault does for a missing APOC config.
func LoadOrDefault(path string) *Set {
	if path == "" {
		return Default()
	}
	set, err := Load(path)
	if err != nil {
		return Default()
	}
	return set
}

// Query looks up a named query in the set.
func (s *Set) Query(name string) (Query, bool) {
	for _, q := range s.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// QueryNames returns every declared query's name, in declaration order, for
// the demo run and the REPL's `list` and `stats` output.
func (s *Set) QueryNames() []string {
	names := make([]string, len(s.Queries))
	for i, q := range s.Queries {
		names[i] = q.Name
	}
	return names
}

// InputNames returns every declared input's name, sorted for deterministic
// `list` output.
func (s *Set) InputNames() []string {
	names := make([]string, 0, len(s.Inputs))
	for name := range s.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the set for debug/log output.
func (s *Set) String() string {
	return fmt.Sprintf("Set{inputs: [%s], queries: [%s]}",
		strings.Join(s.InputNames(), ", "), strings.Join(s.QueryNames(), ", "))
}
