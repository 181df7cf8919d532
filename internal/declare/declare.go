// Package declare loads view declarations from YAML files.
package declare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/pgschema/viewmig/internal/engine"
	"github.com/pgschema/viewmig/internal/include"
	"github.com/pgschema/viewmig/internal/ir"
)

// File is a parsed declaration file
type File struct {
	Views []Declaration `json:"views"`

	// baseDir resolves relative definition files
	baseDir string
}

// Declaration is one view as written in a declaration file
type Declaration struct {
	Table            string            `json:"table"`
	Kind             ir.Kind           `json:"kind,omitempty"`
	Definition       json.RawMessage   `json:"definition,omitempty"`
	DefinitionFile   string            `json:"definition_file,omitempty"`
	DefinitionFiles  map[string]string `json:"definition_files,omitempty"`
	UseReplace       *bool             `json:"use_replace,omitempty"`
	Dependencies     []string          `json:"dependencies,omitempty"`
	Indexes          []ir.IndexSpec    `json:"indexes,omitempty"`
	UnmanagedIndexes []string          `json:"unmanaged_indexes,omitempty"`
}

// LoadFile reads and parses a declaration file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations %s: %w", path, err)
	}
	f, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses declarations. Relative definition files are resolved
// against baseDir.
func Parse(data []byte, baseDir string) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("invalid declarations: %w", err)
	}
	f.baseDir = baseDir
	return &f, nil
}

// MaterializedTables lists the declared materialized views in name order
func (f *File) MaterializedTables() []string {
	var tables []string
	for _, d := range f.Views {
		if d.kind() == ir.KindMaterializedView {
			tables = append(tables, d.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// Registry builds a fresh registry for one planning pass. discovered holds
// indexes found in the database per table; declared indexes win on a name
// clash. discovered may be nil.
func (f *File) Registry(discovered map[string][]ir.IndexSpec) (*ir.Registry, error) {
	reg := ir.NewRegistry()
	for i, d := range f.Views {
		view, err := d.view(f.baseDir, discovered[d.Table])
		if err != nil {
			return nil, fmt.Errorf("view #%d (%s): %w", i+1, d.Table, err)
		}
		if err := reg.Register(view); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Load reads a declaration file into a fresh registry
func Load(path string) (*ir.Registry, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Registry(nil)
}

func (d *Declaration) kind() ir.Kind {
	if d.Kind == "" {
		return ir.KindView
	}
	return d.Kind
}

func (d *Declaration) view(baseDir string, discovered []ir.IndexSpec) (*ir.View, error) {
	src, err := d.source(baseDir)
	if err != nil {
		return nil, err
	}

	view := &ir.View{
		Table:        d.Table,
		Kind:         d.kind(),
		Definition:   src,
		Replace:      ir.ReplacePolicyFrom(d.UseReplace),
		Indexes:      mergeIndexes(d.Indexes, discovered),
		Dependencies: d.Dependencies,
	}
	if len(d.UnmanagedIndexes) > 0 {
		view.IndexOverride = skipIndexes(d.UnmanagedIndexes)
	}
	return view, nil
}

func (d *Declaration) source(baseDir string) (ir.Source, error) {
	set := 0
	if len(d.Definition) > 0 && !bytes.Equal(d.Definition, []byte("null")) {
		set++
	}
	if d.DefinitionFile != "" {
		set++
	}
	if len(d.DefinitionFiles) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of definition, definition_file or definition_files is required")
	}

	switch {
	case d.DefinitionFile != "":
		path := resolvePath(baseDir, d.DefinitionFile)
		return ir.Deferred(func() (ir.Source, error) {
			sql, err := include.NewProcessor(baseDir).ReadFile(path)
			if err != nil {
				return nil, err
			}
			return ir.SQL(sql), nil
		}), nil

	case len(d.DefinitionFiles) > 0:
		paths := make(map[engine.ID]string, len(d.DefinitionFiles))
		for key, file := range d.DefinitionFiles {
			paths[engine.Parse(key)] = resolvePath(baseDir, file)
		}
		return ir.Deferred(func() (ir.Source, error) {
			defs := make(ir.PerEngine, len(paths))
			p := include.NewProcessor(baseDir)
			for e, path := range paths {
				sql, err := p.ReadFile(path)
				if err != nil {
					return nil, err
				}
				defs[e] = sql
			}
			return defs, nil
		}), nil
	}

	var literal string
	if err := json.Unmarshal(d.Definition, &literal); err == nil {
		return ir.SQL(literal), nil
	}

	var mapping map[string]string
	if err := json.Unmarshal(d.Definition, &mapping); err != nil {
		return nil, fmt.Errorf("definition must be a string or a mapping of engine to SQL")
	}
	defs := make(ir.PerEngine, len(mapping))
	for key, sql := range mapping {
		defs[engine.Parse(key)] = sql
	}
	return defs, nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// mergeIndexes adds discovered indexes that are not declared
func mergeIndexes(declared, discovered []ir.IndexSpec) []ir.IndexSpec {
	if len(discovered) == 0 {
		return declared
	}
	names := make(map[string]bool, len(declared))
	merged := make([]ir.IndexSpec, 0, len(declared)+len(discovered))
	for _, idx := range declared {
		names[idx.Name] = true
		merged = append(merged, idx)
	}
	for _, idx := range discovered {
		if names[idx.Name] {
			continue
		}
		names[idx.Name] = true
		merged = append(merged, idx)
	}
	return merged
}

// skipIndexes returns an override that stops tracking the named indexes
func skipIndexes(names []string) ir.IndexOverride {
	return func(_ engine.ID, indexes map[string]ir.IndexSpec) map[string]ir.IndexSpec {
		for _, name := range names {
			delete(indexes, name)
		}
		return indexes
	}
}
