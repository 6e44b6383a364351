package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/payimport/internal/core"
)

// MappingFile is a column mapping stored as YAML for CLI runs.
//
//	name: shop export
//	per_step: 5
//	fields:
//	  total: Amount
//	  email: E-mail
type MappingFile struct {
	// Name is a free-form label.
	Name string `yaml:"name,omitempty"`

	// Format forces the file format (csv or xlsx) instead of detecting it
	// from the file extension.
	Format string `yaml:"format,omitempty"`

	// PerStep overrides IMPORT_PER_STEP when positive.
	PerStep int `yaml:"per_step,omitempty"`

	// Fields maps canonical field names to column headers.
	Fields map[string]string `yaml:"fields"`
}

// LoadMappingFile reads and validates a YAML mapping file.
func LoadMappingFile(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return ParseMappingFile(data)
}

// ParseMappingFile parses and validates YAML mapping data.
func ParseMappingFile(data []byte) (*MappingFile, error) {
	var mf MappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if _, err := mf.FieldMapping(); err != nil {
		return nil, err
	}
	if mf.PerStep < 0 {
		return nil, fmt.Errorf("per_step (%d) must not be negative", mf.PerStep)
	}
	return &mf, nil
}

// FieldMapping converts the file's fields into a core mapping. Column
// existence is checked later against the data file's headers.
func (mf *MappingFile) FieldMapping() (core.FieldMapping, error) {
	m := make(core.FieldMapping, len(mf.Fields))
	for name, column := range mf.Fields {
		m[core.Field(name)] = column
	}
	if err := core.ValidateMapping(m, nil); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMappingFile builds a mapping file from a core mapping.
func NewMappingFile(name string, m core.FieldMapping) *MappingFile {
	mf := &MappingFile{Name: name, Fields: make(map[string]string, len(m))}
	for f, column := range m {
		if column != "" {
			mf.Fields[string(f)] = column
		}
	}
	return mf
}

// Marshal encodes the mapping file as YAML. Fields are written in the
// canonical field order.
func (mf *MappingFile) Marshal() ([]byte, error) {
	fields := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range sortedFieldNames(mf.Fields) {
		fields.Content = append(fields.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: mf.Fields[name]},
		)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	}
	if mf.Name != "" {
		add("name", &yaml.Node{Kind: yaml.ScalarNode, Value: mf.Name})
	}
	if mf.Format != "" {
		add("format", &yaml.Node{Kind: yaml.ScalarNode, Value: mf.Format})
	}
	if mf.PerStep > 0 {
		add("per_step", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(mf.PerStep)})
	}
	add("fields", fields)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode mapping file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode mapping file: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMappingFile writes mf to path as YAML.
func WriteMappingFile(path string, mf *MappingFile) error {
	data, err := mf.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping file: %w", err)
	}
	return nil
}

// sortedFieldNames orders canonical fields as core.Fields lists them, then
// any unknown names alphabetically.
func sortedFieldNames(fields map[string]string) []string {
	rank := make(map[string]int, len(core.Fields))
	for i, info := range core.Fields {
		rank[string(info.Field)] = i
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := rank[names[i]]
		rj, jok := rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return names[i] < names[j]
	})
	return names
}
