package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrInvalidJSON marks a reply that is not parseable JSON.
	ErrInvalidJSON = errors.New("llm: reply is not valid JSON")
	// ErrSchemaMismatch marks a reply that parses but violates its schema.
	ErrSchemaMismatch = errors.New("llm: reply does not match schema")
)

// Schema validates model replies before they are decoded into typed results.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema document.
func CompileSchema(name string, doc []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level embedded schemas.
func MustCompileSchema(name string, doc []byte) *Schema {
	s, err := CompileSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Decode strips code fences from raw, validates it and unmarshals into v.
func (s *Schema) Decode(raw string, v any) error {
	clean := StripFences(raw)
	var generic any
	if err := json.Unmarshal([]byte(clean), &generic); err != nil {
		return fmt.Errorf("%w (%s): %v", ErrInvalidJSON, s.name, err)
	}
	if err := s.compiled.Validate(generic); err != nil {
		return fmt.Errorf("%w (%s): %v", ErrSchemaMismatch, s.name, err)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("%w (%s): %v", ErrSchemaMismatch, s.name, err)
	}
	return nil
}
