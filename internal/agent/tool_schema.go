package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidationError reports that a tool call's arguments did not satisfy
// the tool's declared JSON schema.
type SchemaValidationError struct {
	ToolName string
	Wrapped  error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("tool %q: arguments failed schema validation: %v", e.ToolName, e.Wrapped)
}

func (e *SchemaValidationError) Unwrap() error { return e.Wrapped }

// schemaValidatorCache compiles and caches a jsonschema.Schema per tool name,
// since a tool's Schema() is immutable for the life of the registry entry.
type schemaValidatorCache struct {
	mu     sync.Mutex
	byName map[string]*jsonschema.Schema
}

func newSchemaValidatorCache() *schemaValidatorCache {
	return &schemaValidatorCache{byName: make(map[string]*jsonschema.Schema)}
}

// compile compiles and caches the schema for a tool, keyed by name. A tool
// with no schema (empty or "{}") is treated as unconstrained and always
// passes validation.
func (c *schemaValidatorCache) compile(name string, rawSchema json.RawMessage) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.byName[name]; ok {
		return s, nil
	}

	trimmed := bytes.TrimSpace(rawSchema)
	if len(trimmed) == 0 || string(trimmed) == "{}" {
		c.byName[name] = nil
		return nil, nil
	}

	compiler := jsonschema.NewCompiler()
	resourceURL := "tool://" + name + "/schema.json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(trimmed)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	c.byName[name] = schema
	return schema, nil
}

// invalidate drops a cached schema, forcing recompilation on next use. Call
// this when a tool is re-registered under the same name with a new schema.
func (c *schemaValidatorCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, name)
}

// validateArgs validates params against tool's declared schema, returning a
// *SchemaValidationError on mismatch. A nil schema (tool declares none)
// always validates.
func (c *schemaValidatorCache) validateArgs(tool Tool, params json.RawMessage) error {
	schema, err := c.compile(tool.Name(), tool.Schema())
	if err != nil {
		return fmt.Errorf("tool %q: %w", tool.Name(), err)
	}
	if schema == nil {
		return nil
	}

	var parsed any
	if len(bytes.TrimSpace(params)) == 0 {
		parsed = map[string]any{}
	} else if err := json.Unmarshal(params, &parsed); err != nil {
		return &SchemaValidationError{ToolName: tool.Name(), Wrapped: err}
	}

	if err := schema.Validate(parsed); err != nil {
		return &SchemaValidationError{ToolName: tool.Name(), Wrapped: err}
	}
	return nil
}
