// Package tools defines the tools the model can call and the registry
// that validates and dispatches those calls.
//
// Each tool is standalone: a name, a JSON schema for its arguments and an
// execute function returning an Outcome. The loop selects nothing by
// itself; the model drives tool choice and the registry enforces the
// contract.
package tools

import (
	"context"

	"viewsmith/internal/layout"
	"viewsmith/internal/model"
)

// Category classifies tools by the kind of work they do.
type Category string

const (
	// CategoryData covers dataset fetching and schema inspection.
	CategoryData Category = "data"

	// CategoryLayout covers layout construction.
	CategoryLayout Category = "layout"

	// CategoryMutation covers record and statement mutations.
	CategoryMutation Category = "mutation"
)

// Property describes a single argument in a tool schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Enum        []any  `json:"enum,omitempty"`

	// Items describes array element schema (required for type="array").
	Items *Property `json:"items,omitempty"`

	// Properties describes nested object fields. An object without
	// properties accepts free-form keys.
	Properties map[string]Property `json:"properties,omitempty"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	// Required lists arguments that must be provided.
	Required []string `json:"required"`

	// Properties describes each argument. Argument names not listed here
	// are rejected at dispatch time.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (*Outcome, error)

// Outcome is what a tool hands back to the loop: an optional layout tree,
// the datasets it produced, structured metadata and a short content line
// for the model to read.
type Outcome struct {
	Layout   *layout.Node      `json:"layout,omitempty"`
	Datasets layout.DatasetSet `json:"datasets,omitempty"`
	Meta     map[string]any    `json:"meta,omitempty"`
	Content  string            `json:"content,omitempty"`
}

// Tool defines one callable tool.
type Tool struct {
	// Name is the unique identifier the model calls the tool by.
	Name string

	// Description explains what the tool does, for the model.
	Description string

	// Category classifies the tool.
	Category Category

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Execute runs the tool with validated arguments.
	Execute ExecuteFunc
}

// Validate checks if the tool definition is usable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition converts the tool into the wire shape sent to the model.
func (t *Tool) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.Schema.JSONSchema(),
	}
}

// JSONSchema renders the schema as a generic JSON-schema object.
func (s ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.jsonSchema()
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (p Property) jsonSchema() map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	if p.Items != nil {
		m["items"] = p.Items.jsonSchema()
	}
	if len(p.Properties) > 0 {
		nested := make(map[string]any, len(p.Properties))
		for name, np := range p.Properties {
			nested[name] = np.jsonSchema()
		}
		m["properties"] = nested
	}
	return m
}
