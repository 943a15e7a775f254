package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"viewsmith/internal/logging"
	"viewsmith/internal/model"
)

// Registry holds the available tools and dispatches calls to them.
// It is thread-safe and supports registration at runtime. There is no
// package-level instance; callers build a registry and inject it.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*Tool
	byCategory map[Category][]*Tool
}

// NewRegistry returns an empty registry ready for registrations.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[Category][]*Tool),
	}
}

// Register validates the tool and adds it under its name. Duplicate
// names are rejected.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("Registered tool: %s (category=%s)", tool.Name, tool.Category)
	return nil
}

// MustRegister is Register for the static builtin set, where a
// failure is a programming error worth a panic.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("register tool %s: %v", tool.Name, err))
	}
}

// Get looks up a tool by name. Unregistered names return nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ByCategory returns all tools in a category, sorted by name.
func (r *Registry) ByCategory(category Category) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, len(r.byCategory[category]))
	copy(tools, r.byCategory[category])

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count reports how many tools are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the wire definitions for every registered tool in
// name order, so the model sees a stable tool list across calls.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.sortedNamesLocked()
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch validates the arguments against the tool's schema and runs it.
// Returns ErrToolNotFound for unregistered names. A panicking handler is
// recovered and reported as an error, never propagated.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (outcome *Outcome, err error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(tool, args); err != nil {
		logging.ToolsError("Tool %s rejected arguments: %v", name, err)
		return nil, err
	}

	start := time.Now()
	logging.ToolsDebug("Dispatching tool: %s", name)

	defer func() {
		if rec := recover(); rec != nil {
			logging.ToolsError("Tool %s panicked: %v", name, rec)
			outcome = nil
			err = fmt.Errorf("tool %s panicked: %v", name, rec)
		}
	}()

	outcome, err = tool.Execute(ctx, args)
	logging.ToolsDebug("Tool %s completed in %v (success=%v)", name, time.Since(start), err == nil)
	return outcome, err
}

// validateArgs checks required arguments, rejects names the schema does
// not declare and enforces declared types.
func validateArgs(tool *Tool, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}

	for name, value := range args {
		prop, declared := tool.Schema.Properties[name]
		if !declared {
			return fmt.Errorf("%w: %s", ErrUnknownArg, name)
		}
		if value == nil {
			continue
		}
		if !typeMatches(prop.Type, value) {
			return fmt.Errorf("%w: %s expects %s", ErrInvalidArgType, name, prop.Type)
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a schema type name.
// JSON numbers decode as float64, so integer accepts float64 too.
func typeMatches(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		// Undeclared types pass through; the handler owns them.
		return true
	}
}
