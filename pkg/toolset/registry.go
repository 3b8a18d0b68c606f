// Package toolset implements the remediation engine's closed tool set: a
// fixed group of diagnostic and mutating tools, looked up by name through a
// small registry, each returning the uniform ResultRecord shape so a tool
// never aborts the workflow by panicking or returning a bare error.
package toolset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fleetward/remediator/pkg/types"
)

// Func is a tool's behavior: it has no Go error return; an operational
// failure is captured in the returned ResultRecord's ok/error fields.
// Programmer errors (an unknown tool name) surface from Registry.Execute.
type Func func(ctx context.Context, args map[string]any) types.ResultRecord

// Tool is one closed-set variant: a name, its declared alias (the key it is
// recorded under in tool_results), whether it mutates cluster state, and
// its behavior.
type Tool struct {
	Name     string
	Alias    string
	Mutating bool
	Fn       Func
}

// Registry is the process-lifetime, concurrency-safe lookup table of Tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool; registering the same name twice is an error.
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// IsRegistered reports whether name is a known tool.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GetRegisteredActions returns every registered tool name, sorted.
func (r *Registry) GetRegisteredActions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool's behavior. Unknown tool names are a
// programmer error — the workflow engine only ever calls Execute with a
// name resolved from the fixed action table, validated at runbook load.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (types.ResultRecord, error) {
	tool, ok := r.Get(name)
	if !ok {
		return types.ResultRecord{}, fmt.Errorf("unknown tool %q", name)
	}
	return tool.Fn(ctx, args), nil
}
