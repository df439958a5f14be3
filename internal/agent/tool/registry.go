package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
)

type Tool interface {
	Name() string

	Description() string

	ToolInfo() *schema.ToolInfo

	Execute(ctx context.Context, args map[string]any) (any, error)
}

type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

func NewRegistry(tools ...Tool) *Registry {
	reg := &Registry{
		tools: make(map[string]Tool, 8),
	}
	for _, t := range tools {
		reg.tools[t.Name()] = t
	}
	return reg
}

func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToolInfos returns tool schemas ordered by name, so prompts stay stable
// across runs.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, t.ToolInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Registry) Execute(ctx context.Context, toolName string, args map[string]any) (any, error) {
	tool, err := r.Get(toolName)
	if err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

// ParseArgs decodes the JSON arguments of a model tool call.
func ParseArgs(call *schema.ToolCall) (map[string]any, error) {
	if call == nil {
		return nil, fmt.Errorf("tool call cannot be nil")
	}
	if call.Function.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	args := make(map[string]any)
	if call.Function.Arguments == "" {
		return args, nil
	}
	if err := sonic.UnmarshalString(call.Function.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	return args, nil
}
