package tools

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mailagent/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mailagent", "tools")

// Registry maps tool names to tools. Names are case-sensitive.
// It is safe for concurrent use.
type Registry struct {
	lock  sync.RWMutex
	tools map[string]ITool
	names []string
}

// NewRegistry returns a registry with the tools.
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]ITool),
	}
	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds the tool. The tool must have a name and a parameters schema,
// and the name must not be registered yet.
func (r *Registry) Register(tool ITool) error {
	if tool == nil {
		return errors.Wrap(ErrInvalidTool, "nil tool")
	}
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(ErrInvalidTool, "empty name")
	}
	if tool.Parameters() == nil {
		return errors.Wrapf(ErrInvalidTool, "%s: missing parameters schema", name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.tools[name]; exists {
		return errors.Wrapf(ErrDuplicateTool, "%s", name)
	}
	r.tools[name] = tool
	r.names = append(r.names, name)

	logger.KV(xlog.DEBUG, "status", "registered", "tool", name)
	return nil
}

// Register adds a Function tool for fn to the registry.
func Register[I any](r *Registry, name, description string, fn Func[I]) error {
	f, err := NewFunction(name, description, fn)
	if err != nil {
		return err
	}
	return r.Register(f)
}

// Get returns the tool registered under the name.
func (r *Registry) Get(name string) (ITool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, errors.Mark(
			errors.Newf("tool %q not found, available tools: %s", name, strings.Join(r.names, ", ")),
			ErrToolNotFound)
	}
	return tool, nil
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return slices.Clone(r.names)
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []ITool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]ITool, 0, len(r.names))
	for _, name := range r.names {
		list = append(list, r.tools[name])
	}
	return list
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.names)
}

// Definitions returns the tool definitions advertised to the model.
func (r *Registry) Definitions() []llms.Tool {
	var defs []llms.Tool
	for _, t := range r.Tools() {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Prepare finds the tool and binds the arguments, without running it.
func (r *Registry) Prepare(name, arguments string) (ITool, Invocation, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, nil, err
	}
	call, err := tool.Bind(arguments)
	if err != nil {
		return tool, nil, err
	}
	return tool, call, nil
}

// Invoke runs the tool with the arguments.
// Failures of the tool itself are marked with ErrToolFailed.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) (string, error) {
	_, call, err := r.Prepare(name, arguments)
	if err != nil {
		return "", err
	}
	return Run(ctx, name, call)
}

// Run executes a prepared invocation.
// The error, if any, is marked with ErrToolFailed.
func Run(ctx context.Context, name string, call Invocation) (string, error) {
	res, err := call(ctx)
	if err != nil {
		return "", errors.Mark(errors.WithMessagef(err, "tool %s", name), ErrToolFailed)
	}
	return res, nil
}
