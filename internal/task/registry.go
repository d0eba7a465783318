// Package task holds the task and hook registries and the invocation engine.
package task

import (
	"context"
	"fmt"
	"log"
	"runtime"
)

// Body is an executable unit registered as a task or hook.
type Body func(ctx context.Context) error

// Info describes a registered task for listing.
type Info struct {
	Name   string
	Origin string
}

type definition struct {
	body   Body
	origin string
}

// Registry stores task bodies and their before/after hooks. It is built
// during script load and read during invocation; it is not safe for
// concurrent mutation.
type Registry struct {
	tasks  map[string]definition
	order  []string
	hooks  map[hookKey][]hook
	seq    int
	logger *log.Logger
}

// NewRegistry creates an empty task registry. Warnings are written to
// logger; a nil logger falls back to the default.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		tasks:  make(map[string]definition),
		hooks:  make(map[hookKey][]hook),
		logger: logger,
	}
}

// Define registers body under name, capturing the caller's file and line as
// the definition origin. Redefining without override logs a warning naming
// the previous definition's origin; the new body wins either way. Setting
// override with no previous definition logs a needless-override warning.
// Redefinition is never an error.
func (r *Registry) Define(name string, body Body, override bool) {
	r.DefineAt(name, body, override, callerOrigin(2))
}

// DefineAt is Define with an explicit origin, for callers that register
// tasks on behalf of someone else (e.g. a manifest loader).
func (r *Registry) DefineAt(name string, body Body, override bool, origin string) {
	prev, exists := r.tasks[name]
	switch {
	case exists && !override:
		r.logger.Printf("warning: task %q redefined, replacing definition from %s", name, prev.origin)
	case !exists && override:
		r.logger.Printf("warning: task %q defined with override but had no previous definition", name)
	}
	if !exists {
		r.order = append(r.order, name)
	}
	r.tasks[name] = definition{body: body, origin: origin}
}

// Lookup returns the body registered for name. A missing definition is
// legal: Invoke treats it as an empty task.
func (r *Registry) Lookup(name string) (Body, bool) {
	d, ok := r.tasks[name]
	return d.body, ok
}

// Defined returns every registered task in definition order.
func (r *Registry) Defined() []Info {
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Info{Name: name, Origin: r.tasks[name].origin})
	}
	return out
}

func callerOrigin(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
