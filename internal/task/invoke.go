package task

import "context"

// Invoker runs tasks together with their before and after hooks.
type Invoker struct {
	reg *Registry
}

// NewInvoker creates an Invoker over reg.
func NewInvoker(reg *Registry) *Invoker {
	return &Invoker{reg: reg}
}

// Invoke runs name's before-hooks in registration order, then its body if
// one is defined (an undefined body is a silent no-op), then its after-hooks.
// A hook that references another task runs as a full Invoke of that task,
// including its own hooks; reference chains nest arbitrarily deep and cycles
// are not detected, so a cyclic chain recurses until the stack runs out.
// The first error aborts the remaining steps and propagates unchanged.
func (i *Invoker) Invoke(ctx context.Context, name string) error {
	for _, h := range i.reg.hooksFor(name, PositionBefore) {
		if err := i.runHook(ctx, h); err != nil {
			return err
		}
	}
	if body, ok := i.reg.Lookup(name); ok {
		if err := body(ctx); err != nil {
			return err
		}
	}
	for _, h := range i.reg.hooksFor(name, PositionAfter) {
		if err := i.runHook(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (i *Invoker) runHook(ctx context.Context, h hook) error {
	if h.invokes != "" {
		return i.Invoke(ctx, h.invokes)
	}
	return h.body(ctx)
}
