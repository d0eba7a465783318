package task

// Position says whether a hook runs before or after its task's body.
type Position string

const (
	// PositionBefore hooks run ahead of the task body.
	PositionBefore Position = "before"
	// PositionAfter hooks run once the body has finished.
	PositionAfter Position = "after"
)

type hookKey struct {
	task     string
	position Position
}

// hook is one before/after entry: either an inline body or a reference to
// another task, never both. seq fixes execution order among hooks for the
// same (task, position).
type hook struct {
	seq     int
	body    Body
	invokes string
}

// Before appends an inline hook that runs ahead of task's body. The task
// need not be defined: hooks may attach to bare event names.
func (r *Registry) Before(task string, body Body) {
	r.addHook(task, PositionBefore, body, "")
}

// After appends an inline hook that runs once task's body has finished.
func (r *Registry) After(task string, body Body) {
	r.addHook(task, PositionAfter, body, "")
}

// BeforeTask appends a hook that invokes other (with its own hooks) ahead
// of task's body.
func (r *Registry) BeforeTask(task, other string) {
	r.addHook(task, PositionBefore, nil, other)
}

// AfterTask appends a hook that invokes other once task's body has finished.
func (r *Registry) AfterTask(task, other string) {
	r.addHook(task, PositionAfter, nil, other)
}

func (r *Registry) addHook(task string, pos Position, body Body, invokes string) {
	r.seq++
	key := hookKey{task: task, position: pos}
	r.hooks[key] = append(r.hooks[key], hook{seq: r.seq, body: body, invokes: invokes})
}

// hooksFor returns the hooks for (task, pos) in registration order.
func (r *Registry) hooksFor(task string, pos Position) []hook {
	return r.hooks[hookKey{task: task, position: pos}]
}

// HookCount reports how many hooks are attached to (task, pos).
func (r *Registry) HookCount(task string, pos Position) int {
	return len(r.hooksFor(task, pos))
}
