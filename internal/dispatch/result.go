package dispatch

// HostResult is one host's output for one command.
type HostResult struct {
	Host       string `json:"host"`
	ExitStatus int    `json:"exit_status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// CommandResult holds every host's output for one command, in the role's
// host order.
type CommandResult struct {
	Command string       `json:"command"`
	Hosts   []HostResult `json:"hosts"`
}

// RoleResult holds the commands executed against one role, in invocation
// order. Hosts lists the matched hosts the commands fanned out to; it is
// empty when the filter matched nothing.
type RoleResult struct {
	Role     string          `json:"role"`
	Hosts    []string        `json:"hosts"`
	Commands []CommandResult `json:"commands"`
}

// Result aggregates a Remote call: roles in processing order, commands in
// invocation order within each role, hosts in role order within each
// command. On failure it carries everything completed before the abort.
type Result struct {
	Roles []RoleResult `json:"roles"`
}

// Role returns the results collected for the named role.
func (r *Result) Role(name string) (*RoleResult, bool) {
	for i := range r.Roles {
		if r.Roles[i].Role == name {
			return &r.Roles[i], true
		}
	}
	return nil, false
}

// Host returns the named host's outputs for every command of this role, in
// command order.
func (rr *RoleResult) Host(name string) []HostResult {
	var out []HostResult
	for _, cr := range rr.Commands {
		for _, hr := range cr.Hosts {
			if hr.Host == name {
				out = append(out, hr)
			}
		}
	}
	return out
}
