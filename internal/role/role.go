// Package role maintains the named host groups that scope remote operations.
package role

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// All is the reserved role name denoting the union of every defined role.
// It can be referenced but never defined.
const All = "all"

// Attributes holds per-host option values keyed by option name.
type Attributes map[string]interface{}

// Host is a single member of a role.
type Host struct {
	Name  string
	Attrs Attributes
}

// Role is a named, ordered set of hosts plus the role-wide options it was
// defined with.
type Role struct {
	Name    string
	Hosts   []Host
	Options Attributes
}

// Workspace returns the role's workspace option, if one was set.
func (r *Role) Workspace() (string, bool) {
	v, ok := r.Options["workspace"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ConfigurationError reports an invalid role definition or role spec.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// Registry stores role definitions in definition order. It is built once
// during script load and read during invocation; it is not safe for
// concurrent mutation.
type Registry struct {
	roles map[string]*Role
	order []string
}

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]*Role)}
}

// Define adds hosts to the named role, creating the role if it does not
// exist. Repeated definitions merge: hosts keep first-seen order, and later
// option values win per key for hosts that appear again. Defining the
// reserved name "all" fails with a ConfigurationError.
func (r *Registry) Define(name string, hosts []string, options Attributes) error {
	if name == All {
		return &ConfigurationError{Msg: `cannot define a role named "all": the name is reserved`}
	}
	if name == "" {
		return &ConfigurationError{Msg: "role name must not be empty"}
	}

	ro, exists := r.roles[name]
	if !exists {
		ro = &Role{Name: name, Options: Attributes{}}
		r.roles[name] = ro
		r.order = append(r.order, name)
	}

	for k, v := range options {
		ro.Options[k] = v
	}

	for _, h := range hosts {
		idx := -1
		for i := range ro.Hosts {
			if ro.Hosts[i].Name == h {
				idx = i
				break
			}
		}
		if idx < 0 {
			ro.Hosts = append(ro.Hosts, Host{Name: h, Attrs: Attributes{}})
			idx = len(ro.Hosts) - 1
		}
		for k, v := range options {
			ro.Hosts[idx].Attrs[k] = v
		}
	}
	return nil
}

// Get returns the named role, if defined.
func (r *Registry) Get(name string) (*Role, bool) {
	ro, ok := r.roles[name]
	return ro, ok
}

// Names returns every defined role name in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve normalizes a role reference into an ordered list of distinct,
// defined role names. The reserved name "all" expands to every defined role
// in definition order. An unknown role name is a ConfigurationError.
func (r *Registry) Resolve(names ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if name == All {
			for _, n := range r.order {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
			continue
		}
		if _, ok := r.roles[name]; !ok {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("role %q is not defined", name)}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// Filter returns the hosts whose attributes match every key/value pair in
// opts. A host missing a filtered key is excluded. An empty filter matches
// all hosts.
func Filter(hosts []Host, opts Attributes) []Host {
	if len(opts) == 0 {
		return hosts
	}
	var out []Host
	for _, h := range hosts {
		if matches(h.Attrs, opts) {
			out = append(out, h)
		}
	}
	return out
}

func matches(attrs, opts Attributes) bool {
	for k, want := range opts {
		got, ok := attrs[k]
		if !ok || !attrEqual(got, want) {
			return false
		}
	}
	return true
}

// attrEqual compares attribute values. Filters parsed from the command line
// arrive as strings while manifest attributes are typed scalars, so scalars
// compare loosely by their printed form.
func attrEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Spec carries role identifiers plus an optional inline filter clause.
type Spec struct {
	Roles  []string
	Filter Attributes
}

// NewSpec builds a Spec for the given role names with no filter.
func NewSpec(roles ...string) Spec {
	return Spec{Roles: roles}
}

// ParseSpec splits a textual role reference into role identifiers and an
// inline filter clause. Accepted forms:
//
//	web
//	web,app
//	web[primary=true]
//	all[region=eu,primary=true]
//
// Filter values parse as bool or int when they look like one, string
// otherwise.
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, &ConfigurationError{Msg: "role reference must not be empty"}
	}

	var filterClause string
	if i := strings.IndexByte(raw, '['); i >= 0 {
		if !strings.HasSuffix(raw, "]") {
			return Spec{}, &ConfigurationError{Msg: fmt.Sprintf("malformed role reference %q: unclosed filter clause", raw)}
		}
		filterClause = raw[i+1 : len(raw)-1]
		raw = raw[:i]
	}

	var spec Spec
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return Spec{}, &ConfigurationError{Msg: "role reference contains an empty role name"}
		}
		spec.Roles = append(spec.Roles, name)
	}

	if filterClause != "" {
		spec.Filter = Attributes{}
		for _, pair := range strings.Split(filterClause, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || k == "" {
				return Spec{}, &ConfigurationError{Msg: fmt.Sprintf("malformed filter clause %q: want key=value", pair)}
			}
			spec.Filter[k] = parseScalar(v)
		}
	}
	return spec, nil
}

func parseScalar(s string) interface{} {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}
