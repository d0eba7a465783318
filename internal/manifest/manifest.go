// Package manifest loads YAML deploy scripts and registers their roles,
// tasks, and hooks into an engine.
package manifest

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spinlock99/bootleg/internal/dispatch"
	"github.com/spinlock99/bootleg/internal/engine"
	"github.com/spinlock99/bootleg/internal/role"
)

// File is a parsed deploy manifest.
type File struct {
	// Path the manifest was loaded from; used as task origin.
	Path string `yaml:"-"`

	Config map[string]interface{} `yaml:"config"`
	Roles  []RoleDecl             `yaml:"roles"`
	Tasks  []TaskDecl             `yaml:"tasks"`
	Hooks  []HookDecl             `yaml:"hooks"`
}

// RoleDecl declares one role definition call.
type RoleDecl struct {
	Name    string                 `yaml:"name"`
	Hosts   []string               `yaml:"hosts"`
	Options map[string]interface{} `yaml:"options"`
}

// TaskDecl declares a task whose body runs commands and transfers against
// its roles.
type TaskDecl struct {
	Name      string                 `yaml:"name"`
	Roles     []string               `yaml:"roles"`
	Dir       string                 `yaml:"dir"`
	Filter    map[string]interface{} `yaml:"filter"`
	Uploads   []TransferDecl         `yaml:"uploads"`
	Commands  []string               `yaml:"commands"`
	Downloads []TransferDecl         `yaml:"downloads"`
	Override  bool                   `yaml:"override"`
}

// TransferDecl declares one upload or download pair.
type TransferDecl struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
}

// HookDecl attaches before/after steps to a task name.
type HookDecl struct {
	Task   string     `yaml:"task"`
	Before []StepDecl `yaml:"before"`
	After  []StepDecl `yaml:"after"`
}

// StepDecl is one hook step: either a reference to another task or an
// inline command against roles. A bare string is shorthand for a task
// reference:
//
//	before:
//	  - build
//	  - run: "systemctl stop app"
//	    roles: [web]
type StepDecl struct {
	Invoke string   `yaml:"invoke"`
	Run    string   `yaml:"run"`
	Roles  []string `yaml:"roles"`
	Dir    string   `yaml:"dir"`
}

// UnmarshalYAML accepts a plain scalar as a task reference.
func (s *StepDecl) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Invoke = node.Value
		return nil
	}
	type plain StepDecl
	return node.Decode((*plain)(s))
}

// Load reads and parses the manifest at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	f := &File{Path: path}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	for _, r := range f.Roles {
		if r.Name == "" {
			return fmt.Errorf("role with no name")
		}
		if len(r.Hosts) == 0 {
			return fmt.Errorf("role %q has no hosts", r.Name)
		}
	}
	for _, t := range f.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task with no name")
		}
		if len(t.Roles) == 0 && (len(t.Commands) > 0 || len(t.Uploads) > 0 || len(t.Downloads) > 0) {
			return fmt.Errorf("task %q runs commands or transfers but names no roles", t.Name)
		}
	}
	for _, h := range f.Hooks {
		if h.Task == "" {
			return fmt.Errorf("hook with no task")
		}
		for _, s := range append(append([]StepDecl{}, h.Before...), h.After...) {
			if s.Invoke == "" && s.Run == "" {
				return fmt.Errorf("hook on %q has a step with neither invoke nor run", h.Task)
			}
			if s.Invoke != "" && s.Run != "" {
				return fmt.Errorf("hook on %q has a step with both invoke and run", h.Task)
			}
			if s.Run != "" && len(s.Roles) == 0 {
				return fmt.Errorf("hook on %q runs %q but names no roles", h.Task, s.Run)
			}
		}
	}
	return nil
}

// Apply registers the manifest's config values, roles, tasks, and hooks
// into eng. Declaration order is preserved, so redefinition and hook
// ordering semantics match a hand-written registration sequence.
func Apply(f *File, eng *engine.Engine) error {
	for k, v := range f.Config {
		eng.Config().Set(k, v)
	}

	for _, r := range f.Roles {
		if err := eng.Roles().Define(r.Name, r.Hosts, role.Attributes(r.Options)); err != nil {
			return err
		}
	}

	for _, t := range f.Tasks {
		decl := t
		origin := fmt.Sprintf("%s (task %s)", f.Path, decl.Name)
		eng.Tasks().DefineAt(decl.Name, taskBody(eng, decl), decl.Override, origin)
	}

	for _, h := range f.Hooks {
		for _, s := range h.Before {
			if s.Invoke != "" {
				eng.Tasks().BeforeTask(h.Task, s.Invoke)
			} else {
				eng.Tasks().Before(h.Task, stepBody(eng, s))
			}
		}
		for _, s := range h.After {
			if s.Invoke != "" {
				eng.Tasks().AfterTask(h.Task, s.Invoke)
			} else {
				eng.Tasks().After(h.Task, stepBody(eng, s))
			}
		}
	}
	return nil
}

// taskBody builds the executable unit for a task declaration: uploads,
// then commands, then downloads, all against the task's roles.
func taskBody(eng *engine.Engine, decl TaskDecl) func(ctx context.Context) error {
	spec := role.Spec{Roles: decl.Roles, Filter: role.Attributes(decl.Filter)}
	return func(ctx context.Context) error {
		for _, u := range decl.Uploads {
			if err := eng.Upload(ctx, spec, u.Local, u.Remote); err != nil {
				return err
			}
		}
		if len(decl.Commands) > 0 {
			if _, err := eng.Remote(ctx, spec, dispatch.Options{Dir: decl.Dir}, decl.Commands...); err != nil {
				return err
			}
		}
		for _, dl := range decl.Downloads {
			if err := eng.Download(ctx, spec, dl.Remote, dl.Local); err != nil {
				return err
			}
		}
		return nil
	}
}

func stepBody(eng *engine.Engine, s StepDecl) func(ctx context.Context) error {
	spec := role.NewSpec(s.Roles...)
	return func(ctx context.Context) error {
		_, err := eng.Remote(ctx, spec, dispatch.Options{Dir: s.Dir}, s.Run)
		return err
	}
}
