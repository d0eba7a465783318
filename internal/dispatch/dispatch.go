// Package dispatch resolves roles to host sets and fans commands and file
// transfers out to them. Roles are processed one at a time; within a role,
// commands run in lock-step across all matching hosts.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"path"
	"sync"

	"github.com/spinlock99/bootleg/internal/config"
	"github.com/spinlock99/bootleg/internal/role"
	"github.com/spinlock99/bootleg/internal/transport"
)

// Recorder observes per-host results as they are collected. Recorder
// failures are logged, never propagated: history must not fail a deploy.
type Recorder interface {
	RecordCommand(roleName, host, command string, exitStatus int, stdout, stderr string) error
	RecordTransfer(roleName, host, direction, source, dest string, terr error) error
}

// Options adjust a single Remote call.
type Options struct {
	// Dir is the working directory for every command. A relative path
	// resolves against the role's workspace.
	Dir string
	// Filter narrows each role's hosts by attribute equality, on top of
	// any inline filter the role spec carries.
	Filter role.Attributes
}

// Dispatcher executes commands and transfers against role host sets.
type Dispatcher struct {
	roles     *role.Registry
	transport transport.Transport
	config    *config.Store
	recorders []Recorder
	logger    *log.Logger
}

// New creates a dispatcher. recorders may be empty.
func New(roles *role.Registry, tr transport.Transport, cfg *config.Store, recorders ...Recorder) *Dispatcher {
	return &Dispatcher{
		roles:     roles,
		transport: tr,
		config:    cfg,
		recorders: recorders,
		logger:    log.Default(),
	}
}

// SetLogger replaces the dispatcher's logger.
func (d *Dispatcher) SetLogger(l *log.Logger) {
	if l != nil {
		d.logger = l
	}
}

// Remote runs commands against every role in spec, one role at a time.
// Within a role each command is dispatched to all matching hosts in
// parallel, and every host must finish it before the next command starts.
// The first non-zero exit aborts the remaining commands and roles; results
// collected up to that point are returned alongside the error. A role whose
// filter matches no hosts yields an empty role result, not an error.
func (d *Dispatcher) Remote(ctx context.Context, spec role.Spec, opts Options, commands ...string) (*Result, error) {
	names, err := d.roles.Resolve(spec.Roles...)
	if err != nil {
		return nil, err
	}

	filter := mergeFilters(spec.Filter, opts.Filter)

	res := &Result{}
	for _, name := range names {
		ro, _ := d.roles.Get(name)
		hosts := role.Filter(ro.Hosts, filter)

		rr := RoleResult{Role: name, Hosts: hostNames(hosts)}
		err := d.runRole(ctx, ro, hosts, d.workDir(ro, opts.Dir), commands, &rr)
		res.Roles = append(res.Roles, rr)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// runRole opens one session per host, then walks commands in order, fanning
// each out to every host and waiting for the whole batch before moving on.
func (d *Dispatcher) runRole(ctx context.Context, ro *role.Role, hosts []role.Host, workDir string, commands []string, rr *RoleResult) error {
	if len(hosts) == 0 {
		d.logger.Printf("role %s: no hosts match, skipping", ro.Name)
		return nil
	}

	sessions := make([]transport.Session, len(hosts))
	defer func() {
		for _, s := range sessions {
			if s != nil {
				s.Close()
			}
		}
	}()
	for i, h := range hosts {
		s, err := d.transport.Open(ctx, h.Name, h.Attrs)
		if err != nil {
			return fmt.Errorf("open session to %s (role %s): %w", h.Name, ro.Name, err)
		}
		sessions[i] = s
	}

	for _, command := range commands {
		cr := CommandResult{Command: command, Hosts: make([]HostResult, len(hosts))}
		errs := make([]error, len(hosts))

		var wg sync.WaitGroup
		for i := range hosts {
			cr.Hosts[i].Host = hosts[i].Name
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out, err := sessions[i].Execute(ctx, command, workDir)
				if err != nil {
					errs[i] = err
					return
				}
				cr.Hosts[i].ExitStatus = out.ExitStatus
				cr.Hosts[i].Stdout = out.Stdout
				cr.Hosts[i].Stderr = out.Stderr
			}(i)
		}
		wg.Wait()

		rr.Commands = append(rr.Commands, cr)
		for _, hr := range cr.Hosts {
			d.recordCommand(ro.Name, hr.Host, command, hr.ExitStatus, hr.Stdout, hr.Stderr)
		}

		for i, err := range errs {
			if err != nil {
				return fmt.Errorf("execute %q on %s (role %s): %w", command, hosts[i].Name, ro.Name, err)
			}
		}
		for _, hr := range cr.Hosts {
			if hr.ExitStatus != 0 {
				return &ExecutionError{Role: ro.Name, Host: hr.Host, Command: command, Status: hr.ExitStatus}
			}
		}
	}
	return nil
}

// workDir resolves dir against the role's workspace. An absolute dir is
// used as-is; an empty dir falls back to the workspace itself.
func (d *Dispatcher) workDir(ro *role.Role, dir string) string {
	ws, ok := ro.Workspace()
	if !ok {
		ws = d.config.GetString("workspace", "")
	}
	switch {
	case dir == "":
		return ws
	case path.IsAbs(dir):
		return dir
	default:
		return path.Join(ws, dir)
	}
}

func (d *Dispatcher) recordCommand(roleName, host, command string, status int, stdout, stderr string) {
	for _, rec := range d.recorders {
		if err := rec.RecordCommand(roleName, host, command, status, stdout, stderr); err != nil {
			d.logger.Printf("recorder: command result for %s: %v", host, err)
		}
	}
}

func (d *Dispatcher) recordTransfer(roleName, host, direction, source, dest string, terr error) {
	for _, rec := range d.recorders {
		if err := rec.RecordTransfer(roleName, host, direction, source, dest, terr); err != nil {
			d.logger.Printf("recorder: transfer for %s: %v", host, err)
		}
	}
}

func mergeFilters(inline, opts role.Attributes) role.Attributes {
	if len(inline) == 0 {
		return opts
	}
	if len(opts) == 0 {
		return inline
	}
	merged := role.Attributes{}
	for k, v := range inline {
		merged[k] = v
	}
	for k, v := range opts {
		merged[k] = v
	}
	return merged
}

func hostNames(hosts []role.Host) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.Name
	}
	return out
}
