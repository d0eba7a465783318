// Package engine wires the registries, config store, and dispatchers into a
// single context value threaded through a deploy run. Nothing here is a
// process-wide singleton: independent engines can coexist in one process.
package engine

import (
	"context"
	"log"

	"github.com/spinlock99/bootleg/internal/config"
	"github.com/spinlock99/bootleg/internal/dispatch"
	"github.com/spinlock99/bootleg/internal/role"
	"github.com/spinlock99/bootleg/internal/store"
	"github.com/spinlock99/bootleg/internal/task"
	"github.com/spinlock99/bootleg/internal/transport"
)

// Options configure a new Engine.
type Options struct {
	// Transport executes commands and transfers on hosts. Required.
	Transport transport.Transport
	// Config is the key/value store; a fresh one is created when nil.
	Config *config.Store
	// History records runs and per-host results. Optional.
	History *store.Store
	// Recorders observe per-host results in addition to History.
	Recorders []dispatch.Recorder
	// Logger receives warnings and progress; defaults to log.Default().
	Logger *log.Logger
}

// Engine owns one deploy run's registries and dispatchers.
type Engine struct {
	roles      *role.Registry
	tasks      *task.Registry
	invoker    *task.Invoker
	config     *config.Store
	dispatcher *dispatch.Dispatcher
	history    *store.Store
	logger     *log.Logger
}

// New assembles an engine from opts.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}

	roles := role.NewRegistry()
	tasks := task.NewRegistry(logger)

	recorders := opts.Recorders
	if opts.History != nil {
		recorders = append([]dispatch.Recorder{opts.History}, recorders...)
	}
	d := dispatch.New(roles, opts.Transport, cfg, recorders...)
	d.SetLogger(logger)

	return &Engine{
		roles:      roles,
		tasks:      tasks,
		invoker:    task.NewInvoker(tasks),
		config:     cfg,
		dispatcher: d,
		history:    opts.History,
		logger:     logger,
	}
}

// Roles exposes the role registry for definition calls.
func (e *Engine) Roles() *role.Registry { return e.roles }

// Tasks exposes the task and hook registry for definition calls.
func (e *Engine) Tasks() *task.Registry { return e.tasks }

// Config exposes the key/value store.
func (e *Engine) Config() *config.Store { return e.config }

// History exposes the run-history store, nil when history is disabled.
func (e *Engine) History() *store.Store { return e.history }

// Invoke runs the named task with its hooks. When history is enabled the
// whole invocation is recorded as one run; history failures are logged and
// never affect the outcome.
func (e *Engine) Invoke(ctx context.Context, name string) (err error) {
	if e.history != nil {
		run, herr := e.history.BeginRun(name)
		if herr != nil {
			e.logger.Printf("history: begin run: %v", herr)
		} else {
			defer func() {
				if ferr := e.history.FinishRun(run.ID, err); ferr != nil {
					e.logger.Printf("history: finish run: %v", ferr)
				}
			}()
		}
	}
	err = e.invoker.Invoke(ctx, name)
	return err
}

// Remote dispatches commands through the engine's dispatcher.
func (e *Engine) Remote(ctx context.Context, spec role.Spec, opts dispatch.Options, commands ...string) (*dispatch.Result, error) {
	return e.dispatcher.Remote(ctx, spec, opts, commands...)
}

// Upload dispatches an upload through the engine's dispatcher.
func (e *Engine) Upload(ctx context.Context, spec role.Spec, localPath, remotePath string) error {
	return e.dispatcher.Upload(ctx, spec, localPath, remotePath)
}

// Download dispatches a download through the engine's dispatcher.
func (e *Engine) Download(ctx context.Context, spec role.Spec, remotePath, localPath string) error {
	return e.dispatcher.Download(ctx, spec, remotePath, localPath)
}
