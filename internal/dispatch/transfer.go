package dispatch

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spinlock99/bootleg/internal/role"
)

// Upload copies localPath to remotePath on every matching host of every
// role in spec. Roles are processed sequentially; hosts within a role are
// independent and run in parallel. A failure on one host does not cancel
// transfers already dispatched to its peers, but the call fails once any
// host fails and remaining roles are not attempted.
//
// Path shape: a local directory is copied recursively with remotePath as a
// directory target. A local file keeps its name when remotePath is "." or
// ends with a separator; otherwise remotePath is the exact destination.
// Relative remote paths resolve against the role's workspace. Missing
// remote directories are not created.
func (d *Dispatcher) Upload(ctx context.Context, spec role.Spec, localPath, remotePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return &TransferError{Direction: "upload", Source: localPath, Err: err}
	}

	return d.eachRole(ctx, spec, func(ctx context.Context, ro *role.Role, hosts []role.Host) error {
		dest := uploadDest(d.roleWorkspace(ro), localPath, remotePath, info.IsDir())
		return d.fanOutTransfer(ctx, ro, hosts, "upload", localPath, dest, true, func(ctx context.Context, s sessionFor) error {
			return s.Upload(ctx, localPath, dest)
		})
	})
}

// Download copies remotePath (file or directory, recursive) from every
// matching host into localPath. localPath is treated as a directory target;
// a single missing level is created. When several hosts are downloaded into
// the same destination, the last host processed wins on name collisions.
func (d *Dispatcher) Download(ctx context.Context, spec role.Spec, remotePath, localPath string) error {
	if err := ensureLocalDir(localPath); err != nil {
		return &TransferError{Direction: "download", Source: remotePath, Dest: localPath, Err: err}
	}

	return d.eachRole(ctx, spec, func(ctx context.Context, ro *role.Role, hosts []role.Host) error {
		src := resolveRemote(d.roleWorkspace(ro), remotePath)
		dest := filepath.Join(localPath, path.Base(src))
		// Every host writes into the same destination; serialize so the
		// last host cleanly wins on collisions.
		return d.fanOutTransfer(ctx, ro, hosts, "download", src, dest, false, func(ctx context.Context, s sessionFor) error {
			return s.Download(ctx, src, dest)
		})
	})
}

type sessionFor interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
}

// eachRole resolves and filters spec's roles, calling fn once per role in
// order. The first role-level failure stops the walk.
func (d *Dispatcher) eachRole(ctx context.Context, spec role.Spec, fn func(context.Context, *role.Role, []role.Host) error) error {
	names, err := d.roles.Resolve(spec.Roles...)
	if err != nil {
		return err
	}
	for _, name := range names {
		ro, _ := d.roles.Get(name)
		hosts := role.Filter(ro.Hosts, spec.Filter)
		if len(hosts) == 0 {
			d.logger.Printf("role %s: no hosts match, skipping", name)
			continue
		}
		if err := fn(ctx, ro, hosts); err != nil {
			return err
		}
	}
	return nil
}

// fanOutTransfer issues one transfer per host and waits for all of them.
// Dispatched hosts run to completion even when a peer fails; the first
// failure (in host order) becomes the role's error.
func (d *Dispatcher) fanOutTransfer(ctx context.Context, ro *role.Role, hosts []role.Host, direction, source, dest string, parallel bool, op func(context.Context, sessionFor) error) error {
	errs := make([]error, len(hosts))

	run := func(i int) {
		sess, err := d.transport.Open(ctx, hosts[i].Name, hosts[i].Attrs)
		if err != nil {
			errs[i] = err
			return
		}
		defer sess.Close()
		errs[i] = op(ctx, sess)
	}

	if parallel {
		var wg sync.WaitGroup
		for i := range hosts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				run(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range hosts {
			run(i)
		}
	}

	for i := range hosts {
		d.recordTransfer(ro.Name, hosts[i].Name, direction, source, dest, errs[i])
	}
	for i, err := range errs {
		if err != nil {
			return &TransferError{
				Role:      ro.Name,
				Host:      hosts[i].Name,
				Direction: direction,
				Source:    source,
				Dest:      dest,
				Err:       err,
			}
		}
	}
	return nil
}

func (d *Dispatcher) roleWorkspace(ro *role.Role) string {
	if ws, ok := ro.Workspace(); ok {
		return ws
	}
	return d.config.GetString("workspace", "")
}

// uploadDest computes the exact remote destination for one upload.
func uploadDest(workspace, localPath, remotePath string, isDir bool) string {
	base := filepath.Base(localPath)
	if isDir {
		// Directories always land inside the (resolved) remote target.
		return path.Join(resolveRemote(workspace, remotePath), base)
	}
	if remotePath == "." || strings.HasSuffix(remotePath, "/") {
		return path.Join(resolveRemote(workspace, remotePath), base)
	}
	return resolveRemote(workspace, remotePath)
}

// resolveRemote resolves p against workspace. Remote paths are POSIX.
func resolveRemote(workspace, p string) string {
	switch {
	case p == "" || p == ".":
		return workspace
	case path.IsAbs(p):
		return path.Clean(p)
	default:
		return path.Join(workspace, p)
	}
}

// ensureLocalDir creates localPath if exactly one level is missing. Deeper
// missing paths surface as the mkdir error.
func ensureLocalDir(localPath string) error {
	if info, err := os.Stat(localPath); err == nil {
		if !info.IsDir() {
			return &os.PathError{Op: "mkdir", Path: localPath, Err: os.ErrExist}
		}
		return nil
	}
	return os.Mkdir(localPath, 0o755)
}
