// Package local runs commands and transfers on the local machine through
// the shell. It backs tests and --local runs where no SSH access is wanted.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spinlock99/bootleg/internal/transport"
)

// Transport implements transport.Transport against the local machine. Every
// host name opens the same machine; the name is carried through for result
// labelling only.
type Transport struct{}

// New creates a local transport.
func New() *Transport {
	return &Transport{}
}

// Name returns the transport identifier.
func (t *Transport) Name() string {
	return "local"
}

// Open returns a session bound to the local machine.
func (t *Transport) Open(ctx context.Context, host string, attrs map[string]interface{}) (transport.Session, error) {
	return &session{host: host}, nil
}

type session struct {
	host string
}

// Execute runs command via `sh -c` in workingDir.
func (s *session) Execute(ctx context.Context, command, workingDir string) (*transport.ExecResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workingDir != "" {
		cmd.Dir = workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitStatus := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("exec %q on %s: %w", command, s.host, err)
		}
		exitStatus = exitErr.ExitCode()
	}

	return &transport.ExecResult{
		Command:    command,
		ExitStatus: exitStatus,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}, nil
}

// Upload copies localPath to remotePath on the local filesystem.
func (s *session) Upload(ctx context.Context, localPath, remotePath string) error {
	return copyPath(localPath, remotePath)
}

// Download copies remotePath to localPath on the local filesystem.
func (s *session) Download(ctx context.Context, remotePath, localPath string) error {
	return copyPath(remotePath, localPath)
}

func (s *session) Close() error {
	return nil
}

// copyPath copies src to dst, recursing into directories. The parent of dst
// must exist; the transferred directory itself is created.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	if err := os.Mkdir(dst, info.Mode().Perm()); err != nil && !os.IsExist(err) {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", src, err)
	}
	for _, e := range entries {
		if err := copyPath(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
