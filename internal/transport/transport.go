// Package transport defines the interface for executing commands and moving
// files on a single host.
package transport

import "context"

// ExecResult holds the outcome of one command on one host.
type ExecResult struct {
	Command    string `json:"command"`
	ExitStatus int    `json:"exit_status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// Session is an open connection to a single host. Sessions are reused for
// every command of a dispatch batch and closed when the batch ends.
type Session interface {
	// Execute runs command with workingDir as its working directory and
	// returns the exit status and captured output. A non-zero exit status
	// is not an error here; err reports transport failures only.
	Execute(ctx context.Context, command, workingDir string) (*ExecResult, error)

	// Upload copies localPath (file or directory, recursively) to
	// remotePath. Parent directories of remotePath must already exist.
	Upload(ctx context.Context, localPath, remotePath string) error

	// Download copies remotePath (file or directory, recursively) to
	// localPath.
	Download(ctx context.Context, remotePath, localPath string) error

	Close() error
}

// Transport opens sessions against hosts.
type Transport interface {
	// Name returns the transport identifier.
	Name() string

	// Open connects to host. attrs carries per-host options from the role
	// definition (user, port, identity, ...).
	Open(ctx context.Context, host string, attrs map[string]interface{}) (Session, error)
}
