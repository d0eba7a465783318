package dispatch

import "fmt"

// ExecutionError reports a command that exited non-zero on a host. It
// aborts the remaining commands and roles of the enclosing Remote call.
type ExecutionError struct {
	Role    string
	Host    string
	Command string
	Status  int
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q exited with status %d on host %s (role %s)", e.Command, e.Status, e.Host, e.Role)
}

// TransferError reports a failed upload or download. Host is empty when the
// failure is a local precondition rather than a per-host one.
type TransferError struct {
	Role      string
	Host      string
	Direction string
	Source    string
	Dest      string
	Err       error
}

func (e *TransferError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("%s %s: %v", e.Direction, e.Source, e.Err)
	}
	return fmt.Sprintf("%s %s to %s on host %s (role %s): %v", e.Direction, e.Source, e.Dest, e.Host, e.Role, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
