// Package models defines the persisted record types for bootleg's run history.
package models

import "time"

// RunStatus represents the final state of a deploy run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one task invocation from start to finish.
type Run struct {
	ID        string     `json:"id"`
	Task      string     `json:"task"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// CommandRecord captures one command executed on one host during a run.
type CommandRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Seq        int       `json:"seq"`
	Role       string    `json:"role"`
	Host       string    `json:"host"`
	Command    string    `json:"command"`
	ExitStatus int       `json:"exit_status"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	At         time.Time `json:"at"`
}

// TransferRecord captures one upload or download issued to one host.
type TransferRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Role      string    `json:"role"`
	Host      string    `json:"host"`
	Direction string    `json:"direction"` // "upload" or "download"
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
