// Package errors provides standardized error handling for the sps daemon.
// It implements structured error types with proper wrapping and
// classification following Go 1.20+ error handling practices.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the daemon's fatal conditions: recoverable
// bootstrap failures and fatal sampler-loop runtime failures.
var (
	ErrRotationExhausted  = errors.New("output directory rotation slots exhausted")
	ErrDaemonizeFailed    = errors.New("failed to daemonize")
	ErrLogOpenFailed      = errors.New("failed to open log file")
	ErrTableOpenFailed    = errors.New("failed to open table file")
	ErrBackupRenameFailed = errors.New("failed to rename table backup")
	ErrUptimeUnavailable  = errors.New("failed to query system uptime")
	ErrCgroupUnavailable  = errors.New("failed to read own cgroup identifier")
	ErrUnknownFlag        = errors.New("unknown command-line parameter")
)

// BootstrapError represents a failure resolving job identity, output
// directory, or daemonization during startup.
type BootstrapError struct {
	Stage string // e.g. "rotate-output-dir", "open-log", "daemonize"
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// WrapBootstrapError wraps err with the bootstrap stage that produced it.
// Returns nil if err is nil.
func WrapBootstrapError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &BootstrapError{Stage: stage, Err: err}
}

// RuntimeError represents a fatal failure reached while the sampler loop
// is running: a table file could not be opened, a rename failed, or
// system info could not be queried. Per the error handling design these
// are logged to the job's own log file and the process exits with code 1.
type RuntimeError struct {
	Op  string // e.g. "rewrite-tab", "append-tab", "get-uptime"
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// WrapRuntimeError wraps err with the sampler-loop operation that
// produced it. Returns nil if err is nil.
func WrapRuntimeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Op: op, Err: err}
}

// IsBootstrapError reports whether err is (or wraps) a BootstrapError.
func IsBootstrapError(err error) bool {
	var be *BootstrapError
	return errors.As(err, &be)
}

// IsRuntimeError reports whether err is (or wraps) a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}
