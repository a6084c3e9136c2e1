package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDumpFailure             = errors.New("dump failed")
	ErrUnsupportedDatabaseType = errors.New("unsupported database type")
	ErrDirectoryCreate         = errors.New("backup directory unavailable")
	ErrFileRemove              = errors.New("file removal failed")
	ErrArtifactExists          = errors.New("artifact already exists")
	ErrCycleInProgress         = errors.New("backup cycle already in progress")
)

// DumpError describes a failed dump attempt. It matches ErrDumpFailure
// under errors.Is and unwraps to the underlying cause.
type DumpError struct {
	DatabaseType string
	DatabaseName string
	Artifact     string
	TimedOut     bool
	Cause        error
}

func (e *DumpError) Error() string {
	msg := fmt.Sprintf("dump of %s database %q", e.DatabaseType, e.DatabaseName)
	if e.Artifact != "" {
		msg += fmt.Sprintf(" into %s", e.Artifact)
	}
	if e.TimedOut {
		msg += " timed out"
	} else {
		msg += " failed"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DumpError) Unwrap() error {
	return e.Cause
}

func (e *DumpError) Is(target error) bool {
	return target == ErrDumpFailure
}

// RemoveError records a stale file that could not be deleted.
type RemoveError struct {
	Name  string
	Cause error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("remove %s: %v", e.Name, e.Cause)
}

func (e *RemoveError) Unwrap() error {
	return e.Cause
}

func (e *RemoveError) Is(target error) bool {
	return target == ErrFileRemove
}
