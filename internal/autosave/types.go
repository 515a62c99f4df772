package autosave

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid_autosave_config")
	ErrClosed        = errors.New("autosave_closed")
	ErrConflict      = errors.New("version_conflict")
)

// Record is the editable value of an entity, keyed by field name.
type Record map[string]any

// Patch holds only the fields that changed.
type Patch map[string]any

// Snapshot pairs a value with the version the store acknowledged for it.
type Snapshot struct {
	Value   Record
	Version int64
}

type State string

const (
	StateIdle       State = "idle"
	StatePending    State = "pending"
	StateDebouncing State = "debouncing"
	StateSaving     State = "saving"
	StateConflict   State = "conflict"
	StateClosed     State = "closed"
)

type Outcome string

const (
	OutcomeSaved    Outcome = "saved"
	OutcomeConflict Outcome = "conflict"
	OutcomeFailed   Outcome = "failed"
)

// Result reports one save attempt. Version is the new version when saved
// and the store's current version on conflict.
type Result struct {
	Outcome Outcome
	Version int64
	Err     error
}

func Saved(version int64) Result {
	return Result{Outcome: OutcomeSaved, Version: version}
}

func Conflicted(current int64) Result {
	return Result{Outcome: OutcomeConflict, Version: current}
}

func Failed(err error) Result {
	if err == nil {
		err = errors.New("save failed")
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

// SaveFunc persists patch if the stored version still equals
// expectedVersion.
type SaveFunc func(ctx context.Context, patch Patch, expectedVersion int64) Result

// ConflictInfo describes a rejected save.
type ConflictInfo struct {
	ExpectedVersion int64 `json:"expected_version"`
	CurrentVersion  int64 `json:"current_version"`
}

// ConflictError is returned by Flush and Close while a conflict is unresolved.
type ConflictError struct {
	ConflictInfo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %d, current %d", e.ExpectedVersion, e.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	Key       string        `json:"key"`
	State     State         `json:"state"`
	Version   int64         `json:"version"`
	Value     Record        `json:"value"`
	Pending   Patch         `json:"pending"`
	Conflict  *ConflictInfo `json:"conflict,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}
