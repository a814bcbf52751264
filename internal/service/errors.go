package service

import (
	"errors"
	"fmt"
)

var (
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrExamNotFound        = errors.New("exam not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionWindowClosed = errors.New("session window is not open")
)

// SyncError marks a failed authoritative timer read. Callers must treat it as
// "timer unknown", never as "time expired".
type SyncError struct {
	AttemptID uint
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("timer sync failed for attempt %d: %v", e.AttemptID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// ConflictError rejects a duplicate start or an invalid state transition.
// It is surfaced to the caller and never retried automatically.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }
