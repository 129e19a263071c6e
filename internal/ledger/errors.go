package ledger

import "errors"

var (
	// ErrLedgerUnavailable means a read or commit could not complete after
	// retry exhaustion. The caller must treat the task as still pending.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrRejected means the entitlement check failed: the task is owned by a
	// different worker. This is the expected losing side of a claim race,
	// not a fault.
	ErrRejected = errors.New("commit rejected: task owned by another worker")

	// ErrTaskNotFound means the phone has no entry in the current snapshot.
	ErrTaskNotFound = errors.New("task not found in ledger")
)
