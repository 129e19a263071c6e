package models

import "time"

// Task is one outbound message assignment, persisted in the shared ledger
// file. The JSON field names are the ledger's on-disk contract and are shared
// with the upstream partitioning step, so they must not change.
type Task struct {
	Phone   string     `json:"phone"`
	Message string     `json:"message"`
	Delay   int64      `json:"delay,omitempty"` // minimum pacing before the next task, in ms
	Sent    bool       `json:"sent"`
	SentBy  string     `json:"sentBy,omitempty"`
	SentAt  *time.Time `json:"sentAt"`
}

// Pending reports whether the task still needs a delivery attempt.
func (t Task) Pending() bool {
	return !t.Sent
}

// Claimed reports whether any worker owns the task.
func (t Task) Claimed() bool {
	return t.SentBy != ""
}

// Failed reports whether the task is owned but undelivered with no
// completion timestamp. Under self-assignment that combination only occurs
// after a recorded delivery failure; under pre-assignment it also matches
// tasks not yet attempted, so callers must know the ledger's claim mode.
func (t Task) Failed() bool {
	return !t.Sent && t.SentBy != "" && t.SentAt == nil
}
