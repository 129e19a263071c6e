package models

import "time"

// Step identifies which field the lead capture flow is waiting for. It is a
// closed set; every switch over Step must handle all three values so adding
// a step cannot silently fall through.
type Step int

const (
	// StepAwaitingDocument is the initial step, waiting for a document number.
	StepAwaitingDocument Step = iota
	// StepAwaitingEmail waits for an email address.
	StepAwaitingEmail
	// StepDone is terminal; further input is counted but never captured.
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepAwaitingDocument:
		return "awaiting_document"
	case StepAwaitingEmail:
		return "awaiting_email"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// ConversationState tracks one sender's progress through the lead capture
// flow. It lives in memory only, owned by the worker process that received
// the first message from that sender.
type ConversationState struct {
	Step                  Step
	Document              string
	Email                 string
	InvalidAttempts       int
	PostCompletionReplies int
	Blocked               bool
}

// Lead is the completed two-field record produced by a finished
// conversation, keyed by the resolved canonical phone number.
type Lead struct {
	Phone      string
	Document   string
	Email      string
	CapturedAt time.Time
}
