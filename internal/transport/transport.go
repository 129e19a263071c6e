// Package transport defines the boundary to the external messaging system.
// The real client (session bootstrap, QR pairing, wire protocol) lives
// outside this module; the core only depends on these contracts.
package transport

import (
	"context"
	"errors"
	"strings"
)

// ErrResolutionFailure means a routing handle could not be mapped to a
// canonical phone number. Lead completion aborts and stays retryable.
var ErrResolutionFailure = errors.New("could not resolve canonical recipient")

// Message is one inbound chat event. From is the transport routing id, which
// may be a phone-derived chat id or an opaque handle such as "ABC123@lid".
type Message struct {
	From     string
	Body     string
	SelfSent bool
}

// SessionState is a transport lifecycle notification, consumed for logging
// and startup gating only.
type SessionState int

const (
	SessionReady SessionState = iota
	SessionAuthenticated
	SessionAuthFailure
	SessionDisconnected
)

func (s SessionState) String() string {
	switch s {
	case SessionReady:
		return "ready"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAuthFailure:
		return "auth_failure"
	case SessionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Sender delivers one outbound text to a chat id.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Resolver maps a transport routing handle to a canonical phone number.
// Implementations return ErrResolutionFailure (possibly wrapped) when the
// transport cannot produce one.
type Resolver interface {
	ResolvePhone(ctx context.Context, transportID string) (string, error)
}

// Client is the full capability set the worker needs from the messaging
// layer.
type Client interface {
	Sender
	Resolver
	// Sessions delivers lifecycle notifications until the client closes.
	Sessions() <-chan SessionState
	// Close releases the transport session. Safe to call once during
	// graceful shutdown.
	Close() error
}

// ChatID converts a canonical +-prefixed phone number to the transport chat
// id form: leading "+" stripped, "@c.us" suffix appended.
func ChatID(phone string) string {
	return strings.TrimPrefix(phone, "+") + "@c.us"
}
