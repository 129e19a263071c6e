// Package capture turns a stream of inbound free-text replies into validated
// two-field lead records. One state machine instance serves all
// conversations of a worker; per-conversation state lives in the Registry.
package capture

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/config"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
	"github.com/ParesquiMCSA/AutoWpp/internal/transport"
)

const (
	typingDelayMin = 500 * time.Millisecond
	typingDelayMax = 1500 * time.Millisecond
)

// Sinks is the external recording surface a completed lead flows to. Both
// calls are fire-and-forget; implementations absorb their own failures.
type Sinks interface {
	ReportLead(ctx context.Context, phone, document string, ts time.Time)
	AppendRow(ctx context.Context, lead models.Lead)
}

// Archiver persists completed leads locally.
type Archiver interface {
	InsertLead(lead models.Lead, worker string) error
}

// Machine drives the lead capture flow: AwaitingDocument -> AwaitingEmail ->
// Done, with permanent blocking after too many junk inputs. Handle must only
// be called from one goroutine (the router's drain loop).
type Machine struct {
	registry *Registry
	sender   transport.Sender
	resolver transport.Resolver
	sinks    Sinks
	archiver Archiver
	replies  config.Replies
	worker   string
	limit    int
	rnd      func() float64

	typingMin time.Duration
	typingMax time.Duration
}

// NewMachine wires a capture machine. limit is the invalid-attempt threshold
// K: a conversation is blocked strictly after its counter exceeds K.
// archiver and sinks may be nil when the worker runs without them.
func NewMachine(sender transport.Sender, resolver transport.Resolver, sinks Sinks, archiver Archiver, replies config.Replies, worker string, limit int) (*Machine, error) {
	if err := assert.Check(sender != nil, "sender must not be nil"); err != nil {
		return nil, err
	}
	if err := assert.Check(resolver != nil, "resolver must not be nil"); err != nil {
		return nil, err
	}
	if err := assert.Check(limit >= 1, "invalid attempt limit must be at least 1"); err != nil {
		return nil, err
	}
	return &Machine{
		registry: NewRegistry(),
		sender:   sender,
		resolver: resolver,
		sinks:    sinks,
		archiver: archiver,
		replies:  replies,
		worker:   worker,
		limit:    limit,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())).Float64,

		typingMin: typingDelayMin,
		typingMax: typingDelayMax,
	}, nil
}

// Registry exposes the conversation registry for inspection.
func (m *Machine) Registry() *Registry {
	return m.registry
}

// Handle consumes one inbound message to completion. Every (step, blocked,
// input) combination resolves to exactly one outcome; no input is unhandled.
func (m *Machine) Handle(ctx context.Context, msg transport.Message) {
	state := m.registry.Get(msg.From)
	if state.Blocked {
		// Total silence is deliberate abuse containment.
		return
	}

	text := strings.TrimSpace(msg.Body)
	logging.Debug("inbound_message", logging.Fields{
		Component: "capture",
		Worker:    m.worker,
		Chat:      msg.From,
		Step:      state.Step.String(),
	})

	switch state.Step {
	case models.StepAwaitingDocument:
		m.handleDocument(ctx, msg.From, state, text)
	case models.StepAwaitingEmail:
		m.handleEmail(ctx, msg.From, state, text)
	case models.StepDone:
		m.handleDone(ctx, msg.From, state)
	}
}

func (m *Machine) handleDocument(ctx context.Context, chat string, state *models.ConversationState, text string) {
	doc, ok := NormalizeDocument(text)
	if !ok {
		state.InvalidAttempts++
		if state.InvalidAttempts > m.limit {
			state.Blocked = true
			logging.Warn("conversation_blocked", logging.Fields{
				Component: "capture",
				Worker:    m.worker,
				Chat:      chat,
				Step:      state.Step.String(),
				Attempt:   state.InvalidAttempts,
			})
			return
		}
		reply := m.replies.AskDocument
		if state.InvalidAttempts > 1 {
			reply = m.replies.AskDocumentAgain
		}
		m.reply(ctx, chat, reply)
		return
	}

	state.Document = doc
	state.Step = models.StepAwaitingEmail
	state.InvalidAttempts = 0
	logging.Info("document_captured", logging.Fields{
		Component: "capture",
		Worker:    m.worker,
		Chat:      chat,
	})
	m.reply(ctx, chat, m.replies.AskEmail)
}

func (m *Machine) handleEmail(ctx context.Context, chat string, state *models.ConversationState, text string) {
	if !ValidEmail(text) {
		// No attempt counter here: email retries are unbounded.
		m.reply(ctx, chat, m.replies.AskEmailAgain)
		return
	}

	// Resolve the canonical recipient before mutating any state, so a
	// resolution failure leaves the conversation fully retryable in
	// AwaitingEmail instead of half-transitioned.
	phone, err := m.resolver.ResolvePhone(ctx, chat)
	if err != nil || phone == "" {
		errText := "empty phone"
		if err != nil {
			errText = err.Error()
		}
		logging.Error("recipient_resolution_failed", logging.Fields{
			Component: "capture",
			Worker:    m.worker,
			Chat:      chat,
			Error:     errText,
		})
		return
	}

	state.Email = strings.TrimSpace(text)
	state.Step = models.StepDone

	lead := models.Lead{
		Phone:      phone,
		Document:   state.Document,
		Email:      state.Email,
		CapturedAt: time.Now(),
	}
	m.record(ctx, lead)

	logging.Info("lead_captured", logging.Fields{
		Component: "capture",
		Worker:    m.worker,
		Chat:      chat,
		Phone:     phone,
	})
	m.reply(ctx, chat, m.replies.Confirmation)
}

func (m *Machine) handleDone(ctx context.Context, chat string, state *models.ConversationState) {
	state.PostCompletionReplies++
	if state.PostCompletionReplies > m.limit {
		state.Blocked = true
		logging.Warn("conversation_blocked", logging.Fields{
			Component: "capture",
			Worker:    m.worker,
			Chat:      chat,
			Step:      state.Step.String(),
			Attempt:   state.PostCompletionReplies,
		})
		return
	}
	m.reply(ctx, chat, m.replies.AlreadyDone)
}

// record pushes the lead to the archive and the external sinks. All three
// are best-effort: the append service is at-least-once by design, and a
// failure after it succeeded must not undo the conversation.
func (m *Machine) record(ctx context.Context, lead models.Lead) {
	if m.archiver != nil {
		if err := m.archiver.InsertLead(lead, m.worker); err != nil {
			logging.Error("lead_archive_failed", logging.Fields{
				Component: "capture",
				Worker:    m.worker,
				Phone:     lead.Phone,
				Error:     err.Error(),
			})
		}
	}
	if m.sinks != nil {
		m.sinks.AppendRow(ctx, lead)
		m.sinks.ReportLead(ctx, lead.Phone, lead.Document, lead.CapturedAt)
	}
}

// reply sends one conversational response after a short randomized typing
// delay. Send failures are logged and the conversation stays in its current
// state for the next message.
func (m *Machine) reply(ctx context.Context, chat, text string) {
	delay := m.typingMin + time.Duration(m.rnd()*float64(m.typingMax-m.typingMin))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := m.sender.Send(ctx, chat, text); err != nil {
		logging.Error("reply_send_failed", logging.Fields{
			Component: "capture",
			Worker:    m.worker,
			Chat:      chat,
			Error:     err.Error(),
		})
	}
}
