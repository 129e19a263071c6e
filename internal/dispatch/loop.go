// Package dispatch runs a worker's send pass over the shared ledger: claim,
// deliver, commit, pace, repeat. One task's failure never aborts its
// siblings; only context cancellation or a deadline stops the pass early.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/ledger"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
	"github.com/ParesquiMCSA/AutoWpp/internal/transport"
)

// ErrorReporter is the best-effort delivery-failure sink.
type ErrorReporter interface {
	ReportError(ctx context.Context, phone string, occurred time.Time)
}

// SendRecorder archives delivery attempt outcomes locally.
type SendRecorder interface {
	RecordSend(phone, worker, outcome string, at time.Time) error
}

// Pacing holds the inter-task delay tunables. The jitter is drawn uniformly
// from [JitterMin, JitterMax] on top of the base delay; it defeats
// mechanical timing patterns and is never an ordering mechanism.
type Pacing struct {
	DefaultDelay time.Duration
	JitterMin    time.Duration
	JitterMax    time.Duration
}

// Stats summarizes one dispatch pass.
type Stats struct {
	Claimable int
	Sent      int
	Failed    int
	Skipped   int
	Orphaned  int
}

// Loop dispatches a worker's claimable pending tasks in ledger order.
type Loop struct {
	store    *ledger.Store
	policy   ledger.Policy
	sender   transport.Sender
	reporter ErrorReporter
	recorder SendRecorder
	pacing   Pacing
	rnd      func() float64
}

// NewLoop wires a dispatch loop. reporter and recorder may be nil.
func NewLoop(store *ledger.Store, policy ledger.Policy, sender transport.Sender, reporter ErrorReporter, recorder SendRecorder, pacing Pacing) (*Loop, error) {
	if err := assert.Check(store != nil, "ledger store must not be nil"); err != nil {
		return nil, err
	}
	if err := assert.Check(sender != nil, "sender must not be nil"); err != nil {
		return nil, err
	}
	if err := assert.Check(pacing.JitterMin >= 0 && pacing.JitterMax >= pacing.JitterMin, "jitter range is invalid"); err != nil {
		return nil, err
	}
	return &Loop{
		store:    store,
		policy:   policy,
		sender:   sender,
		reporter: reporter,
		recorder: recorder,
		pacing:   pacing,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())).Float64,
	}, nil
}

// Run executes one full pass over the ledger. It returns early only on
// context cancellation; per-task ledger and delivery failures are absorbed
// and counted. The returned error is the context's when cancelled.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	runID := uuid.New().String()[:8]
	worker := l.store.Worker()
	var stats Stats

	snapshot, err := l.store.Read(ctx)
	if err != nil {
		return stats, err
	}

	for _, task := range snapshot {
		if l.policy.Orphaned(task) {
			stats.Orphaned++
		}
	}
	if stats.Orphaned > 0 {
		logging.Warn("ledger_orphaned_tasks", logging.Fields{
			Component: "dispatch",
			Worker:    worker,
			RunID:     runID,
			Attempt:   stats.Orphaned,
		})
	}

	logging.Info("dispatch_started", logging.Fields{
		Component: "dispatch",
		Worker:    worker,
		RunID:     runID,
	})

	// A task's delay paces the gap after it, before the next send.
	first := true
	var prevDelayMs int64
	for _, task := range snapshot {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if !l.policy.Claimable(task) {
			continue
		}
		stats.Claimable++

		if !first {
			if err := l.pace(ctx, prevDelayMs); err != nil {
				return stats, err
			}
		}
		first = false
		prevDelayMs = task.Delay

		l.dispatchOne(ctx, runID, task, &stats)
	}

	logging.Info("dispatch_finished", logging.Fields{
		Component: "dispatch",
		Worker:    worker,
		RunID:     runID,
	})
	return stats, ctx.Err()
}

// dispatchOne handles a single task end to end. All failure modes leave the
// ledger in a state the next run can act on.
func (l *Loop) dispatchOne(ctx context.Context, runID string, task models.Task, stats *Stats) {
	worker := l.store.Worker()
	fields := logging.Fields{
		Component: "dispatch",
		Worker:    worker,
		RunID:     runID,
		Phone:     task.Phone,
	}

	// Idempotent skip: the snapshot may be stale, so re-check against a
	// fresh read before doing anything irreversible.
	fresh, err := l.store.Read(ctx)
	if err != nil {
		fields.Error = err.Error()
		logging.Error("dispatch_fresh_read_failed", fields)
		stats.Skipped++
		return
	}
	unclaimed := false
	for _, ft := range fresh {
		if ft.Phone != task.Phone {
			continue
		}
		if ft.Sent {
			logging.Debug("dispatch_already_sent", fields)
			stats.Skipped++
			return
		}
		if !l.policy.Claimable(ft) {
			logging.Debug("dispatch_claim_lost", fields)
			stats.Skipped++
			return
		}
		unclaimed = ft.SentBy == ""
		break
	}

	// Claim an unowned task before sending so racing workers settle
	// ownership in the ledger, not by double-delivering. First committed
	// claim wins; a task already ours needs no claim.
	if unclaimed {
		if err := l.store.Commit(ctx, task.Phone, ledger.Mutation{Sent: false, SentAt: nil}); err != nil {
			if errors.Is(err, ledger.ErrRejected) {
				logging.Debug("dispatch_claim_lost", fields)
			} else {
				fields.Error = err.Error()
				logging.Error("dispatch_claim_failed", fields)
			}
			stats.Skipped++
			return
		}
	}

	chatID := transport.ChatID(task.Phone)
	sendErr := l.sender.Send(ctx, chatID, task.Message)
	now := time.Now()

	if sendErr != nil {
		fields.Error = sendErr.Error()
		logging.Error("dispatch_send_failed", fields)
		stats.Failed++

		// The failure record keeps sentBy so ownership stays sticky and a
		// later run by this worker may retry.
		if err := l.store.Commit(ctx, task.Phone, ledger.Mutation{Sent: false, SentAt: nil}); err != nil {
			fields.Error = err.Error()
			logging.Error("dispatch_failure_mark_failed", fields)
		}
		if l.reporter != nil {
			l.reporter.ReportError(ctx, task.Phone, now)
		}
		l.recordOutcome(task.Phone, "failed", now)
		return
	}

	if err := l.store.Commit(ctx, task.Phone, ledger.Mutation{Sent: true, SentAt: &now}); err != nil {
		// The message went out but the ledger no longer reflects it; the
		// worst case on a future run is a duplicate, which the idempotent
		// skip makes unlikely but cannot fully rule out without the commit.
		fields.Error = err.Error()
		logging.Error("dispatch_success_mark_failed", fields)
	}
	stats.Sent++
	logging.Info("dispatch_sent", logging.Fields{
		Component: "dispatch",
		Worker:    worker,
		RunID:     runID,
		Phone:     task.Phone,
	})
	l.recordOutcome(task.Phone, "sent", now)
}

func (l *Loop) recordOutcome(phone, outcome string, at time.Time) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordSend(phone, l.store.Worker(), outcome, at); err != nil {
		logging.Warn("send_archive_failed", logging.Fields{
			Component: "dispatch",
			Worker:    l.store.Worker(),
			Phone:     phone,
			Error:     err.Error(),
		})
	}
}

// pace waits out the inter-task delay: the larger of the task's own delay
// and the default, plus uniform jitter.
func (l *Loop) pace(ctx context.Context, taskDelayMs int64) error {
	base := l.pacing.DefaultDelay
	if d := time.Duration(taskDelayMs) * time.Millisecond; d > base {
		base = d
	}
	jitter := l.pacing.JitterMin + time.Duration(l.rnd()*float64(l.pacing.JitterMax-l.pacing.JitterMin))

	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
