package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
)

// Assign partitions the ledger's unassigned pending tasks across the given
// worker identities, round-robin in ledger order, and publishes the rewritten
// snapshot atomically. It is the upstream step that turns a self-assign
// ledger into a pre-assigned one, so it runs before any worker starts;
// already-owned or already-sent tasks are left untouched.
func (s *Store) Assign(ctx context.Context, workers []string) (int, error) {
	if err := assert.Check(len(workers) > 0, "worker list must not be empty"); err != nil {
		return 0, err
	}
	for _, w := range workers {
		if err := assert.Check(w != "", "worker identity must not be empty"); err != nil {
			return 0, err
		}
	}

	tasks, err := s.Read(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for i := range tasks {
		if tasks[i].Sent || tasks[i].SentBy != "" {
			continue
		}
		tasks[i].SentBy = workers[assigned%len(workers)]
		assigned++
	}
	if assigned == 0 {
		return 0, nil
	}

	if err := s.publish(tasks); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	logging.Info("ledger_assigned", logging.Fields{
		Component: "ledger",
		Worker:    s.worker,
		Attempt:   assigned,
	})
	return assigned, nil
}

// NormalizePhoneBR reduces a free-form Brazilian phone value to the canonical
// +55DDDNNNNNNNNN ledger form, the same normalization the partitioning step
// applies when building a ledger from raw exports.
func NormalizePhoneBR(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if d == "" {
		return "+55"
	}
	if strings.HasPrefix(d, "55") {
		return "+" + d
	}
	return "+55" + d
}
