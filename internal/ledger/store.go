// Package ledger implements the shared task ledger: a JSON file holding every
// outbound assignment, mutated by concurrent worker processes with no lock
// server. Safety comes from two things only: commits publish through a
// write-temp-then-rename, so readers never observe a torn file, and every
// commit re-reads the current snapshot and re-checks ownership before
// writing, so a losing racer aborts instead of merging.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ucarion/jcs"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

const (
	readAttempts   = 3
	commitAttempts = 5
	retryBase      = 100 * time.Millisecond
	retryJitterMax = 250 * time.Millisecond
)

// Mutation describes the completion-state change a commit applies to one
// task. SentBy is always stamped with the committing worker; a commit
// against an unclaimed task is thereby a claim.
type Mutation struct {
	Sent   bool
	SentAt *time.Time
}

// Store provides read and commit access to one ledger file on behalf of one
// worker identity.
type Store struct {
	path   string
	worker string
	rnd    func() float64
}

// NewStore creates a store for the ledger file at path, acting as worker.
func NewStore(path, worker string) (*Store, error) {
	if err := assert.Check(path != "", "ledger path must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.Check(worker != "", "worker identity must not be empty"); err != nil {
		return nil, err
	}
	return &Store{
		path:   path,
		worker: worker,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())).Float64,
	}, nil
}

// Worker returns the identity this store commits as.
func (s *Store) Worker() string {
	return s.worker
}

// Read loads the full current snapshot. A transient failure (a concurrent
// writer mid-publish, a parse error from a half-reloaded editor) is retried
// a bounded number of times with a linearly increasing delay before the read
// fails with ErrLedgerUnavailable.
func (s *Store) Read(ctx context.Context) ([]models.Task, error) {
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		tasks, err := s.readOnce()
		if err == nil {
			return tasks, nil
		}
		lastErr = err
		logging.Warn("ledger_read_retry", logging.Fields{
			Component: "ledger",
			Worker:    s.worker,
			Attempt:   attempt,
			Error:     err.Error(),
		})
		if attempt < readAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*retryBase); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: read failed after %d attempts: %v", ErrLedgerUnavailable, readAttempts, lastErr)
}

func (s *Store) readOnce() ([]models.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger file: %w", err)
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parsing ledger file: %w", err)
	}
	return tasks, nil
}

// Commit applies a mutation to the task identified by phone using the full
// optimistic read-modify-write cycle: re-read the snapshot, verify this
// worker may mutate the task, apply, write to a temporary path, rename over
// the canonical path.
//
// ErrRejected is returned without retrying when the task belongs to another
// worker; that is the normal losing side of a claim race. I/O and parse
// errors are retried up to the commit bound with jittered, linearly
// increasing backoff; exhaustion returns ErrLedgerUnavailable and the caller
// must assume the mutation did not happen.
func (s *Store) Commit(ctx context.Context, phone string, m Mutation) error {
	if err := assert.Check(phone != "", "phone must not be empty"); err != nil {
		return err
	}

	attemptID := uuid.New().String()[:8]
	var lastErr error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err := s.commitOnce(phone, m)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrTaskNotFound) {
			return err
		}
		lastErr = err
		logging.Warn("ledger_commit_retry", logging.Fields{
			Component: "ledger",
			Worker:    s.worker,
			Phone:     phone,
			RunID:     attemptID,
			Attempt:   attempt,
			Error:     err.Error(),
		})
		if attempt < commitAttempts {
			backoff := time.Duration(attempt)*retryBase + time.Duration(s.rnd()*float64(retryJitterMax))
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: commit for %s failed after %d attempts: %v", ErrLedgerUnavailable, phone, commitAttempts, lastErr)
}

func (s *Store) commitOnce(phone string, m Mutation) error {
	tasks, err := s.readOnce()
	if err != nil {
		return err
	}

	idx := -1
	for i := range tasks {
		if tasks[i].Phone == phone {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, phone)
	}

	// Entitlement: an unclaimed task may be claimed by anyone; a claimed
	// task may only be mutated by its owner. Assignment is sticky once made.
	if tasks[idx].SentBy != "" && tasks[idx].SentBy != s.worker {
		return fmt.Errorf("%w: %s is owned by %s", ErrRejected, phone, tasks[idx].SentBy)
	}

	tasks[idx].Sent = m.Sent
	tasks[idx].SentAt = m.SentAt
	tasks[idx].SentBy = s.worker

	if err := s.publish(tasks); err != nil {
		return err
	}

	fp, fpErr := Fingerprint(tasks)
	if fpErr != nil {
		fp = "unavailable"
	}
	logging.Debug("ledger_commit_published", logging.Fields{
		Component:   "ledger",
		Worker:      s.worker,
		Phone:       phone,
		Fingerprint: fp,
	})
	return nil
}

// publish writes the snapshot to a temp file next to the ledger and renames
// it over the canonical path. Rename is atomic on POSIX filesystems, so a
// crash between write and rename leaves the prior committed state intact.
func (s *Store) publish(tasks []models.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp ledger file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publishing ledger file: %w", err)
	}
	return nil
}

// Fingerprint returns a short stable digest of a snapshot, computed over its
// RFC 8785 canonical JSON form. It exists so concurrent writers are
// traceable in logs; it is never a correctness mechanism.
func Fingerprint(tasks []models.Task) (string, error) {
	jsonBytes, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	var normalized interface{}
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		return "", fmt.Errorf("normalizing snapshot: %w", err)
	}
	canonical, err := jcs.Format(normalized)
	if err != nil {
		return "", fmt.Errorf("canonicalizing snapshot: %w", err)
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16], nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
