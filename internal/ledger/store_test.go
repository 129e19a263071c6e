package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

func writeLedger(t *testing.T, path string, tasks []models.Task) {
	t.Helper()
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		t.Fatalf("marshaling fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func readLedger(t *testing.T, path string) []models.Task {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("parsing ledger: %v", err)
	}
	return tasks
}

func TestReadReturnsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{
		{Phone: "+5511999900001", Message: "hi"},
		{Phone: "+5511999900002", Message: "oi", Sent: true, SentBy: "account_1"},
	})

	store, err := NewStore(path, "account_2")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	tasks, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Phone != "+5511999900001" || tasks[1].SentBy != "account_1" {
		t.Errorf("snapshot does not match fixture: %+v", tasks)
	}
}

func TestReadFailsAfterRetriesOnCorruptFile(t *testing.T) {
	oldSuppress := assert.SuppressLogs
	assert.SuppressLogs = true
	defer func() { assert.SuppressLogs = oldSuppress }()

	path := filepath.Join(t.TempDir(), "contacts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store, err := NewStore(path, "account_1")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	_, err = store.Read(context.Background())
	if !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestCommitClaimsUnownedTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{{Phone: "+5511999900001", Message: "hi"}})

	store, err := NewStore(path, "account_1")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	now := time.Now()
	if err := store.Commit(context.Background(), "+5511999900001", Mutation{Sent: true, SentAt: &now}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tasks := readLedger(t, path)
	if !tasks[0].Sent || tasks[0].SentBy != "account_1" || tasks[0].SentAt == nil {
		t.Fatalf("commit not applied: %+v", tasks[0])
	}
}

func TestCommitRejectedForForeignTask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{{Phone: "+5511999900001", Message: "hi", SentBy: "account_1"}})

	store, err := NewStore(path, "account_2")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	err = store.Commit(context.Background(), "+5511999900001", Mutation{Sent: true})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	// Rejection must leave the file untouched.
	tasks := readLedger(t, path)
	if tasks[0].Sent || tasks[0].SentBy != "account_1" {
		t.Fatalf("rejected commit mutated the ledger: %+v", tasks[0])
	}
}

func TestCommitTaskNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{{Phone: "+5511999900001", Message: "hi"}})

	store, err := NewStore(path, "account_1")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	err = store.Commit(context.Background(), "+5599000000000", Mutation{Sent: true})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestClaimExclusivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{{Phone: "+5511999900001", Message: "hi"}})

	storeA, err := NewStore(path, "A")
	if err != nil {
		t.Fatalf("creating store A: %v", err)
	}
	storeB, err := NewStore(path, "B")
	if err != nil {
		t.Fatalf("creating store B: %v", err)
	}

	// A's claim lands first; B's commit re-reads and must abort.
	if err := storeA.Commit(context.Background(), "+5511999900001", Mutation{}); err != nil {
		t.Fatalf("claim by A: %v", err)
	}
	err = storeB.Commit(context.Background(), "+5511999900001", Mutation{})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected B to lose the claim race, got %v", err)
	}

	tasks := readLedger(t, path)
	if tasks[0].SentBy != "A" {
		t.Fatalf("task owner should be A, got %q", tasks[0].SentBy)
	}
}

func TestCommitPreservesSiblingMutations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.json")
	writeLedger(t, path, []models.Task{
		{Phone: "+5511999900001", Message: "a"},
		{Phone: "+5511999900002", Message: "b"},
	})

	storeA, _ := NewStore(path, "A")
	storeB, _ := NewStore(path, "B")

	now := time.Now()
	if err := storeA.Commit(context.Background(), "+5511999900001", Mutation{Sent: true, SentAt: &now}); err != nil {
		t.Fatalf("commit by A: %v", err)
	}
	// B commits on a disjoint task and must not lose A's mutation, because
	// every commit re-reads the current file before writing.
	if err := storeB.Commit(context.Background(), "+5511999900002", Mutation{Sent: true, SentAt: &now}); err != nil {
		t.Fatalf("commit by B: %v", err)
	}

	tasks := readLedger(t, path)
	if !tasks[0].Sent || tasks[0].SentBy != "A" {
		t.Errorf("A's mutation lost: %+v", tasks[0])
	}
	if !tasks[1].Sent || tasks[1].SentBy != "B" {
		t.Errorf("B's mutation lost: %+v", tasks[1])
	}
}

func TestFingerprintStableAcrossKeyOrder(t *testing.T) {
	tasks := []models.Task{{Phone: "+5511999900001", Message: "hi", Delay: 30000}}

	a, err := Fingerprint(tasks)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	b, err := Fingerprint(tasks)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-char fingerprint, got %d", len(a))
	}

	changed := []models.Task{{Phone: "+5511999900001", Message: "hi", Delay: 30001}}
	c, err := Fingerprint(changed)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if c == a {
		t.Fatalf("different snapshots produced the same fingerprint")
	}
}
