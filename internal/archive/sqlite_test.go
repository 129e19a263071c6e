package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "autowpp.db"))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close archive: %v", err)
		}
	})
	return db
}

func testLead(phone string, at time.Time) models.Lead {
	return models.Lead{
		Phone:      phone,
		Document:   "12345678909",
		Email:      "maria@example.com",
		CapturedAt: at,
	}
}

func TestInsertAndListLeads(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	if err := db.InsertLead(testLead("+5511999900001", base), "account_1"); err != nil {
		t.Fatalf("failed to insert lead: %v", err)
	}
	if err := db.InsertLead(testLead("+5511999900002", base.Add(time.Hour)), "account_1"); err != nil {
		t.Fatalf("failed to insert lead: %v", err)
	}

	leads, err := db.ListLeads(10)
	if err != nil {
		t.Fatalf("failed to list leads: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}
	// Most recent first
	if leads[0].Phone != "+5511999900002" || leads[1].Phone != "+5511999900001" {
		t.Errorf("wrong ordering: %+v", leads)
	}
	if !leads[1].CapturedAt.Equal(base) {
		t.Errorf("captured_at round-trip failed: %v", leads[1].CapturedAt)
	}
}

func TestInsertLeadUpsertsByPhone(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	if err := db.InsertLead(testLead("+5511999900001", base), "account_1"); err != nil {
		t.Fatalf("failed to insert lead: %v", err)
	}

	updated := testLead("+5511999900001", base.Add(time.Hour))
	updated.Email = "maria.nova@example.com"
	if err := db.InsertLead(updated, "account_2"); err != nil {
		t.Fatalf("failed to upsert lead: %v", err)
	}

	leads, err := db.ListLeads(10)
	if err != nil {
		t.Fatalf("failed to list leads: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("upsert must not create a second row, got %d", len(leads))
	}
	if leads[0].Email != "maria.nova@example.com" {
		t.Errorf("latest capture must win, got %q", leads[0].Email)
	}
}

func TestInsertLeadRejectsIncomplete(t *testing.T) {
	oldStrictMode := assert.StrictMode
	oldSuppressLogs := assert.SuppressLogs
	assert.StrictMode = false
	assert.SuppressLogs = true
	defer func() {
		assert.StrictMode = oldStrictMode
		assert.SuppressLogs = oldSuppressLogs
	}()

	db := newTestDB(t)

	incomplete := testLead("+5511999900001", time.Now())
	incomplete.Email = ""
	if err := db.InsertLead(incomplete, "account_1"); err == nil {
		t.Error("expected error for lead without email")
	}
	incomplete = testLead("", time.Now())
	if err := db.InsertLead(incomplete, "account_1"); err == nil {
		t.Error("expected error for lead without phone")
	}
}

func TestRecordSendAndStats(t *testing.T) {
	db := newTestDB(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := db.RecordSend("+5511999900001", "account_1", "sent", now); err != nil {
			t.Fatalf("failed to record send: %v", err)
		}
	}
	if err := db.RecordSend("+5511999900002", "account_1", "failed", now); err != nil {
		t.Fatalf("failed to record send: %v", err)
	}

	sent, failed, err := db.SendStats()
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if sent != 3 || failed != 1 {
		t.Errorf("stats = (%d, %d), want (3, 1)", sent, failed)
	}
}

func TestRecordSendRejectsUnknownOutcome(t *testing.T) {
	oldStrictMode := assert.StrictMode
	oldSuppressLogs := assert.SuppressLogs
	assert.StrictMode = false
	assert.SuppressLogs = true
	defer func() {
		assert.StrictMode = oldStrictMode
		assert.SuppressLogs = oldSuppressLogs
	}()

	db := newTestDB(t)
	if err := db.RecordSend("+5511999900001", "account_1", "maybe", time.Now()); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestSendStatsEmpty(t *testing.T) {
	db := newTestDB(t)
	sent, failed, err := db.SendStats()
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if sent != 0 || failed != 0 {
		t.Errorf("stats on empty archive = (%d, %d)", sent, failed)
	}
}
