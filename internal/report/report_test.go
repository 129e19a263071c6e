package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/config"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

type capturedRequest struct {
	auth        string
	contentType string
	body        []byte
}

func newSink(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, capturedRequest{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestReportErrorPayload(t *testing.T) {
	srv, reqs := newSink(t, http.StatusOK)
	c := New(config.Reporting{ErrorURL: srv.URL, AuthToken: "tok123"})

	occurred := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	c.ReportError(context.Background(), "+5511999900001", occurred)

	if len(*reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*reqs))
	}
	req := (*reqs)[0]
	if req.auth != "Bearer tok123" {
		t.Errorf("authorization header = %q", req.auth)
	}
	if req.contentType != "application/json" {
		t.Errorf("content type = %q", req.contentType)
	}

	var payload struct {
		Data   string `json:"data"`
		ExData string `json:"exdata"`
	}
	if err := json.Unmarshal(req.body, &payload); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if payload.Data != "+5511999900001" || payload.ExData != "2026-08-31" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestReportLeadPayload(t *testing.T) {
	srv, reqs := newSink(t, http.StatusOK)
	c := New(config.Reporting{LeadURL: srv.URL})

	ts := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	c.ReportLead(context.Background(), "+5511999900001", "12345678909", ts)

	if len(*reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*reqs))
	}
	req := (*reqs)[0]
	if req.auth != "" {
		t.Errorf("no token configured, got authorization %q", req.auth)
	}

	var payload struct {
		Phone    string `json:"phone"`
		Document string `json:"document"`
		Sent     string `json:"sent_at"`
	}
	if err := json.Unmarshal(req.body, &payload); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if payload.Phone != "+5511999900001" || payload.Document != "12345678909" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.Sent != ts.Format(time.RFC3339) {
		t.Errorf("sent_at = %q", payload.Sent)
	}
}

func TestAppendRowPayload(t *testing.T) {
	srv, reqs := newSink(t, http.StatusOK)
	c := New(config.Reporting{SheetURL: srv.URL})

	lead := models.Lead{
		Phone:      "+5511999900001",
		Document:   "12345678909",
		Email:      "maria@example.com",
		CapturedAt: time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC),
	}
	c.AppendRow(context.Background(), lead)

	if len(*reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*reqs))
	}

	var payload struct {
		Row [4]string `json:"row"`
	}
	if err := json.Unmarshal((*reqs)[0].body, &payload); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	want := [4]string{"+5511999900001", "12345678909", "maria@example.com", lead.CapturedAt.Format(time.RFC3339)}
	if payload.Row != want {
		t.Errorf("row = %v, want %v", payload.Row, want)
	}
}

func TestSinkFailuresAbsorbed(t *testing.T) {
	srv, _ := newSink(t, http.StatusInternalServerError)
	c := New(config.Reporting{ErrorURL: srv.URL, LeadURL: srv.URL, SheetURL: srv.URL})

	// None of these may panic or return anything to the caller.
	c.ReportError(context.Background(), "+5511999900001", time.Now())
	c.ReportLead(context.Background(), "+5511999900001", "12345678909", time.Now())
	c.AppendRow(context.Background(), models.Lead{Phone: "+5511999900001"})
}

func TestEmptyURLDisablesSink(t *testing.T) {
	srv, reqs := newSink(t, http.StatusOK)

	// Only the lead sink points at the server; the others are disabled.
	c := New(config.Reporting{LeadURL: srv.URL})
	c.ReportError(context.Background(), "+5511999900001", time.Now())
	c.AppendRow(context.Background(), models.Lead{Phone: "+5511999900001"})

	if len(*reqs) != 0 {
		t.Errorf("disabled sinks must not issue requests, got %d", len(*reqs))
	}
}
