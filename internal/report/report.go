// Package report implements the fire-and-forget telemetry sinks: the error
// report endpoint, the lead report endpoint, and the tabular append service.
// Every failure here is absorbed and logged; none of these calls may affect
// dispatch or conversation outcomes.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/config"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/models"
)

// Client posts to the configured sinks. A sink with an empty URL is
// disabled and skipped silently.
type Client struct {
	http *http.Client
	cfg  config.Reporting
}

// New creates a sink client from the reporting config.
func New(cfg config.Reporting) *Client {
	return &Client{
		http: &http.Client{Timeout: 5 * time.Second},
		cfg:  cfg,
	}
}

type errorPayload struct {
	Data   string `json:"data"`
	ExData string `json:"exdata"`
}

type leadPayload struct {
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Sent     string `json:"sent_at"`
}

type appendPayload struct {
	Row [4]string `json:"row"`
}

// ReportError notifies the error sink that delivery to phone failed on the
// given date. Single attempt, failure logged only.
func (c *Client) ReportError(ctx context.Context, phone string, occurred time.Time) {
	if c.cfg.ErrorURL == "" {
		return
	}
	payload := errorPayload{
		Data:   phone,
		ExData: occurred.Format("2006-01-02"),
	}
	if err := c.post(ctx, c.cfg.ErrorURL, payload); err != nil {
		logging.Warn("error_report_failed", logging.Fields{
			Component: "report",
			Phone:     phone,
			Error:     err.Error(),
		})
		return
	}
	logging.Info("error_reported", logging.Fields{Component: "report", Phone: phone})
}

// ReportLead notifies the success sink that a lead completed for phone.
// Single attempt, failure logged only.
func (c *Client) ReportLead(ctx context.Context, phone, document string, ts time.Time) {
	if c.cfg.LeadURL == "" {
		return
	}
	payload := leadPayload{
		Phone:    phone,
		Document: document,
		Sent:     ts.Format(time.RFC3339),
	}
	if err := c.post(ctx, c.cfg.LeadURL, payload); err != nil {
		logging.Warn("lead_report_failed", logging.Fields{
			Component: "report",
			Phone:     phone,
			Error:     err.Error(),
		})
		return
	}
	logging.Info("lead_reported", logging.Fields{Component: "report", Phone: phone})
}

// AppendRow appends the captured lead to the external tabular store as
// [phone, document, email, timestamp]. Single attempt, failure logged only.
func (c *Client) AppendRow(ctx context.Context, lead models.Lead) {
	if c.cfg.SheetURL == "" {
		return
	}
	payload := appendPayload{
		Row: [4]string{lead.Phone, lead.Document, lead.Email, lead.CapturedAt.Format(time.RFC3339)},
	}
	if err := c.post(ctx, c.cfg.SheetURL, payload); err != nil {
		logging.Warn("sheet_append_failed", logging.Fields{
			Component: "report",
			Phone:     lead.Phone,
			Error:     err.Error(),
		})
		return
	}
	logging.Info("sheet_appended", logging.Fields{Component: "report", Phone: lead.Phone})
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("report endpoint returned %d", resp.StatusCode)
	}
	return nil
}
