package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ParesquiMCSA/AutoWpp/internal/assert"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
)

// Gateway is a Client backed by the local messaging bridge process, which
// owns the real session (pairing, credentials, wire protocol) and exposes a
// small HTTP surface: POST /send, GET /resolve, GET /events.
type Gateway struct {
	baseURL  string
	http     *http.Client
	poll     *http.Client
	sessions chan SessionState
	done     chan struct{}
}

type gatewayEvent struct {
	Kind     string `json:"kind"` // "message" or "session"
	From     string `json:"from,omitempty"`
	Body     string `json:"body,omitempty"`
	SelfSent bool   `json:"self_sent,omitempty"`
	State    string `json:"state,omitempty"`
}

// NewGateway creates a gateway client and starts its event poll loop,
// delivering inbound messages to onMessage and session states to the
// Sessions channel.
func NewGateway(baseURL string, onMessage func(Message)) (*Gateway, error) {
	if err := assert.Check(baseURL != "", "gateway url must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.Check(onMessage != nil, "message callback must not be nil"); err != nil {
		return nil, err
	}
	g := &Gateway{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 15 * time.Second},
		poll:     &http.Client{Timeout: 60 * time.Second},
		sessions: make(chan SessionState, 8),
		done:     make(chan struct{}),
	}
	go g.pollLoop(onMessage)
	return g, nil
}

// Send delivers one outbound text through the bridge.
func (g *Gateway) Send(ctx context.Context, chatID, text string) error {
	if err := assert.Check(chatID != "", "chat id must not be empty"); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{"chat": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("marshaling send payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway send returned %d", resp.StatusCode)
	}
	return nil
}

// ResolvePhone maps a routing handle to a canonical phone number via the
// bridge's contact lookup.
func (g *Gateway) ResolvePhone(ctx context.Context, transportID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/resolve?id="+url.QueryEscape(transportID), nil)
	if err != nil {
		return "", fmt.Errorf("building resolve request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailure, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gateway returned %d", ErrResolutionFailure, resp.StatusCode)
	}

	var out struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrResolutionFailure, err)
	}
	if out.Phone == "" {
		return "", ErrResolutionFailure
	}
	return out.Phone, nil
}

// Sessions delivers lifecycle notifications from the bridge.
func (g *Gateway) Sessions() <-chan SessionState {
	return g.sessions
}

// Close stops the poll loop. The bridge process owns the real session and
// outlives this client.
func (g *Gateway) Close() error {
	close(g.done)
	return nil
}

func (g *Gateway) pollLoop(onMessage func(Message)) {
	for {
		select {
		case <-g.done:
			return
		default:
		}

		events, err := g.fetchEvents()
		if err != nil {
			logging.Warn("gateway_poll_failed", logging.Fields{
				Component: "transport",
				Error:     err.Error(),
			})
			select {
			case <-g.done:
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, ev := range events {
			switch ev.Kind {
			case "message":
				onMessage(Message{From: ev.From, Body: ev.Body, SelfSent: ev.SelfSent})
			case "session":
				select {
				case g.sessions <- parseSessionState(ev.State):
				default:
					// Session observers are logging-only; never block on them.
				}
			}
		}
	}
}

func (g *Gateway) fetchEvents() ([]gatewayEvent, error) {
	resp, err := g.poll.Get(g.baseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("polling events: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway events returned %d", resp.StatusCode)
	}

	var events []gatewayEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}
	return events, nil
}

func parseSessionState(s string) SessionState {
	switch s {
	case "ready":
		return SessionReady
	case "authenticated":
		return SessionAuthenticated
	case "auth_failure":
		return SessionAuthFailure
	default:
		return SessionDisconnected
	}
}
