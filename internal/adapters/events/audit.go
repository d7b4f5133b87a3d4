package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/securevault/securevault/internal/ports"
)

// HTTPAuditPublisher ships audit events to the audit collaborator as
// fire-and-forget HTTP posts. Delivery is at-most-once: the send happens on
// its own goroutine with its own deadline so the caller's request path never
// waits on the audit sink, and failures are logged rather than propagated.
type HTTPAuditPublisher struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewHTTPAuditPublisher(baseURL string, logger *slog.Logger, timeout time.Duration) *HTTPAuditPublisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPAuditPublisher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		timeout: timeout,
	}
}

func (p *HTTPAuditPublisher) Publish(_ context.Context, event ports.AuditEvent) {
	// Detach from the request context on purpose: an abandoned request must
	// not cancel its audit trail mid-flight.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Warn("audit event marshal failed", "action", event.Action, "error", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/audit/events", bytes.NewReader(payload))
		if err != nil {
			p.logger.Warn("audit event request build failed", "action", event.Action, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			p.logger.Warn("audit event send failed", "action", event.Action, "error", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			p.logger.Warn("audit event rejected", "action", event.Action, "status_code", resp.StatusCode)
		}
	}()
}

// LoggingAuditPublisher writes events to the structured log instead of a
// remote sink, for local runs and tests.
type LoggingAuditPublisher struct {
	logger *slog.Logger
}

func NewLoggingAuditPublisher(logger *slog.Logger) *LoggingAuditPublisher {
	return &LoggingAuditPublisher{logger: logger}
}

func (p *LoggingAuditPublisher) Publish(ctx context.Context, event ports.AuditEvent) {
	p.logger.InfoContext(ctx, "audit event",
		"action", event.Action,
		"status", event.Status,
		"user_id", event.UserID,
		"description", event.Description,
	)
}
