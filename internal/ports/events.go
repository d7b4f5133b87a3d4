package ports

import (
	"context"

	"github.com/google/uuid"
)

// AuditEvent is the envelope sent to the audit collaborator.
type AuditEvent struct {
	UserID       uuid.UUID `json:"userId"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	ResourceID   uuid.UUID `json:"resourceId"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ipAddress,omitempty"`
}

// AuditPublisher is the one-way outbound audit port. Implementations must
// never block the caller's critical path; delivery is at-most-once and
// failures are logged, not propagated.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent)
}
