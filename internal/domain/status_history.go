package domain

import "time"

// StatusHistoryEntry is an immutable audit record written once per
// successful, non-idempotent status change. Entries are never updated or
// deleted and are listed in ascending creation order.
type StatusHistoryEntry struct {
	ID             string
	TicketID       string
	PreviousStatus TicketStatus
	NewStatus      TicketStatus
	ChangedBy      string
	CreatedAt      time.Time
}
