package domain

import "time"

// TicketComment is a message on a ticket thread. Comments inherit the
// visibility of their parent ticket; they carry no access rules of their own.
type TicketComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
