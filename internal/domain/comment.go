package domain

import "time"

// Comment is an append-only entry in a ticket thread. Internal comments are
// visible to agents and admins only.
type Comment struct {
	ID         string
	TicketID   string
	UserID     string
	Content    string
	IsInternal bool
	CreatedAt  time.Time

	Author *Profile
}
