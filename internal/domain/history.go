package domain

import "time"

// History field markers for lifecycle events that are not field diffs.
const (
	HistoryTicketCreated = "ticket_created"
	HistoryTicketDeleted = "ticket_deleted"
	HistoryCommentAdded  = "comment_added"
)

// TrackedFields are the ticket fields whose mutations produce exactly one
// history entry each, capturing before/after string representations.
var TrackedFields = []string{
	"status", "priority", "assigned_to", "category_id",
	"due_date", "title", "description",
}

// HistoryEntry is an immutable audit trail record. OldValue and NewValue are
// nil when the corresponding value was absent, never the literal "undefined".
type HistoryEntry struct {
	ID           string
	TicketID     string
	ChangedBy    string
	FieldChanged string
	OldValue     *string
	NewValue     *string
	ChangeDate   time.Time

	Actor *Profile
}
