package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketModule identifies which request form produced the ticket.
type TicketModule string

const (
	TicketModuleSupport   TicketModule = "support"
	TicketModulePurchases TicketModule = "purchases"
	TicketModuleErrors    TicketModule = "errors"
	TicketModuleOther     TicketModule = "other"
)

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// ValidModule reports whether m is a known module.
func ValidModule(m TicketModule) bool {
	switch m {
	case TicketModuleSupport, TicketModulePurchases, TicketModuleErrors, TicketModuleOther:
		return true
	}
	return false
}

// PurchaseItem is one line of a purchase request.
type PurchaseItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// PurchaseDetails carries the structured payload of a purchases-module ticket.
type PurchaseDetails struct {
	Items         []PurchaseItem `json:"items,omitempty"`
	Justification string         `json:"justification,omitempty"`
}

// ErrorDetails carries the structured payload of an errors-module ticket.
type ErrorDetails struct {
	Environment string `json:"environment,omitempty"`
	Steps       string `json:"steps,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
}

// Ticket is the aggregate for help-desk requests. Relation fields
// (Category, Creator, Assignee, Comments, CommentCount) are populated by
// repository joins and may be zero on bare rows.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	Module          TicketModule
	CategoryID      *string
	AssignedTo      *string
	CreatedBy       string
	DueDate         *time.Time
	PurchaseDetails PurchaseDetails
	ErrorDetails    ErrorDetails
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Category     *Category
	Creator      *Profile
	Assignee     *Profile
	CommentCount int
	Comments     []Comment
}
