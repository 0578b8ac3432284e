package dto

import (
	"time"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

// CreateTicketRequest is the ticket creation payload. Status, priority and
// module default server-side when omitted.
type CreateTicketRequest struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Status          domain.TicketStatus    `json:"status"`
	Priority        domain.TicketPriority  `json:"priority"`
	Module          domain.TicketModule    `json:"module"`
	CategoryID      *string                `json:"category_id"`
	AssignedTo      *string                `json:"assigned_to"`
	DueDate         *time.Time             `json:"due_date"`
	PurchaseDetails domain.PurchaseDetails `json:"purchase_details"`
	ErrorDetails    domain.ErrorDetails    `json:"error_details"`
}

// UpdateTicketRequest carries a ticket edit form. Nil scalar fields are
// unchanged; the optional references replace their column, nil meaning NULL.
type UpdateTicketRequest struct {
	Title           *string                 `json:"title"`
	Description     *string                 `json:"description"`
	Status          *domain.TicketStatus    `json:"status"`
	Priority        *domain.TicketPriority  `json:"priority"`
	Module          *domain.TicketModule    `json:"module"`
	CategoryID      *string                 `json:"category_id"`
	AssignedTo      *string                 `json:"assigned_to"`
	DueDate         *time.Time              `json:"due_date"`
	PurchaseDetails *domain.PurchaseDetails `json:"purchase_details"`
	ErrorDetails    *domain.ErrorDetails    `json:"error_details"`
}

// CategoryResponse is the public shape of a category.
type CategoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// TicketSummary is the list-view shape of a ticket.
type TicketSummary struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Module       domain.TicketModule   `json:"module"`
	Category     *CategoryResponse     `json:"category,omitempty"`
	Creator      *ProfileResponse      `json:"creator,omitempty"`
	Assignee     *ProfileResponse      `json:"assignee,omitempty"`
	CommentCount int                   `json:"comment_count"`
	DueDate      *time.Time            `json:"due_date,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse is the full shape of a ticket.
type TicketDetailResponse struct {
	TicketSummary
	Description     string                 `json:"description"`
	PurchaseDetails domain.PurchaseDetails `json:"purchase_details"`
	ErrorDetails    domain.ErrorDetails    `json:"error_details"`
	Comments        []CommentResponse      `json:"comments"`
}

// TicketListResponse wraps a page of results with the filtered total.
type TicketListResponse struct {
	Items      []TicketSummary `json:"items"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// CreateCommentRequest is the comment payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// CommentResponse is the public shape of a comment.
type CommentResponse struct {
	ID         string           `json:"id"`
	TicketID   string           `json:"ticket_id"`
	Content    string           `json:"content"`
	IsInternal bool             `json:"is_internal"`
	Author     *ProfileResponse `json:"author,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID           string           `json:"id"`
	FieldChanged string           `json:"field_changed"`
	OldValue     *string          `json:"old_value"`
	NewValue     *string          `json:"new_value"`
	Actor        *ProfileResponse `json:"actor,omitempty"`
	ChangeDate   time.Time        `json:"change_date"`
}

// UserStatsResponse aggregates per-user counts.
type UserStatsResponse struct {
	TotalCreated      int64 `json:"total_created"`
	TotalAssigned     int64 `json:"total_assigned"`
	OpenTickets       int64 `json:"open_tickets"`
	InProgressTickets int64 `json:"in_progress_tickets"`
	ResolvedTickets   int64 `json:"resolved_tickets"`
}

// SystemStatsResponse aggregates system-wide counts.
type SystemStatsResponse struct {
	TotalUsers        int64            `json:"total_users"`
	TotalTickets      int64            `json:"total_tickets"`
	TicketsByStatus   map[string]int64 `json:"tickets_by_status"`
	TicketsByPriority map[string]int64 `json:"tickets_by_priority"`
}
