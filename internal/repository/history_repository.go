package repository

import (
	"context"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

// HistoryRepository stores the append-only audit trail for tickets.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.HistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error)
}

type historyRepository struct {
	db Querier
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(db Querier) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by, field_changed, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, change_date`
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ChangedBy,
		entry.FieldChanged,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.ChangeDate)
}

// ListByTicket returns entries newest-first, each joined with the actor
// profile.
func (r *historyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	const query = `
        SELECT h.id, h.ticket_id, h.changed_by, h.field_changed, h.old_value, h.new_value, h.change_date,
               p.id, p.email, p.full_name, p.role, p.avatar_url
        FROM ticket_history h
        LEFT JOIN profiles p ON p.id = h.changed_by
        WHERE h.ticket_id=$1
        ORDER BY h.change_date DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.HistoryEntry
	for rows.Next() {
		var (
			entry            domain.HistoryEntry
			pID, pEmail      *string
			pName, pAvatar   *string
			pRole            *domain.Role
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ChangedBy,
			&entry.FieldChanged,
			&entry.OldValue,
			&entry.NewValue,
			&entry.ChangeDate,
			&pID, &pEmail, &pName, &pRole, &pAvatar,
		); err != nil {
			return nil, err
		}
		entry.Actor = joinedProfile(pID, pEmail, pName, pRole, pAvatar)
		result = append(result, entry)
	}
	return result, rows.Err()
}
