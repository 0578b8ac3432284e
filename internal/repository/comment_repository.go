package repository

import (
	"context"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

// CommentRepository stores append-only ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
}

type commentRepository struct {
	db Querier
}

// NewCommentRepository builds repository.
func NewCommentRepository(db Querier) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (ticket_id, user_id, content, is_internal)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.TicketID,
		comment.UserID,
		comment.Content,
		comment.IsInternal,
	).Scan(&comment.ID, &comment.CreatedAt)
}

// ListByTicket returns the full thread oldest-first, each comment joined
// with its author profile.
func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT cm.id, cm.ticket_id, cm.user_id, cm.content, cm.is_internal, cm.created_at,
               p.id, p.email, p.full_name, p.role, p.avatar_url
        FROM comments cm
        LEFT JOIN profiles p ON p.id = cm.user_id
        WHERE cm.ticket_id=$1
        ORDER BY cm.created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var (
			comment          domain.Comment
			pID, pEmail      *string
			pName, pAvatar   *string
			pRole            *domain.Role
		)
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.UserID,
			&comment.Content,
			&comment.IsInternal,
			&comment.CreatedAt,
			&pID, &pEmail, &pName, &pRole, &pAvatar,
		); err != nil {
			return nil, err
		}
		comment.Author = joinedProfile(pID, pEmail, pName, pRole, pAvatar)
		result = append(result, comment)
	}
	return result, rows.Err()
}
