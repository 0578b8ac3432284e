package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

// AssigneeFilterKind discriminates how the assignee column is constrained.
type AssigneeFilterKind int

const (
	// AssigneeAny applies no constraint.
	AssigneeAny AssigneeFilterKind = iota
	// AssigneeEquals matches an exact assignee id.
	AssigneeEquals
	// AssigneeUnassigned matches tickets with a null assignee.
	AssigneeUnassigned
	// AssigneeAssigned matches tickets with any non-null assignee.
	AssigneeAssigned
)

// AssigneeFilter replaces the sentinel strings ("unassigned", "me") of the
// query surface with an explicit variant.
type AssigneeFilter struct {
	Kind AssigneeFilterKind
	ID   string
}

// AssigneeEq constrains to an exact assignee.
func AssigneeEq(id string) AssigneeFilter {
	return AssigneeFilter{Kind: AssigneeEquals, ID: id}
}

// Unassigned constrains to tickets without an assignee.
func Unassigned() AssigneeFilter {
	return AssigneeFilter{Kind: AssigneeUnassigned}
}

// Assigned constrains to tickets with any assignee.
func Assigned() AssigneeFilter {
	return AssigneeFilter{Kind: AssigneeAssigned}
}

// TicketFilter captures ticket search parameters. Zero-valued fields are
// omitted from the query entirely.
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedBy   *string
	Assignee    AssigneeFilter
	CategoryID  *string
	Module      *domain.TicketModule
	Search      *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ListOptions carries sort and pagination settings.
type ListOptions struct {
	SortBy   string
	SortAsc  bool
	Page     int
	PageSize int
}

const defaultPageSize = 20

// sortableColumns whitelists user-selectable sort keys.
var sortableColumns = map[string]string{
	"created_at": "t.created_at",
	"updated_at": "t.updated_at",
	"due_date":   "t.due_date",
	"priority":   "t.priority",
	"status":     "t.status",
	"title":      "t.title",
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter, opts ListOptions) ([]domain.Ticket, int64, error)

	CountCreatedBy(ctx context.Context, userID string) (int64, error)
	CountAssignedTo(ctx context.Context, userID string) (int64, error)
	CountInvolvedWithStatus(ctx context.Context, userID string, status domain.TicketStatus) (int64, error)
	CountAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int64, error)
	CountByPriority(ctx context.Context) (map[domain.TicketPriority]int64, error)
}

type ticketRepository struct {
	db Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db Querier) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketJoinedColumns = `t.id, t.title, t.description, t.status, t.priority, t.module,
    t.category_id, t.assigned_to, t.created_by, t.due_date,
    t.purchase_details, t.error_details, t.created_at, t.updated_at,
    c.id, c.name, c.color, c.icon,
    cr.id, cr.email, cr.full_name, cr.role, cr.avatar_url,
    asg.id, asg.email, asg.full_name, asg.role, asg.avatar_url,
    (SELECT COUNT(*) FROM comments cm WHERE cm.ticket_id = t.id) AS comment_count`

const ticketJoins = `tickets t
    LEFT JOIN categories c ON c.id = t.category_id
    LEFT JOIN profiles cr ON cr.id = t.created_by
    LEFT JOIN profiles asg ON asg.id = t.assigned_to`

func (f TicketFilter) conditions() squirrel.And {
	conds := squirrel.And{}
	if len(f.Statuses) > 0 {
		conds = append(conds, squirrel.Eq{"t.status": f.Statuses})
	}
	if len(f.Priorities) > 0 {
		conds = append(conds, squirrel.Eq{"t.priority": f.Priorities})
	}
	if f.CreatedBy != nil {
		conds = append(conds, squirrel.Eq{"t.created_by": *f.CreatedBy})
	}
	switch f.Assignee.Kind {
	case AssigneeEquals:
		conds = append(conds, squirrel.Eq{"t.assigned_to": f.Assignee.ID})
	case AssigneeUnassigned:
		conds = append(conds, squirrel.Eq{"t.assigned_to": nil})
	case AssigneeAssigned:
		conds = append(conds, squirrel.NotEq{"t.assigned_to": nil})
	}
	if f.CategoryID != nil {
		conds = append(conds, squirrel.Eq{"t.category_id": *f.CategoryID})
	}
	if f.Module != nil {
		conds = append(conds, squirrel.Eq{"t.module": *f.Module})
	}
	if f.Search != nil && *f.Search != "" {
		pattern := "%" + *f.Search + "%"
		conds = append(conds, squirrel.Or{
			squirrel.ILike{"t.title": pattern},
			squirrel.ILike{"t.description": pattern},
		})
	}
	if f.CreatedFrom != nil {
		conds = append(conds, squirrel.GtOrEq{"t.created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		conds = append(conds, squirrel.LtOrEq{"t.created_at": *f.CreatedTo})
	}
	return conds
}

func buildListQuery(filter TicketFilter, opts ListOptions) (string, []any, error) {
	column, ok := sortableColumns[opts.SortBy]
	if !ok {
		column = "t.created_at"
		opts.SortAsc = false
	}
	direction := "DESC"
	if opts.SortAsc {
		direction = "ASC"
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	q := builder().
		Select(ticketJoinedColumns).
		From(ticketJoins).
		OrderBy(column+" "+direction, "t.id ASC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))

	if conds := filter.conditions(); len(conds) > 0 {
		q = q.Where(conds)
	}
	return q.ToSql()
}

func buildCountQuery(filter TicketFilter) (string, []any, error) {
	q := builder().Select("COUNT(*)").From("tickets t")
	if conds := filter.conditions(); len(conds) > 0 {
		q = q.Where(conds)
	}
	return q.ToSql()
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter, opts ListOptions) ([]domain.Ticket, int64, error) {
	countSQL, countArgs, err := buildCountQuery(filter)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := buildListQuery(filter, opts)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanJoinedTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	sql, args, err := builder().
		Select(ticketJoinedColumns).
		From(ticketJoins).
		Where(squirrel.Eq{"t.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets, err := scanJoinedTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	purchase, err := json.Marshal(ticket.PurchaseDetails)
	if err != nil {
		return err
	}
	errDetails, err := json.Marshal(ticket.ErrorDetails)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO tickets (title, description, status, priority, module, category_id, assigned_to, created_by, due_date, purchase_details, error_details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Module,
		ticket.CategoryID,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.DueDate,
		purchase,
		errDetails,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	purchase, err := json.Marshal(ticket.PurchaseDetails)
	if err != nil {
		return err
	}
	errDetails, err := json.Marshal(ticket.ErrorDetails)
	if err != nil {
		return err
	}

	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, module=$5,
            category_id=$6, assigned_to=$7, due_date=$8, purchase_details=$9, error_details=$10,
            updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Module,
		ticket.CategoryID,
		ticket.AssignedTo,
		ticket.DueDate,
		purchase,
		errDetails,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) CountCreatedBy(ctx context.Context, userID string) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM tickets WHERE created_by=$1`, userID)
}

func (r *ticketRepository) CountAssignedTo(ctx context.Context, userID string) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM tickets WHERE assigned_to=$1`, userID)
}

func (r *ticketRepository) CountInvolvedWithStatus(ctx context.Context, userID string, status domain.TicketStatus) (int64, error) {
	return r.countWhere(ctx,
		`SELECT COUNT(*) FROM tickets WHERE (created_by=$1 OR assigned_to=$1) AND status=$2`,
		userID, status)
}

func (r *ticketRepository) CountAll(ctx context.Context) (int64, error) {
	return r.countWhere(ctx, `SELECT COUNT(*) FROM tickets`)
}

func (r *ticketRepository) countWhere(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int64)
	for rows.Next() {
		var status domain.TicketStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByPriority(ctx context.Context) (map[domain.TicketPriority]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketPriority]int64)
	for rows.Next() {
		var priority domain.TicketPriority
		var count int64
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		result[priority] = count
	}
	return result, rows.Err()
}

func scanJoinedTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket            domain.Ticket
			purchase          []byte
			errDetails        []byte
			catID, catName    *string
			catColor, catIcon *string
			crID, crEmail     *string
			crName, crAvatar  *string
			crRole            *domain.Role
			asID, asEmail     *string
			asName, asAvatar  *string
			asRole            *domain.Role
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Module,
			&ticket.CategoryID,
			&ticket.AssignedTo,
			&ticket.CreatedBy,
			&ticket.DueDate,
			&purchase,
			&errDetails,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&catID, &catName, &catColor, &catIcon,
			&crID, &crEmail, &crName, &crRole, &crAvatar,
			&asID, &asEmail, &asName, &asRole, &asAvatar,
			&ticket.CommentCount,
		); err != nil {
			return nil, err
		}
		if len(purchase) > 0 {
			if err := json.Unmarshal(purchase, &ticket.PurchaseDetails); err != nil {
				return nil, err
			}
		}
		if len(errDetails) > 0 {
			if err := json.Unmarshal(errDetails, &ticket.ErrorDetails); err != nil {
				return nil, err
			}
		}
		if catID != nil {
			ticket.Category = &domain.Category{
				ID:    *catID,
				Name:  deref(catName),
				Color: deref(catColor),
				Icon:  deref(catIcon),
			}
		}
		ticket.Creator = joinedProfile(crID, crEmail, crName, crRole, crAvatar)
		ticket.Assignee = joinedProfile(asID, asEmail, asName, asRole, asAvatar)
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func joinedProfile(id, email, name *string, role *domain.Role, avatar *string) *domain.Profile {
	if id == nil {
		return nil
	}
	profile := &domain.Profile{
		ID:        *id,
		Email:     deref(email),
		FullName:  deref(name),
		AvatarURL: avatar,
	}
	if role != nil {
		profile.Role = *role
	}
	return profile
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
