package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helpdeskpro/helpdesk-service/internal/cache"
	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	"github.com/helpdeskpro/helpdesk-service/internal/events"
	"github.com/helpdeskpro/helpdesk-service/internal/observability"
	"github.com/helpdeskpro/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskpro/helpdesk-service/pkg/util"
)

const (
	commentPreviewLimit = 50
	titleMaxLen         = 200
)

// TicketService coordinates ticket workflows: listing with filters,
// mutations with audit-trail side effects, comments, reference-data caching
// and aggregate statistics.
type TicketService struct {
	tickets    repository.TicketRepository
	categories repository.CategoryRepository
	profiles   repository.ProfileRepository
	comments   repository.CommentRepository
	history    repository.HistoryRepository
	refCache   *cache.ReferenceCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CategoryRepo repository.CategoryRepository
	ProfileRepo  repository.ProfileRepository
	CommentRepo  repository.CommentRepository
	HistoryRepo  repository.HistoryRepository
	RefCache     *cache.ReferenceCache
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		categories: deps.CategoryRepo,
		profiles:   deps.ProfileRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		refCache:   deps.RefCache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title           string
	Description     string
	Status          domain.TicketStatus
	Priority        domain.TicketPriority
	Module          domain.TicketModule
	CategoryID      *string
	AssignedTo      *string
	CreatedBy       string
	DueDate         *time.Time
	PurchaseDetails domain.PurchaseDetails
	ErrorDetails    domain.ErrorDetails
}

// TicketUpdateInput carries an update form. Nil Title/Description/Status/
// Priority/Module mean "leave unchanged"; the optional foreign keys and the
// due date are full replacements where nil means NULL.
type TicketUpdateInput struct {
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Module          *domain.TicketModule
	CategoryID      *string
	AssignedTo      *string
	DueDate         *time.Time
	PurchaseDetails *domain.PurchaseDetails
	ErrorDetails    *domain.ErrorDetails
}

// CommentInput describes a new comment.
type CommentInput struct {
	TicketID   string
	UserID     string
	Content    string
	IsInternal bool
}

// UserStats aggregates per-user ticket counts.
type UserStats struct {
	TotalCreated      int64
	TotalAssigned     int64
	OpenTickets       int64
	InProgressTickets int64
	ResolvedTickets   int64
}

// SystemStats aggregates system-wide counts.
type SystemStats struct {
	TotalUsers        int64
	TotalTickets      int64
	TicketsByStatus   map[domain.TicketStatus]int64
	TicketsByPriority map[domain.TicketPriority]int64
}

// List executes a filtered, sorted, paginated ticket query. Results carry
// category, creator, assignee and comment count; the returned total reflects
// the whole filtered set, not only the returned page.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter, opts repository.ListOptions) ([]domain.Ticket, int64, error) {
	tickets, total, err := s.tickets.List(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// GetByID fetches one ticket with relations and its full comment thread.
func (s *TicketService) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Comments = comments
	return ticket, nil
}

// Create validates, normalizes and inserts a new ticket, then appends a
// "ticket_created" history entry.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)

	details := map[string]any{}
	if title == "" {
		details["title"] = "title is required"
	}
	if utf8.RuneCountInString(title) > titleMaxLen {
		details["title"] = "title must be at most 200 characters"
	}
	if description == "" {
		details["description"] = "description is required"
	}
	if input.CreatedBy == "" {
		details["created_by"] = "creator id is required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	ticket := &domain.Ticket{
		Title:           title,
		Description:     description,
		Status:          input.Status,
		Priority:        input.Priority,
		Module:          input.Module,
		CategoryID:      normalizeRef(input.CategoryID),
		AssignedTo:      normalizeRef(input.AssignedTo),
		CreatedBy:       input.CreatedBy,
		DueDate:         input.DueDate,
		PurchaseDetails: input.PurchaseDetails,
		ErrorDetails:    input.ErrorDetails,
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Module == "" {
		ticket.Module = domain.TicketModuleSupport
	}
	if !domain.ValidStatus(ticket.Status) || !domain.ValidPriority(ticket.Priority) || !domain.ValidModule(ticket.Module) {
		return nil, apperrors.NewValidationError("invalid status, priority or module", nil)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.appendHistory(ctx, "create", &domain.HistoryEntry{
		TicketID:     ticket.ID,
		ChangedBy:    ticket.CreatedBy,
		FieldChanged: domain.HistoryTicketCreated,
		NewValue:     strPtr("ticket created"),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  ticket.CreatedBy,
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Module:   ticket.Module,
			Priority: ticket.Priority,
		},
	})

	created, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		// the write succeeded; fall back to the bare row
		return ticket, nil
	}
	return created, nil
}

// Update loads the existing ticket, applies the input, and emits one history
// entry per tracked field that changed. History failures never roll back the
// primary write.
func (s *TicketService) Update(ctx context.Context, id string, input TicketUpdateInput, actorID string) (*domain.Ticket, error) {
	if id == "" || actorID == "" {
		return nil, apperrors.NewValidationError("ticket id and actor id required", nil)
	}

	existing, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	updated := *existing
	if input.Title != nil {
		updated.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updated.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		updated.Status = *input.Status
	}
	if input.Priority != nil {
		updated.Priority = *input.Priority
	}
	if input.Module != nil {
		updated.Module = *input.Module
	}
	// optional references are full replacements: absent means NULL
	updated.CategoryID = normalizeRef(input.CategoryID)
	updated.AssignedTo = normalizeRef(input.AssignedTo)
	updated.DueDate = input.DueDate
	if input.PurchaseDetails != nil {
		updated.PurchaseDetails = *input.PurchaseDetails
	}
	if input.ErrorDetails != nil {
		updated.ErrorDetails = *input.ErrorDetails
	}

	if updated.Title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if utf8.RuneCountInString(updated.Title) > titleMaxLen {
		return nil, apperrors.NewValidationError("title must be at most 200 characters", nil)
	}
	if updated.Description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	if !domain.ValidStatus(updated.Status) || !domain.ValidPriority(updated.Priority) || !domain.ValidModule(updated.Module) {
		return nil, apperrors.NewValidationError("invalid status, priority or module", nil)
	}

	if err := s.tickets.Update(ctx, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	changes := diffTrackedFields(existing, &updated)
	for _, change := range changes {
		s.appendHistory(ctx, "update", &domain.HistoryEntry{
			TicketID:     id,
			ChangedBy:    actorID,
			FieldChanged: change.field,
			OldValue:     change.oldValue,
			NewValue:     change.newValue,
		})
	}
	if len(changes) > 0 {
		fields := make([]string, 0, len(changes))
		for _, change := range changes {
			fields = append(fields, change.field)
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: id,
			ActorID:  actorID,
			Payload:  events.TicketUpdatedPayload{ChangedFields: fields},
		})
	}

	reloaded, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return &updated, nil
	}
	return reloaded, nil
}

// Delete removes a ticket and appends a terminal history entry. Who may
// delete is decided by the HTTP layer, not here.
func (s *TicketService) Delete(ctx context.Context, id, actorID string) error {
	if id == "" || actorID == "" {
		return apperrors.NewValidationError("ticket id and actor id required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}

	if err := s.tickets.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}

	s.appendHistory(ctx, "delete", &domain.HistoryEntry{
		TicketID:     id,
		ChangedBy:    actorID,
		FieldChanged: domain.HistoryTicketDeleted,
		OldValue:     strPtr("active"),
		NewValue:     strPtr("deleted"),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: id,
		ActorID:  actorID,
		Payload:  events.TicketDeletedPayload{Title: ticket.Title},
	})
	return nil
}

// Categories serves the category collection from the reference cache.
func (s *TicketService) Categories(ctx context.Context, forceRefresh bool) ([]domain.Category, error) {
	data, err := s.refCache.Categories(ctx, forceRefresh, s.categories.ListAll)
	if err != nil {
		s.logger.Warn("category fetch failed, serving cached value", zap.Error(err))
		return data, apperrors.MapError(err)
	}
	return data, nil
}

// AssignableUsers serves the profile collection from the reference cache.
func (s *TicketService) AssignableUsers(ctx context.Context, forceRefresh bool) ([]domain.Profile, error) {
	data, err := s.refCache.Users(ctx, forceRefresh, s.profiles.ListAll)
	if err != nil {
		s.logger.Warn("user fetch failed, serving cached value", zap.Error(err))
		return data, apperrors.MapError(err)
	}
	return data, nil
}

// AddComment appends a comment to a ticket and records a history entry with
// a truncated content preview.
func (s *TicketService) AddComment(ctx context.Context, input CommentInput) (*domain.Comment, error) {
	content := strings.TrimSpace(input.Content)
	if input.TicketID == "" || input.UserID == "" || content == "" {
		return nil, apperrors.NewValidationError("ticket id, user id and content required", nil)
	}

	if _, err := s.tickets.GetByID(ctx, input.TicketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": input.TicketID})
		}
		return nil, apperrors.MapError(err)
	}

	comment := &domain.Comment{
		TicketID:   input.TicketID,
		UserID:     input.UserID,
		Content:    content,
		IsInternal: input.IsInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if author, err := s.profiles.GetByID(ctx, input.UserID); err == nil {
		comment.Author = author
	}

	s.appendHistory(ctx, "comment", &domain.HistoryEntry{
		TicketID:     input.TicketID,
		ChangedBy:    input.UserID,
		FieldChanged: domain.HistoryCommentAdded,
		NewValue:     strPtr("comment added: " + preview(content, commentPreviewLimit)),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: input.TicketID,
		ActorID:  input.UserID,
		Payload: events.CommentAddedPayload{
			CommentID:  comment.ID,
			IsInternal: comment.IsInternal,
			Preview:    preview(content, commentPreviewLimit),
		},
	})
	return comment, nil
}

// ListComments returns a ticket's thread oldest-first with authors.
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// History returns a ticket's audit trail newest-first.
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// StatsForUser computes per-user counts with independent concurrent
// queries. Any single failure fails the whole batch.
func (s *TicketService) StatsForUser(ctx context.Context, userID string) (*UserStats, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}

	var stats UserStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalCreated, err = s.tickets.CountCreatedBy(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalAssigned, err = s.tickets.CountAssignedTo(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats.OpenTickets, err = s.tickets.CountInvolvedWithStatus(gctx, userID, domain.TicketStatusOpen)
		return err
	})
	g.Go(func() (err error) {
		stats.InProgressTickets, err = s.tickets.CountInvolvedWithStatus(gctx, userID, domain.TicketStatusInProgress)
		return err
	})
	g.Go(func() (err error) {
		stats.ResolvedTickets, err = s.tickets.CountInvolvedWithStatus(gctx, userID, domain.TicketStatusResolved)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &stats, nil
}

// StatsForSystem computes system-wide counts concurrently.
func (s *TicketService) StatsForSystem(ctx context.Context) (*SystemStats, error) {
	var stats SystemStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.profiles.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalTickets, err = s.tickets.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TicketsByStatus, err = s.tickets.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TicketsByPriority, err = s.tickets.CountByPriority(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &stats, nil
}

// appendHistory writes an audit entry best-effort: failures are logged and
// counted, never surfaced to the caller.
func (s *TicketService) appendHistory(ctx context.Context, operation string, entry *domain.HistoryEntry) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history write failed",
			zap.String("operation", operation),
			zap.String("ticket_id", entry.TicketID),
			zap.String("field", entry.FieldChanged),
			zap.Error(err),
		)
		s.metrics.RecordAuditFailure(operation)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

type fieldChange struct {
	field    string
	oldValue *string
	newValue *string
}

// diffTrackedFields compares old and new values of the audited fields and
// returns one change per differing field, stringified. Absent values map to
// nil, never a textual placeholder.
func diffTrackedFields(oldTicket, newTicket *domain.Ticket) []fieldChange {
	var changes []fieldChange
	appendIfChanged := func(field string, oldVal, newVal *string) {
		if !equalStrPtr(oldVal, newVal) {
			changes = append(changes, fieldChange{field: field, oldValue: oldVal, newValue: newVal})
		}
	}

	appendIfChanged("status", strPtr(string(oldTicket.Status)), strPtr(string(newTicket.Status)))
	appendIfChanged("priority", strPtr(string(oldTicket.Priority)), strPtr(string(newTicket.Priority)))
	appendIfChanged("assigned_to", oldTicket.AssignedTo, newTicket.AssignedTo)
	appendIfChanged("category_id", oldTicket.CategoryID, newTicket.CategoryID)
	appendIfChanged("due_date", timeToStr(oldTicket.DueDate), timeToStr(newTicket.DueDate))
	appendIfChanged("title", strPtr(oldTicket.Title), strPtr(newTicket.Title))
	appendIfChanged("description", strPtr(oldTicket.Description), strPtr(newTicket.Description))
	return changes
}

// normalizeRef maps empty strings to nil so unset foreign keys become NULL.
func normalizeRef(ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}
	return ref
}

func strPtr(s string) *string {
	return &s
}

func timeToStr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.UTC().Format(time.RFC3339))
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func preview(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
