package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskpro/helpdesk-service/internal/api/dto"
	"github.com/helpdeskpro/helpdesk-service/internal/auth"
	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	"github.com/helpdeskpro/helpdesk-service/internal/repository"
	"github.com/helpdeskpro/helpdesk-service/internal/service"
)

// TicketsHandler exposes the ticket CRUD, comment and history endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// List handles GET /tickets. The assignee and created_by parameters accept
// "me" for the caller's own id and assignee additionally accepts
// "unassigned" and "assigned".
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	filter, err := parseTicketFilter(c, principal)
	if err != nil {
		return err
	}
	opts := parseListOptions(c)

	tickets, total, err := h.tickets.List(c.UserContext(), filter, opts)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:      items,
		TotalCount: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
	}})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	ticket, err := h.tickets.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, principal.IsAgent())})
}

// Create handles POST /tickets. The creator is always the caller.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Create(c.UserContext(), service.TicketCreateInput{
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		Module:          req.Module,
		CategoryID:      req.CategoryID,
		AssignedTo:      req.AssignedTo,
		CreatedBy:       principal.Profile.ID,
		DueDate:         req.DueDate,
		PurchaseDetails: req.PurchaseDetails,
		ErrorDetails:    req.ErrorDetails,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket, principal.IsAgent())})
}

// Update handles PUT /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	ticket, err := h.tickets.Update(c.UserContext(), c.Params("id"), service.TicketUpdateInput{
		Title:           req.Title,
		Description:     req.Description,
		Status:          req.Status,
		Priority:        req.Priority,
		Module:          req.Module,
		CategoryID:      req.CategoryID,
		AssignedTo:      req.AssignedTo,
		DueDate:         req.DueDate,
		PurchaseDetails: req.PurchaseDetails,
		ErrorDetails:    req.ErrorDetails,
	}, principal.Profile.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, principal.IsAgent())})
}

// Delete handles DELETE /tickets/:id. Only the creator or an admin may
// delete a ticket.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	id := c.Params("id")
	ticket, err := h.tickets.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !principal.IsAdmin() && ticket.CreatedBy != principal.Profile.ID {
		return fiber.NewError(http.StatusForbidden, "only the creator or an admin may delete a ticket")
	}

	if err := h.tickets.Delete(c.UserContext(), id, principal.Profile.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddComment handles POST /tickets/:id/comments. Internal comments require
// agent or admin role.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.IsInternal && !principal.IsAgent() {
		return fiber.NewError(http.StatusForbidden, "internal comments require agent role")
	}

	comment, err := h.tickets.AddComment(c.UserContext(), service.CommentInput{
		TicketID:   c.Params("id"),
		UserID:     principal.Profile.ID,
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments handles GET /tickets/:id/comments. Internal comments are
// stripped for callers without agent role.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	comments, err := h.tickets.ListComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": commentResponses(comments, principal.IsAgent())})
}

// History handles GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.tickets.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	out := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		out = append(out, dto.HistoryResponse{
			ID:           e.ID,
			FieldChanged: e.FieldChanged,
			OldValue:     e.OldValue,
			NewValue:     e.NewValue,
			Actor:        profileResponse(e.Actor),
			ChangeDate:   e.ChangeDate,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

func parseTicketFilter(c *fiber.Ctx, principal *auth.Principal) (repository.TicketFilter, error) {
	var filter repository.TicketFilter

	for _, raw := range splitParam(c.Query("status")) {
		status := domain.TicketStatus(raw)
		if !domain.ValidStatus(status) {
			return filter, fiber.NewError(http.StatusBadRequest, "unknown status: "+raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitParam(c.Query("priority")) {
		priority := domain.TicketPriority(raw)
		if !domain.ValidPriority(priority) {
			return filter, fiber.NewError(http.StatusBadRequest, "unknown priority: "+raw)
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	switch assignee := c.Query("assignee"); assignee {
	case "":
	case "me":
		filter.Assignee = repository.AssigneeEq(principal.Profile.ID)
	case "unassigned":
		filter.Assignee = repository.Unassigned()
	case "assigned":
		filter.Assignee = repository.Assigned()
	default:
		filter.Assignee = repository.AssigneeEq(assignee)
	}

	if createdBy := c.Query("created_by"); createdBy != "" {
		if createdBy == "me" {
			createdBy = principal.Profile.ID
		}
		filter.CreatedBy = &createdBy
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if raw := c.Query("module"); raw != "" {
		module := domain.TicketModule(raw)
		if !domain.ValidModule(module) {
			return filter, fiber.NewError(http.StatusBadRequest, "unknown module: "+raw)
		}
		filter.Module = &module
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}

	var err error
	if filter.CreatedFrom, err = parseTimeParam(c.Query("created_from")); err != nil {
		return filter, fiber.NewError(http.StatusBadRequest, "created_from must be RFC 3339")
	}
	if filter.CreatedTo, err = parseTimeParam(c.Query("created_to")); err != nil {
		return filter, fiber.NewError(http.StatusBadRequest, "created_to must be RFC 3339")
	}
	return filter, nil
}

func parseListOptions(c *fiber.Ctx) repository.ListOptions {
	opts := repository.ListOptions{
		SortBy:  c.Query("sort_by"),
		SortAsc: strings.EqualFold(c.Query("sort_dir"), "asc"),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		opts.Page = page
	}
	if size, err := strconv.Atoi(c.Query("page_size")); err == nil {
		opts.PageSize = size
	}
	return opts
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ticketSummary(t *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:           t.ID,
		Title:        t.Title,
		Status:       t.Status,
		Priority:     t.Priority,
		Module:       t.Module,
		Category:     categoryResponse(t.Category),
		Creator:      profileResponse(t.Creator),
		Assignee:     profileResponse(t.Assignee),
		CommentCount: t.CommentCount,
		DueDate:      t.DueDate,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func ticketDetail(t *domain.Ticket, includeInternal bool) dto.TicketDetailResponse {
	return dto.TicketDetailResponse{
		TicketSummary:   ticketSummary(t),
		Description:     t.Description,
		PurchaseDetails: t.PurchaseDetails,
		ErrorDetails:    t.ErrorDetails,
		Comments:        commentResponses(t.Comments, includeInternal),
	}
}

func categoryResponse(cat *domain.Category) *dto.CategoryResponse {
	if cat == nil {
		return nil
	}
	return &dto.CategoryResponse{ID: cat.ID, Name: cat.Name, Color: cat.Color, Icon: cat.Icon}
}

func commentResponse(cm *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         cm.ID,
		TicketID:   cm.TicketID,
		Content:    cm.Content,
		IsInternal: cm.IsInternal,
		Author:     profileResponse(cm.Author),
		CreatedAt:  cm.CreatedAt,
	}
}

func commentResponses(comments []domain.Comment, includeInternal bool) []dto.CommentResponse {
	out := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		if comments[i].IsInternal && !includeInternal {
			continue
		}
		out = append(out, commentResponse(&comments[i]))
	}
	return out
}
