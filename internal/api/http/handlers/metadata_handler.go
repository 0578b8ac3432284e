package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskpro/helpdesk-service/internal/api/dto"
	"github.com/helpdeskpro/helpdesk-service/internal/service"
)

// MetadataHandler serves cached reference data for forms and filters.
type MetadataHandler struct {
	tickets *service.TicketService
}

// NewMetadataHandler constructs handler.
func NewMetadataHandler(tickets *service.TicketService) *MetadataHandler {
	return &MetadataHandler{tickets: tickets}
}

// Categories handles GET /metadata/categories. Pass refresh=true to bypass
// the reference cache.
func (h *MetadataHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.tickets.Categories(c.UserContext(), c.QueryBool("refresh"))
	if err != nil {
		return err
	}

	out := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		out = append(out, *categoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Users handles GET /metadata/users, the assignable-user directory.
func (h *MetadataHandler) Users(c *fiber.Ctx) error {
	users, err := h.tickets.AssignableUsers(c.UserContext(), c.QueryBool("refresh"))
	if err != nil {
		return err
	}

	out := make([]dto.ProfileResponse, 0, len(users))
	for i := range users {
		out = append(out, *profileResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}
