package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdeskpro/helpdesk-service/internal/api/dto"
	"github.com/helpdeskpro/helpdesk-service/internal/auth"
	"github.com/helpdeskpro/helpdesk-service/internal/service"
)

// StatsHandler exposes dashboard aggregates.
type StatsHandler struct {
	tickets *service.TicketService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(tickets *service.TicketService) *StatsHandler {
	return &StatsHandler{tickets: tickets}
}

// Me handles GET /stats/me.
func (h *StatsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}

	stats, err := h.tickets.StatsForUser(c.UserContext(), principal.Profile.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserStatsResponse{
		TotalCreated:      stats.TotalCreated,
		TotalAssigned:     stats.TotalAssigned,
		OpenTickets:       stats.OpenTickets,
		InProgressTickets: stats.InProgressTickets,
		ResolvedTickets:   stats.ResolvedTickets,
	}})
}

// System handles GET /stats/system. Admin only; enforced in routing.
func (h *StatsHandler) System(c *fiber.Ctx) error {
	stats, err := h.tickets.StatsForSystem(c.UserContext())
	if err != nil {
		return err
	}

	byStatus := make(map[string]int64, len(stats.TicketsByStatus))
	for status, count := range stats.TicketsByStatus {
		byStatus[string(status)] = count
	}
	byPriority := make(map[string]int64, len(stats.TicketsByPriority))
	for priority, count := range stats.TicketsByPriority {
		byPriority[string(priority)] = count
	}
	return c.JSON(fiber.Map{"data": dto.SystemStatsResponse{
		TotalUsers:        stats.TotalUsers,
		TotalTickets:      stats.TotalTickets,
		TicketsByStatus:   byStatus,
		TicketsByPriority: byPriority,
	}})
}
