package service

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helpdeskpro/helpdesk-service/internal/cache"
	"github.com/helpdeskpro/helpdesk-service/internal/domain"
	"github.com/helpdeskpro/helpdesk-service/internal/observability"
	"github.com/helpdeskpro/helpdesk-service/internal/repository"
)

var joinedTicketColumns = []string{
	"id", "title", "description", "status", "priority", "module",
	"category_id", "assigned_to", "created_by", "due_date",
	"purchase_details", "error_details", "created_at", "updated_at",
	"c_id", "c_name", "c_color", "c_icon",
	"cr_id", "cr_email", "cr_name", "cr_role", "cr_avatar",
	"as_id", "as_email", "as_name", "as_role", "as_avatar",
	"comment_count",
}

func joinedTicketRow(id, createdBy string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(joinedTicketColumns).AddRow(
		id, "Broken printer", "won't power on", domain.TicketStatusOpen, domain.TicketPriorityMedium, domain.TicketModuleSupport,
		nil, nil, createdBy, nil,
		[]byte(`{}`), []byte(`{}`), now, now,
		nil, nil, nil, nil,
		nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil,
		0,
	)
}

// The terminal audit entry is written after the ticket row is gone, so the
// insert must be accepted against a history table that does not reference
// tickets. Expectations are matched in order: the row delete first, then
// the history insert, which succeeds.
func TestTicketService_DeleteAuditEntryOutlivesTicketRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	metrics := observability.NewMetrics()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:  repository.NewTicketRepository(mock),
		HistoryRepo: repository.NewHistoryRepository(mock),
		ProfileRepo: newFakeProfileRepo(),
		CommentRepo: &fakeCommentRepo{},
		RefCache:    cache.New(5*time.Minute, nil),
		Metrics:     metrics,
		Logger:      zap.NewNop(),
	})

	mock.ExpectQuery(`FROM tickets t`).
		WithArgs("ticket-1").
		WillReturnRows(joinedTicketRow("ticket-1", "user-1"))
	mock.ExpectExec(`DELETE FROM tickets`).
		WithArgs("ticket-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`INSERT INTO ticket_history`).
		WithArgs("ticket-1", "admin-1", domain.HistoryTicketDeleted, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "change_date"}).AddRow("hist-1", time.Now()))

	require.NoError(t, svc.Delete(context.Background(), "ticket-1", "admin-1"))
	assert.Zero(t, metrics.AuditFailures("delete"))
	require.NoError(t, mock.ExpectationsWereMet())
}
