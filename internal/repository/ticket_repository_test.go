package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeskpro/helpdesk-service/internal/domain"
)

func TestBuildListQuery_Assignee(t *testing.T) {
	tests := []struct {
		name     string
		filter   TicketFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no assignee constraint",
			filter:  TicketFilter{},
			wantSQL: "",
		},
		{
			name:     "exact assignee",
			filter:   TicketFilter{Assignee: AssigneeEq("user-1")},
			wantSQL:  "t.assigned_to = $1",
			wantArgs: []any{"user-1"},
		},
		{
			name:    "unassigned",
			filter:  TicketFilter{Assignee: Unassigned()},
			wantSQL: "t.assigned_to IS NULL",
		},
		{
			name:    "any assignee",
			filter:  TicketFilter{Assignee: Assigned()},
			wantSQL: "t.assigned_to IS NOT NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildListQuery(tt.filter, ListOptions{})
			require.NoError(t, err)
			if tt.wantSQL != "" {
				assert.Contains(t, sql, tt.wantSQL)
			} else {
				assert.NotContains(t, sql, "assigned_to =")
				assert.NotContains(t, sql, "assigned_to IS")
			}
			for _, arg := range tt.wantArgs {
				assert.Contains(t, args, arg)
			}
		})
	}
}

func TestBuildListQuery_Filters(t *testing.T) {
	createdBy := "creator-1"
	category := "cat-1"
	module := domain.TicketModuleErrors
	search := "db down"
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := buildListQuery(TicketFilter{
		Statuses:    []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		Priorities:  []domain.TicketPriority{domain.TicketPriorityUrgent},
		CreatedBy:   &createdBy,
		CategoryID:  &category,
		Module:      &module,
		Search:      &search,
		CreatedFrom: &from,
	}, ListOptions{})
	require.NoError(t, err)

	assert.Contains(t, sql, "t.status IN ($1,$2)")
	assert.Contains(t, sql, "t.priority IN (")
	assert.Contains(t, sql, "t.created_by =")
	assert.Contains(t, sql, "t.category_id =")
	assert.Contains(t, sql, "t.module =")
	assert.Contains(t, sql, "t.title ILIKE")
	assert.Contains(t, sql, "t.description ILIKE")
	assert.Contains(t, sql, "t.created_at >=")
	assert.Contains(t, args, "%db down%")
	assert.Contains(t, args, createdBy)
}

func TestBuildListQuery_Sorting(t *testing.T) {
	tests := []struct {
		name      string
		opts      ListOptions
		wantOrder string
	}{
		{
			name:      "default sorts by created_at desc",
			opts:      ListOptions{},
			wantOrder: "ORDER BY t.created_at DESC, t.id ASC",
		},
		{
			name:      "explicit ascending sort",
			opts:      ListOptions{SortBy: "priority", SortAsc: true},
			wantOrder: "ORDER BY t.priority ASC, t.id ASC",
		},
		{
			name:      "unknown column falls back to created_at desc",
			opts:      ListOptions{SortBy: "evil; DROP TABLE tickets", SortAsc: true},
			wantOrder: "ORDER BY t.created_at DESC, t.id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := buildListQuery(TicketFilter{}, tt.opts)
			require.NoError(t, err)
			assert.Contains(t, sql, tt.wantOrder)
			assert.False(t, strings.Contains(sql, "DROP TABLE"))
		})
	}
}

func TestBuildListQuery_Pagination(t *testing.T) {
	sql, _, err := buildListQuery(TicketFilter{}, ListOptions{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 20")

	sql, _, err = buildListQuery(TicketFilter{}, ListOptions{})
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 20")
	assert.Contains(t, sql, "OFFSET 0")
}

func TestBuildCountQuery(t *testing.T) {
	sql, args, err := buildCountQuery(TicketFilter{Assignee: Unassigned()})
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT COUNT(*) FROM tickets t")
	assert.Contains(t, sql, "t.assigned_to IS NULL")
	assert.NotContains(t, sql, "ORDER BY")
	assert.Empty(t, args)
}

func TestTicketRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTicketRepository(mock)

	mock.ExpectExec(`DELETE FROM tickets`).
		WithArgs("ticket-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "ticket-1"))

	mock.ExpectExec(`DELETE FROM tickets`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err = repo.Delete(context.Background(), "missing")
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepository_CountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTicketRepository(mock)

	rows := pgxmock.NewRows([]string{"status", "count"}).
		AddRow(domain.TicketStatusOpen, int64(4)).
		AddRow(domain.TicketStatusResolved, int64(9))
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM tickets GROUP BY status`).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[domain.TicketStatusOpen])
	assert.Equal(t, int64(9), counts[domain.TicketStatusResolved])
	require.NoError(t, mock.ExpectationsWereMet())
}
