package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

func actorFor(user *domain.User) access.Actor {
	return access.Actor{ID: user.ID, Role: user.Role}
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func domainReason(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	reason, _ := apperrors.ToDomainError(err).Details["reason"].(string)
	return reason
}

func (f *fixture) createTicket(t *testing.T, creator *domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), actorFor(creator), TicketCreateInput{
		Title:       "printer on fire",
		Description: "smoke everywhere",
		Tag:         domain.TicketTagBug,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) assign(t *testing.T, admin *domain.User, ticketID, assigneeID string) {
	t.Helper()
	_, err := f.admin.AssignTicket(context.Background(), actorFor(admin), ticketID, assigneeID)
	require.NoError(t, err)
}

func TestCreateTicketStartsOpenAndUnassigned(t *testing.T) {
	f := newFixture()
	customer := f.store.addUser("carol", domain.RoleCustomer)

	ticket := f.createTicket(t, customer)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.AssignedTo)
	assert.Equal(t, customer.ID, ticket.CreatedBy)
	assert.NotEmpty(t, ticket.ID)
}

func TestCreateTicketUnknownTag(t *testing.T) {
	f := newFixture()
	customer := f.store.addUser("carol", domain.RoleCustomer)

	_, err := f.tickets.CreateTicket(context.Background(), actorFor(customer), TicketCreateInput{
		Title:       "x",
		Description: "y",
		Tag:         domain.TicketTag("URGENT"),
	})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestViewTicketInvisibleIsForbiddenNotMissing(t *testing.T) {
	f := newFixture()
	owner := f.store.addUser("carol", domain.RoleCustomer)
	stranger := f.store.addUser("mallory", domain.RoleCustomer)
	ticket := f.createTicket(t, owner)

	_, err := f.tickets.ViewTicket(context.Background(), actorFor(stranger), ticket.ID)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))

	_, err = f.tickets.ViewTicket(context.Background(), actorFor(owner), "no-such-id")
	assert.Equal(t, "NOT_FOUND", domainCode(t, err))
}

func TestListTicketsScopedByRole(t *testing.T) {
	f := newFixture()
	admin := f.store.addUser("alice", domain.RoleAdmin)
	agent := f.store.addUser("adam", domain.RoleAgent)
	carol := f.store.addUser("carol", domain.RoleCustomer)
	mallory := f.store.addUser("mallory", domain.RoleCustomer)

	carolTicket := f.createTicket(t, carol)
	f.createTicket(t, mallory)
	f.assign(t, admin, carolTicket.ID, agent.ID)

	ctx := context.Background()

	carolList, err := f.tickets.ListTickets(ctx, actorFor(carol), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, carolList, 1)
	assert.Equal(t, carolTicket.ID, carolList[0].ID)

	agentList, err := f.tickets.ListTickets(ctx, actorFor(agent), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, agentList, 1)
	assert.Equal(t, carolTicket.ID, agentList[0].ID)

	adminList, err := f.tickets.ListTickets(ctx, actorFor(admin), TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, adminList, 2)
}

func TestListTicketsNewestFirst(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)

	first := f.createTicket(t, carol)
	second := f.createTicket(t, carol)

	list, err := f.tickets.ListTickets(context.Background(), actorFor(carol), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestListTicketsUnknownStatusFilter(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	bogus := domain.TicketStatus("PENDING")

	_, err := f.tickets.ListTickets(context.Background(), actorFor(carol), TicketListFilter{Status: &bogus})
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestUpdateStatusCustomerLifecycle(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	admin := f.store.addUser("alice", domain.RoleAdmin)
	ticket := f.createTicket(t, carol)
	ctx := context.Background()

	closed, err := f.tickets.UpdateStatus(ctx, actorFor(carol), ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)

	// closed tickets are locked down for non-admins, even the creator
	_, err = f.tickets.UpdateStatus(ctx, actorFor(carol), ticket.ID, domain.TicketStatusOpen)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	assert.Equal(t, string(access.ReasonClosedRequiresAdmin), domainReason(t, err))

	reopened, err := f.tickets.UpdateStatus(ctx, actorFor(admin), ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)

	history, err := f.tickets.ListStatusHistory(ctx, actorFor(carol), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateStatusNoOpLeavesNoTrace(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)
	ctx := context.Background()

	unchanged, err := f.tickets.UpdateStatus(ctx, actorFor(carol), ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, unchanged.Status)
	assert.Equal(t, ticket.UpdatedAt, unchanged.UpdatedAt)

	history, err := f.tickets.ListStatusHistory(ctx, actorFor(carol), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)

	_, err := f.tickets.UpdateStatus(context.Background(), actorFor(carol), ticket.ID, domain.TicketStatus("DONE"))
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestUpdateStatusAgentWalk(t *testing.T) {
	f := newFixture()
	admin := f.store.addUser("alice", domain.RoleAdmin)
	agent := f.store.addUser("adam", domain.RoleAgent)
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)
	f.assign(t, admin, ticket.ID, agent.ID)
	ctx := context.Background()

	steps := []domain.TicketStatus{
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusInProgress,
	}
	for _, next := range steps {
		updated, err := f.tickets.UpdateStatus(ctx, actorFor(agent), ticket.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	history, err := f.tickets.ListStatusHistory(ctx, actorFor(agent), ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	expected := [][2]domain.TicketStatus{
		{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		{domain.TicketStatusInProgress, domain.TicketStatusResolved},
		{domain.TicketStatusResolved, domain.TicketStatusInProgress},
	}
	for i, entry := range history {
		assert.Equal(t, expected[i][0], entry.PreviousStatus)
		assert.Equal(t, expected[i][1], entry.NewStatus)
		assert.Equal(t, agent.ID, entry.ChangedBy)
		if i > 0 {
			assert.True(t, history[i-1].CreatedAt.Before(entry.CreatedAt))
		}
	}
}

func TestUpdateStatusAgentForbiddenPairs(t *testing.T) {
	f := newFixture()
	admin := f.store.addUser("alice", domain.RoleAdmin)
	agent := f.store.addUser("adam", domain.RoleAgent)
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)
	f.assign(t, admin, ticket.ID, agent.ID)

	_, err := f.tickets.UpdateStatus(context.Background(), actorFor(agent), ticket.ID, domain.TicketStatusClosed)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	assert.Equal(t, string(access.ReasonTransitionNotAllowed), domainReason(t, err))
}

func TestUpdateStatusLostRaceIsConflict(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)
	ctx := context.Background()

	// another writer moves the ticket after our snapshot was taken
	_, err := f.tickets.UpdateStatus(ctx, actorFor(carol), ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)

	stale := NewTicketService(TicketDependencies{
		TicketRepo:  &staleTicketRepo{TicketRepository: &memTicketRepo{store: f.store}, snapshot: ticket},
		CommentRepo: &memCommentRepo{store: f.store},
		HistoryRepo: &memHistoryRepo{store: f.store},
	})
	_, err = stale.UpdateStatus(ctx, actorFor(carol), ticket.ID, domain.TicketStatusClosed)
	assert.Equal(t, "CONFLICT", domainCode(t, err))

	history, err := f.tickets.ListStatusHistory(ctx, actorFor(carol), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCommentFlow(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	mallory := f.store.addUser("mallory", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)
	ctx := context.Background()

	first, err := f.tickets.CreateComment(ctx, actorFor(carol), ticket.ID, "any update?")
	require.NoError(t, err)
	second, err := f.tickets.CreateComment(ctx, actorFor(carol), ticket.ID, "still broken")
	require.NoError(t, err)

	comments, err := f.tickets.ListComments(ctx, actorFor(carol), ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)

	// comment visibility follows the ticket
	_, err = f.tickets.ListComments(ctx, actorFor(mallory), ticket.ID)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
	_, err = f.tickets.CreateComment(ctx, actorFor(mallory), ticket.ID, "me too")
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}

func TestCreateCommentEmptyContent(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	ticket := f.createTicket(t, carol)

	_, err := f.tickets.CreateComment(context.Background(), actorFor(carol), ticket.ID, "   ")
	assert.Equal(t, "VALIDATION_FAILED", domainCode(t, err))
}

func TestListStatusHistoryRequiresVisibility(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", domain.RoleCustomer)
	agent := f.store.addUser("adam", domain.RoleAgent)
	ticket := f.createTicket(t, carol)

	_, err := f.tickets.ListStatusHistory(context.Background(), actorFor(agent), ticket.ID)
	assert.Equal(t, "FORBIDDEN", domainCode(t, err))
}
