package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService is the lifecycle orchestrator: it loads entity snapshots,
// runs the access-engine validators, and delegates approved mutations to the
// repositories. Every mutation goes through here.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.StatusHistoryRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.StatusHistoryRepository
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Tag         domain.TicketTag
}

// TicketListFilter describes listing filters. Page is 1-based.
type TicketListFilter struct {
	Status  *domain.TicketStatus
	Tag     *domain.TicketTag
	Page    int
	PerPage int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket opens a new ticket for the actor. Tickets always start OPEN
// and unassigned.
func (s *TicketService) CreateTicket(ctx context.Context, actor access.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !domain.ValidTicketTag(input.Tag) {
		return nil, apperrors.NewValidationError("unknown ticket tag", map[string]any{"tag": input.Tag})
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Tag:         input.Tag,
		CreatedBy:   actor.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCreatedPayload{
			Title: ticket.Title,
			Tag:   ticket.Tag,
		},
	})
	return ticket, nil
}

// ViewTicket fetches a single ticket the actor is permitted to read. An
// existing but invisible ticket yields Forbidden, not NotFound.
func (s *TicketService) ViewTicket(ctx context.Context, actor access.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(actor, ticket) {
		return nil, apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}
	return ticket, nil
}

// ListTickets returns tickets visible to the actor, newest first. The
// visibility rule is applied as a storage predicate, not per row.
func (s *TicketService) ListTickets(ctx context.Context, actor access.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if filter.Status != nil && !domain.ValidTicketStatus(*filter.Status) {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": *filter.Status})
	}
	if filter.Tag != nil && !domain.ValidTicketTag(*filter.Tag) {
		return nil, apperrors.NewValidationError("unknown ticket tag", map[string]any{"tag": *filter.Tag})
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 10
	}

	scope := access.ScopeFor(actor)
	repoFilter := repository.TicketFilter{
		CreatedBy:  scope.CreatedBy,
		AssignedTo: scope.AssignedTo,
		Status:     filter.Status,
		Tag:        filter.Tag,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateStatus moves a ticket to newStatus when the transition validator
// approves. A request for the current status is an idempotent no-op: the
// ticket is returned unchanged and no history entry is written.
func (s *TicketService) UpdateStatus(ctx context.Context, actor access.Actor, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidTicketStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": newStatus})
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	decision := access.AuthorizeTransition(actor, ticket, newStatus)
	switch decision.Outcome {
	case access.NoOp:
		return ticket, nil
	case access.Denied:
		return nil, transitionError(decision)
	}

	updated, err := s.tickets.UpdateStatus(ctx, ticketID, ticket.Status, newStatus, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewConflict("ticket was updated concurrently", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: updated.Status,
		},
	})
	return updated, nil
}

// CreateComment appends a comment to a ticket the actor may view.
func (s *TicketService) CreateComment(ctx context.Context, actor access.Actor, ticketID, content string) (*domain.TicketComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewComments(actor, ticket) {
		return nil, apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}

	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketCommentAddedPayload{
			CommentID:      comment.ID,
			AuthorID:       comment.AuthorID,
			ContentPreview: stringPreview(comment.Content, 120),
		},
	})
	return comment, nil
}

// ListComments returns the comments of a ticket the actor may view, oldest
// first.
func (s *TicketService) ListComments(ctx context.Context, actor access.Actor, ticketID string) ([]domain.TicketComment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewComments(actor, ticket) {
		return nil, apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListStatusHistory returns the status audit trail of a ticket the actor
// may view, in ascending creation order.
func (s *TicketService) ListStatusHistory(ctx context.Context, actor access.Actor, ticketID string) ([]domain.StatusHistoryEntry, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewHistory(actor, ticket) {
		return nil, apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
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

func eventActor(actor access.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

func transitionError(decision access.Decision) error {
	switch decision.Reason {
	case access.ReasonClosedRequiresAdmin:
		return apperrors.NewForbiddenWithReason("closed tickets can only be updated by an admin", string(decision.Reason))
	case access.ReasonTransitionNotAllowed:
		return apperrors.NewForbiddenWithReason("status transition not permitted for role", string(decision.Reason))
	default:
		return apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
