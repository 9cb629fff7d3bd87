package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// AdminService handles ticket assignment and role governance. The admin
// routes are already role-gated; the checks here are defensive.
type AdminService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// AdminDependencies bundles repositories.
type AdminDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// NewAdminService creates the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	return &AdminService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

func requireAdmin(actor access.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// AssignTicket assigns the ticket to the candidate user. Candidates must be
// agents or admins; re-assigning an already-assigned ticket is permitted.
// Assignment does not touch the status and writes no history entry.
func (s *AdminService) AssignTicket(ctx context.Context, actor access.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	candidate, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	decision := access.AuthorizeAssignment(actor, ticket, candidate)
	if decision.Outcome != access.Allowed {
		return nil, assignmentError(decision)
	}

	updated, err := s.tickets.UpdateAssignee(ctx, ticketID, candidate.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: updated.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketAssignedPayload{
			AssigneeID: candidate.ID,
		},
	})
	return updated, nil
}

// ChangeUserRole updates a user's role. The last-admin guard runs inside
// the repository transaction so concurrent demotions cannot leave the
// system without an admin.
func (s *AdminService) ChangeUserRole(ctx context.Context, actor access.Actor, userID string, newRole domain.Role) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !domain.ValidRole(newRole) {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": newRole})
	}

	var oldRole domain.Role
	updated, err := s.users.ChangeRole(ctx, userID, newRole, func(target *domain.User, adminCount int) error {
		oldRole = target.Role
		decision := access.AuthorizeRoleChange(target, newRole, adminCount)
		if decision.Outcome != access.Allowed {
			return apperrors.NewForbiddenWithReason("cannot demote the last admin", string(decision.Reason))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventUserRoleChanged,
		Actor: eventActor(actor),
		Payload: events.UserRoleChangedPayload{
			UserID:  updated.ID,
			OldRole: oldRole,
			NewRole: updated.Role,
		},
	})
	return updated, nil
}

// GetUser fetches a user account for the admin surface.
func (s *AdminService) GetUser(ctx context.Context, actor access.Actor, userID string) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListUsers returns user accounts, newest first.
func (s *AdminService) ListUsers(ctx context.Context, actor access.Actor, limit, offset int) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

func (s *AdminService) publishEvent(ctx context.Context, event events.Event) {
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

func assignmentError(decision access.Decision) error {
	switch decision.Reason {
	case access.ReasonCannotAssignCustomer:
		return apperrors.NewForbiddenWithReason("tickets cannot be assigned to customers", string(decision.Reason))
	case access.ReasonCandidateNotFound:
		return apperrors.NewNotFound("user", nil)
	default:
		return apperrors.NewForbiddenWithReason("access denied", string(access.ReasonNotAuthorized))
	}
}
