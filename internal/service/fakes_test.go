package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// memStore backs the in-memory repository fakes. A single mutex stands in
// for the database transaction: guarded sections observe and mutate state
// atomically, which is exactly what the SQL implementations guarantee.
type memStore struct {
	mu       sync.Mutex
	base     time.Time
	tick     int
	tickets  map[string]*domain.Ticket
	users    map[string]*domain.User
	comments map[string][]domain.TicketComment
	history  map[string][]domain.StatusHistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		base:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		tickets:  map[string]*domain.Ticket{},
		users:    map[string]*domain.User{},
		comments: map[string][]domain.TicketComment{},
		history:  map[string][]domain.StatusHistoryEntry{},
	}
}

// now returns strictly increasing timestamps so ordering assertions are
// deterministic.
func (s *memStore) now() time.Time {
	s.tick++
	return s.base.Add(time.Duration(s.tick) * time.Millisecond)
}

func (s *memStore) addUser(name string, role domain.Role) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	s.users[user.ID] = user
	return copyUser(user)
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.AssignedTo != nil {
		id := *t.AssignedTo
		clone.AssignedTo = &id
	}
	return &clone
}

func copyUser(u *domain.User) *domain.User {
	clone := *u
	return &clone
}

type memTicketRepo struct {
	store *memStore
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.store.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.store.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(ticket), nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []domain.Ticket
	for _, ticket := range r.store.tickets {
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && !ticket.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Tag != nil && ticket.Tag != *filter.Tag {
			continue
		}
		matched = append(matched, *copyTicket(ticket))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *memTicketRepo) UpdateStatus(_ context.Context, id string, previous, next domain.TicketStatus, changedBy string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if ticket.Status != previous {
		return nil, repository.ErrStatusConflict
	}
	ticket.Status = next
	ticket.UpdatedAt = r.store.now()
	r.store.history[id] = append(r.store.history[id], domain.StatusHistoryEntry{
		ID:             uuid.NewString(),
		TicketID:       id,
		PreviousStatus: previous,
		NewStatus:      next,
		ChangedBy:      changedBy,
		CreatedAt:      r.store.now(),
	})
	return copyTicket(ticket), nil
}

func (r *memTicketRepo) UpdateAssignee(_ context.Context, id, assigneeID string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	ticket.AssignedTo = &assigneeID
	ticket.UpdatedAt = r.store.now()
	return copyTicket(ticket), nil
}

type memUserRepo struct {
	store *memStore
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = r.store.now()
	user.UpdatedAt = user.CreatedAt
	r.store.users[user.ID] = copyUser(user)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyUser(user), nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	users := make([]domain.User, 0, len(r.store.users))
	for _, user := range r.store.users {
		users = append(users, *copyUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if offset >= len(users) {
		return nil, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

func (r *memUserRepo) CountAdmins(_ context.Context) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.countAdminsLocked(), nil
}

func (r *memUserRepo) countAdminsLocked() int {
	count := 0
	for _, user := range r.store.users {
		if user.Role == domain.RoleAdmin {
			count++
		}
	}
	return count
}

func (r *memUserRepo) ChangeRole(_ context.Context, id string, newRole domain.Role, guard repository.RoleChangeGuard) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if guard != nil {
		if err := guard(copyUser(user), r.countAdminsLocked()); err != nil {
			return nil, err
		}
	}
	user.Role = newRole
	user.UpdatedAt = r.store.now()
	return copyUser(user), nil
}

type memCommentRepo struct {
	store *memStore
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	comment.ID = uuid.NewString()
	comment.CreatedAt = r.store.now()
	comment.UpdatedAt = comment.CreatedAt
	r.store.comments[comment.TicketID] = append(r.store.comments[comment.TicketID], *comment)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	comments := append([]domain.TicketComment{}, r.store.comments[ticketID]...)
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

type memHistoryRepo struct {
	store *memStore
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entries := append([]domain.StatusHistoryEntry{}, r.store.history[ticketID]...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// staleTicketRepo serves a pinned snapshot from GetByID while delegating
// writes, simulating a reader that lost an update race.
type staleTicketRepo struct {
	repository.TicketRepository
	snapshot *domain.Ticket
}

func (r *staleTicketRepo) GetByID(_ context.Context, _ string) (*domain.Ticket, error) {
	return copyTicket(r.snapshot), nil
}

type fixture struct {
	store   *memStore
	tickets *TicketService
	admin   *AdminService
}

func newFixture() *fixture {
	store := newMemStore()
	ticketRepo := &memTicketRepo{store: store}
	userRepo := &memUserRepo{store: store}

	tickets := NewTicketService(TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: &memCommentRepo{store: store},
		HistoryRepo: &memHistoryRepo{store: store},
	})
	admin := NewAdminService(AdminDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
	})
	return &fixture{store: store, tickets: tickets, admin: admin}
}
