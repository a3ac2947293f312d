package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finBriefAPI/internal/types/subscription"
	"finBriefAPI/internal/types/user"
)

// MemoryStore keeps everything in maps behind one mutex. It implements the
// same unique-key and overwrite semantics as PostgresStore and is what the
// test suite runs against.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*user.User                 // keyed by user id
	subscriptions map[string]*subscription.Subscription // keyed by user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*user.User),
		subscriptions: make(map[string]*subscription.Subscription),
	}
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

func copySubscription(s *subscription.Subscription) *subscription.Subscription {
	c := *s
	return &c
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, fmt.Errorf("failed to create user: email %s already registered", u.Email)
		}
		if existing.ClerkID == u.ClerkID {
			return nil, fmt.Errorf("failed to create user: clerk id %s already registered", u.ClerkID)
		}
	}

	s.users[u.ID] = copyUser(u)
	return copyUser(u), nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) findBy(match func(*user.User) bool) (*user.User, error) {
	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBy(func(u *user.User) bool { return u.ClerkID == clerkID })
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBy(func(u *user.User) bool { return u.Email == email })
}

func (s *MemoryStore) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBy(func(u *user.User) bool { return u.StripeCustomerID != "" && u.StripeCustomerID == customerID })
}

func (s *MemoryStore) UpdateUserProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ClerkID == clerkID {
			u.FirstName = req.FirstName
			u.LastName = req.LastName
			u.ImageURL = req.ImageURL
			u.UpdatedAt = time.Now()
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetEmailVerified(ctx context.Context, clerkID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ClerkID == clerkID {
			u.EmailVerified = verified
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if u.StripeCustomerID != "" && u.StripeCustomerID != customerID {
		return fmt.Errorf("user %s already linked to stripe customer %s", userID, u.StripeCustomerID)
	}
	u.StripeCustomerID = customerID
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if u.ClerkID == clerkID {
			delete(s.users, id)
			delete(s.subscriptions, id)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copySubscription(sub)
	now := time.Now()
	if existing, ok := s.subscriptions[sub.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.subscriptions[sub.UserID] = stored
	return nil
}

func (s *MemoryStore) UpdateSubscriptionStatus(ctx context.Context, userID, status string, currentPeriodEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	sub.CurrentPeriodEnd = currentPeriodEnd
	sub.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copySubscription(sub), nil
}
