package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"finBriefAPI/internal/store"
	"finBriefAPI/internal/types/subscription"
	"finBriefAPI/internal/types/user"
)

type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService {
	return &UserService{store: s}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	now := time.Now()
	u := &user.User{
		ID:        uuid.New().String(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.store.GetUserByClerkID(ctx, clerkID)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	return s.store.UpdateUserProfile(ctx, clerkID, req)
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	return s.store.SetEmailVerified(ctx, clerkID, verified)
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	return s.store.DeleteUserByClerkID(ctx, clerkID)
}

func (s *UserService) GetSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.store.GetSubscriptionByUserID(ctx, userID)
}

// IsEntitled is the access gate for all paid content. A user is entitled iff
// a subscription record exists and its status is exactly "active". Anything
// else, including past_due and canceled, reads as no access.
func (s *UserService) IsEntitled(ctx context.Context, userID string) bool {
	sub, err := s.store.GetSubscriptionByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Entitlement check failed for user %s: %v", userID, err)
		}
		return false
	}
	return sub.Status == subscription.StatusActive
}

// Profile assembles the authenticated user's account view, including whether
// they currently pass the entitlement gate.
func (s *UserService) Profile(ctx context.Context, clerkID string) (*user.ProfileResponse, error) {
	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	resp := &user.ProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
	}

	sub, err := s.store.GetSubscriptionByUserID(ctx, u.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resp, nil
		}
		return nil, err
	}

	resp.HasSubscription = sub.Status == subscription.StatusActive
	resp.Subscription = &user.SubscriptionSummary{
		Status:           sub.Status,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
	return resp, nil
}
