package store

import (
	"context"
	"errors"
	"time"

	"finBriefAPI/internal/types/subscription"
	"finBriefAPI/internal/types/user"
)

// ErrNotFound is returned by every lookup when the key has no row. Callers
// decide whether that is a 404 or a logged webhook drop.
var ErrNotFound = errors.New("record not found")

// Store is the durable backing for accounts and their 1:1 subscription
// records. Both implementations guarantee unique email/clerk_id keys and
// last-write-wins upserts on subscriptions; nothing beyond single-row
// atomicity is promised.
type Store interface {
	CreateUser(ctx context.Context, u *user.User) (*user.User, error)
	GetUserByID(ctx context.Context, id string) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error)
	UpdateUserProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error)
	SetEmailVerified(ctx context.Context, clerkID string, verified bool) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	DeleteUserByClerkID(ctx context.Context, clerkID string) error

	UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, userID, status string, currentPeriodEnd time.Time) error
	GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
}
