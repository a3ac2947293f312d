package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finBriefAPI/internal/types/subscription"
	"finBriefAPI/internal/types/user"
)

// PostgresStore backs the Store contract with two tables:
//
//	users(id uuid PK, clerk_id UNIQUE, email UNIQUE, first_name, last_name,
//	      image_url, email_verified, stripe_customer_id NULL INDEXED,
//	      created_at, updated_at)
//	subscriptions(user_id PK REFERENCES users, stripe_subscription_id,
//	      stripe_price_id, status, current_period_end, created_at, updated_at)
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, clerk_id, email, first_name, last_name, COALESCE(image_url, ''), email_verified, COALESCE(stripe_customer_id, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.StripeCustomerID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *user.User) (*user.User, error) {
	query := `
	INSERT INTO users (id, clerk_id, email, first_name, last_name, image_url, email_verified, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + userColumns

	created, err := scanUser(s.db.QueryRow(
		ctx,
		query,
		u.ID,
		u.ClerkID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.ImageURL,
		u.EmailVerified,
		u.CreatedAt,
		u.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresStore) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`
	return scanUser(s.db.QueryRow(ctx, query, clerkID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(s.db.QueryRow(ctx, query, email))
}

func (s *PostgresStore) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	return scanUser(s.db.QueryRow(ctx, query, customerID))
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET first_name = $1, last_name = $2, image_url = $3, updated_at = $4
	WHERE clerk_id = $5
	RETURNING ` + userColumns

	return scanUser(s.db.QueryRow(ctx, query, req.FirstName, req.LastName, req.ImageURL, time.Now(), clerkID))
}

func (s *PostgresStore) SetEmailVerified(ctx context.Context, clerkID string, verified bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET email_verified = $1, updated_at = $2 WHERE clerk_id = $3`, verified, time.Now(), clerkID)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStripeCustomerID links the billing customer to the account. Repeating
// the link with the same customer id is a no-op, which makes duplicate
// checkout.session.completed deliveries safe.
func (s *PostgresStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query := `
	UPDATE users
	SET stripe_customer_id = $1, updated_at = $2
	WHERE id = $3 AND (stripe_customer_id IS NULL OR stripe_customer_id = $1)
	`
	tag, err := s.db.Exec(ctx, query, customerID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to link stripe customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user is gone or a different customer is already linked.
		var existing string
		err := s.db.QueryRow(ctx, `SELECT COALESCE(stripe_customer_id, '') FROM users WHERE id = $1`, userID).Scan(&existing)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("user %s already linked to stripe customer %s", userID, existing)
	}
	return nil
}

func (s *PostgresStore) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSubscription creates or fully overwrites the single subscription row
// for the user. Last write observed by the database wins; no history is kept.
func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	INSERT INTO subscriptions (user_id, stripe_subscription_id, stripe_price_id, status, current_period_end, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (user_id) DO UPDATE SET
		stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		stripe_price_id = EXCLUDED.stripe_price_id,
		status = EXCLUDED.status,
		current_period_end = EXCLUDED.current_period_end,
		updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.Exec(
		ctx,
		query,
		sub.UserID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.Status,
		sub.CurrentPeriodEnd,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSubscriptionStatus(ctx context.Context, userID, status string, currentPeriodEnd time.Time) error {
	query := `
	UPDATE subscriptions
	SET status = $1, current_period_end = $2, updated_at = $3
	WHERE user_id = $4
	`
	tag, err := s.db.Exec(ctx, query, status, currentPeriodEnd, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSubscriptionByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `
	SELECT user_id, stripe_subscription_id, stripe_price_id, status, current_period_end, created_at, updated_at
	FROM subscriptions
	WHERE user_id = $1
	`
	var sub subscription.Subscription
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&sub.UserID,
		&sub.StripeSubscriptionID,
		&sub.StripePriceID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}
