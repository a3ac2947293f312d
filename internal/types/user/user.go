package user

import "time"

type User struct {
	ID               string    `json:"id"`
	ClerkID          string    `json:"clerkId"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	EmailVerified    bool      `json:"emailVerified"`
	StripeCustomerID string    `json:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ImageURL  string `json:"imageUrl"`
}

// ProfileResponse is what GET /api/v1/user returns: the account plus the
// subscription state the frontend needs to decide between paywall and feed.
type ProfileResponse struct {
	ID              string               `json:"id"`
	Email           string               `json:"email"`
	FirstName       string               `json:"firstName"`
	LastName        string               `json:"lastName"`
	ImageURL        string               `json:"imageUrl,omitempty"`
	HasSubscription bool                 `json:"hasSubscription"`
	Subscription    *SubscriptionSummary `json:"subscription,omitempty"`
}

type SubscriptionSummary struct {
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}
