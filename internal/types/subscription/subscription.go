package subscription

import "time"

// Status is whatever Stripe last reported ("active", "past_due", "canceled",
// "incomplete", ...). We store it as-is and never validate the enumeration
// locally; only the exact string "active" grants access.
const StatusActive = "active"
const StatusCanceled = "canceled"

type Subscription struct {
	UserID               string    `json:"userId" db:"user_id"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId" db:"stripe_subscription_id"`
	StripePriceID        string    `json:"stripePriceId" db:"stripe_price_id"`
	Status               string    `json:"status" db:"status"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd" db:"current_period_end"`
	CreatedAt            time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time `json:"updatedAt" db:"updated_at"`
}

type CheckoutSessionResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"url"`
}

type PortalSessionResponse struct {
	URL string `json:"url"`
}
