package clerk

import "encoding/json"

// ClerkWebhookEvent is the svix-delivered envelope Clerk sends to our
// identity webhook.
type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID              string         `json:"id"`
	Username        string         `json:"username"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	ImageURL        string         `json:"image_url"`
	ProfileImageURL string         `json:"profile_image_url"`
	EmailAddresses  []EmailAddress `json:"email_addresses"`
}

type EmailAddress struct {
	EmailAddress string       `json:"email_address"`
	Verification Verification `json:"verification"`
}

type Verification struct {
	Status string `json:"status"`
}
