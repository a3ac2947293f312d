package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	clerktypes "finBriefAPI/internal/types/clerk"
	"finBriefAPI/internal/types/user"
	"finBriefAPI/middleware"
	"finBriefAPI/services"
)

type WebhookHandler struct {
	userService    *services.UserService
	billingService *services.BillingService
}

func NewWebhookHandler(userService *services.UserService, billingService *services.BillingService) *WebhookHandler {
	return &WebhookHandler{
		userService:    userService,
		billingService: billingService,
	}
}

// HandleStripeWebhook processes billing events sent by Stripe.
//
// Signature or payload failures are hard 400s and nothing is processed.
// Once the event is verified, every processing failure is logged and
// acknowledged with a 200 anyway: a 5xx here would make Stripe redeliver an
// event whose side effects may already be partially applied, and the
// handlers are idempotent but the retry storm is not worth it.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading request body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if endpointSecret == "" {
		log.Println("STRIPE_WEBHOOK_SECRET is not set")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), endpointSecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	log.Printf("Received stripe webhook event: %s", event.Type)

	if err := h.dispatchStripeEvent(r.Context(), event); err != nil {
		log.Printf("Error processing stripe event %s: %v", event.Type, err)
		middleware.RecordWebhookEvent(string(event.Type), "soft_error")
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *WebhookHandler) dispatchStripeEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		if err := h.billingService.HandleCheckoutCompleted(ctx, &session); err != nil {
			return err
		}
		middleware.RecordWebhookEvent(string(event.Type), "processed")

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		if err := h.billingService.HandleSubscriptionUpdated(ctx, &sub); err != nil {
			return err
		}
		middleware.RecordWebhookEvent(string(event.Type), "processed")

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		if err := h.billingService.HandleSubscriptionDeleted(ctx, &sub); err != nil {
			return err
		}
		middleware.RecordWebhookEvent(string(event.Type), "processed")

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		if invoice.Subscription == nil {
			middleware.RecordWebhookEvent(string(event.Type), "ignored")
			return nil
		}
		if err := h.billingService.HandleInvoicePaid(ctx, invoice.Subscription.ID); err != nil {
			return err
		}
		middleware.RecordWebhookEvent(string(event.Type), "processed")

	default:
		// Unknown event kinds are acknowledged so Stripe stops sending them.
		log.Printf("Ignoring stripe webhook event type: %s", event.Type)
		middleware.RecordWebhookEvent(string(event.Type), "ignored")
	}

	return nil
}

// HandleClerkWebhook keeps the local account store in sync with the Clerk
// identity provider.
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verifyClerkSignature(w, r)
	if !ok {
		return
	}

	var event clerktypes.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing clerk webhook: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Printf("Received clerk webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(ctx, event.Data); err != nil {
			log.Printf("Error handling user.created: %v", err)
			middleware.RecordWebhookEvent(event.Type, "soft_error")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
	case "user.updated":
		if err := h.handleUserUpdated(ctx, event.Data); err != nil {
			log.Printf("Error handling user.updated: %v", err)
			middleware.RecordWebhookEvent(event.Type, "soft_error")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			log.Printf("Error handling user.deleted: %v", err)
			middleware.RecordWebhookEvent(event.Type, "soft_error")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}
	default:
		log.Printf("Ignoring clerk webhook event type: %s", event.Type)
		middleware.RecordWebhookEvent(event.Type, "ignored")
		respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	middleware.RecordWebhookEvent(event.Type, "processed")
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerktypes.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email := ""
	emailVerified := false
	if len(userData.EmailAddresses) > 0 {
		email = userData.EmailAddresses[0].EmailAddress
		emailVerified = userData.EmailAddresses[0].Verification.Status == "verified"
	}
	if email == "" {
		return fmt.Errorf("user.created event for %s carries no email address", userData.ID)
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	created, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create user in database: %w", err)
	}

	if emailVerified {
		if err := h.userService.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			log.Printf("Failed to mark email verified for %s: %v", userData.ID, err)
		}
	}

	log.Printf("Successfully created user: %s (Clerk ID: %s)", created.Email, created.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerktypes.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	_, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	log.Printf("Successfully updated user: Clerk ID: %s", userData.ID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	if err := h.userService.DeleteUserByClerkID(ctx, userData.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Successfully deleted user: Clerk ID: %s", userData.ID)
	return nil
}

// verifyClerkSignature checks the svix signature scheme Clerk delivers with
// (v1, HMAC-SHA256 over "id.timestamp.body"). On failure it writes the
// response itself and returns ok=false.
func (h *WebhookHandler) verifyClerkSignature(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading clerk webhook body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return nil, false
	}

	webhookSecret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return body, true
	}

	svixID := r.Header.Get("svix-id")
	svixTimestamp := r.Header.Get("svix-timestamp")
	svixSignature := r.Header.Get("svix-signature")

	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		log.Println("Missing clerk webhook signature headers")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return nil, false
	}

	signedContent := fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(signedContent))
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	providedSignature := ""
	if len(svixSignature) > 3 && svixSignature[:3] == "v1," {
		providedSignature = svixSignature[3:]
	}

	if !hmac.Equal([]byte(expectedSignature), []byte(providedSignature)) {
		log.Println("Invalid clerk webhook signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return nil, false
	}

	return body, true
}
