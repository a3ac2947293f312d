package handlers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"finBriefAPI/middleware"
	"finBriefAPI/services"
)

type BillingHandler struct {
	userService    *services.UserService
	billingService *services.BillingService
}

func NewBillingHandler(userService *services.UserService, billingService *services.BillingService) *BillingHandler {
	return &BillingHandler{
		userService:    userService,
		billingService: billingService,
	}
}

// CreateCheckoutSession returns a hosted Stripe checkout URL for the
// authenticated user.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	session, err := h.billingService.CreateCheckoutSession(ctx, u)
	if err != nil {
		log.Printf("Checkout session creation failed for user %s: %v", u.ID, err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// CreatePortalSession returns a Stripe billing portal URL so the user can
// manage or cancel the subscription.
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if u.StripeCustomerID == "" {
		respondWithError(w, http.StatusBadRequest, "No Stripe customer found")
		return
	}

	session, err := h.billingService.CreatePortalSession(ctx, u)
	if err != nil {
		log.Printf("Portal session creation failed for user %s: %v", u.ID, err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// GetConfig exposes the publishable key the frontend needs to mount Stripe.
func (h *BillingHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"stripePublishableKey": os.Getenv("STRIPE_PUBLISHABLE_KEY"),
	})
}
