package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	stripesub "github.com/stripe/stripe-go/v76/subscription"

	"finBriefAPI/internal/store"
	"finBriefAPI/internal/types/subscription"
	"finBriefAPI/internal/types/user"
)

// StripeGateway is the slice of the Stripe API the billing service touches.
// The production implementation calls Stripe; tests substitute a fake.
type StripeGateway interface {
	FetchSubscription(subscriptionID string) (*stripe.Subscription, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type stripeGateway struct{}

// NewStripeGateway returns the real Stripe-backed gateway. stripe.Key must
// be set before any call.
func NewStripeGateway() StripeGateway {
	return stripeGateway{}
}

func (stripeGateway) FetchSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return stripesub.Get(subscriptionID, nil)
}

func (stripeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return checkoutsession.New(params)
}

func (stripeGateway) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return portalsession.New(params)
}

// BillingConfig carries the provider-defined knobs for hosted sessions.
type BillingConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	ReturnURL  string
}

// BillingService reconciles Stripe webhook events into local subscription
// state and mints hosted checkout/portal sessions.
type BillingService struct {
	store   store.Store
	gateway StripeGateway
	config  BillingConfig
}

func NewBillingService(s store.Store, gateway StripeGateway, config BillingConfig) *BillingService {
	return &BillingService{
		store:   s,
		gateway: gateway,
		config:  config,
	}
}

// CreateCheckoutSession opens a hosted subscription checkout for the user.
// An already-linked Stripe customer is reused so Stripe does not mint a
// duplicate; otherwise the account email seeds the new customer.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, u *user.User) (*subscription.CheckoutSessionResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
	}
	if u.StripeCustomerID != "" {
		params.Customer = stripe.String(u.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(u.Email)
	}

	sess, err := s.gateway.NewCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &subscription.CheckoutSessionResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
	}, nil
}

// CreatePortalSession opens the Stripe billing portal for a user that has a
// linked customer.
func (s *BillingService) CreatePortalSession(ctx context.Context, u *user.User) (*subscription.PortalSessionResponse, error) {
	if u.StripeCustomerID == "" {
		return nil, errors.New("no stripe customer linked to account")
	}

	sess, err := s.gateway.NewPortalSession(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(u.StripeCustomerID),
		ReturnURL: stripe.String(s.config.ReturnURL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}

	return &subscription.PortalSessionResponse{URL: sess.URL}, nil
}

// HandleCheckoutCompleted reconciles a checkout.session.completed event.
// The purchaser is resolved by email; an unknown email is logged and
// dropped, since Stripe will not deliver a better-targeted retry. On
// success the customer link is written idempotently and the full
// subscription detail is fetched from Stripe (the one outbound call on the
// webhook path) to seed the local record.
func (s *BillingService) HandleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}
	if email == "" {
		log.Printf("No customer email in checkout session %s, dropping event", session.ID)
		return nil
	}
	if session.Customer == nil || session.Subscription == nil {
		return fmt.Errorf("checkout session %s missing customer or subscription reference", session.ID)
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("No user found for email %s, dropping checkout.session.completed", email)
			return nil
		}
		return fmt.Errorf("failed to resolve user by email: %w", err)
	}

	if err := s.store.SetStripeCustomerID(ctx, u.ID, session.Customer.ID); err != nil {
		return fmt.Errorf("failed to link stripe customer %s: %w", session.Customer.ID, err)
	}
	log.Printf("Linked user %s to stripe customer %s", u.ID, session.Customer.ID)

	sub, err := s.gateway.FetchSubscription(session.Subscription.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve subscription %s from stripe: %w", session.Subscription.ID, err)
	}

	record := &subscription.Subscription{
		UserID:               u.ID,
		StripeSubscriptionID: sub.ID,
		Status:               string(sub.Status),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		record.StripePriceID = sub.Items.Data[0].Price.ID
	}

	if err := s.store.UpsertSubscription(ctx, record); err != nil {
		return fmt.Errorf("failed to upsert subscription for user %s: %w", u.ID, err)
	}
	log.Printf("Created subscription record for user %s with status %s", u.ID, record.Status)
	return nil
}

// HandleSubscriptionUpdated overwrites status and period end from the event
// payload. No fetch: the event carries the whole subscription object.
func (s *BillingService) HandleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return fmt.Errorf("subscription %s event missing customer reference", sub.ID)
	}

	u, err := s.store.GetUserByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("No user found for stripe customer %s, dropping subscription update", sub.Customer.ID)
			return nil
		}
		return fmt.Errorf("failed to resolve user by stripe customer: %w", err)
	}

	if err := s.store.UpdateSubscriptionStatus(ctx, u.ID, string(sub.Status), time.Unix(sub.CurrentPeriodEnd, 0)); err != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", u.ID, err)
	}
	log.Printf("Updated subscription for user %s to status %s", u.ID, sub.Status)
	return nil
}

// HandleSubscriptionDeleted marks the subscription canceled. The record is
// kept, not deleted, and the period end comes from the event so a user who
// cancels mid-period keeps whatever end date Stripe reports.
func (s *BillingService) HandleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return fmt.Errorf("subscription %s event missing customer reference", sub.ID)
	}

	u, err := s.store.GetUserByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("No user found for stripe customer %s, dropping subscription delete", sub.Customer.ID)
			return nil
		}
		return fmt.Errorf("failed to resolve user by stripe customer: %w", err)
	}

	if err := s.store.UpdateSubscriptionStatus(ctx, u.ID, subscription.StatusCanceled, time.Unix(sub.CurrentPeriodEnd, 0)); err != nil {
		return fmt.Errorf("failed to cancel subscription for user %s: %w", u.ID, err)
	}
	log.Printf("Canceled subscription for user %s", u.ID)
	return nil
}

// HandleInvoicePaid refreshes the subscription record after a successful
// recurring payment. The invoice does not carry the new period end, so the
// current detail is fetched from Stripe.
func (s *BillingService) HandleInvoicePaid(ctx context.Context, subscriptionID string) error {
	sub, err := s.gateway.FetchSubscription(subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to retrieve subscription %s from stripe: %w", subscriptionID, err)
	}
	return s.HandleSubscriptionUpdated(ctx, sub)
}
