package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"finBriefAPI/internal/store"
)

// fakeGateway stands in for Stripe. Subscriptions are served from a map;
// fetchErr simulates an API outage.
type fakeGateway struct {
	subscriptions map[string]*stripe.Subscription
	fetchErr      error
	fetchCalls    int
	checkout      *stripe.CheckoutSession
	portal        *stripe.BillingPortalSession
}

func (g *fakeGateway) FetchSubscription(subscriptionID string) (*stripe.Subscription, error) {
	g.fetchCalls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func (g *fakeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if g.checkout == nil {
		return nil, errors.New("checkout unavailable")
	}
	return g.checkout, nil
}

func (g *fakeGateway) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if g.portal == nil {
		return nil, errors.New("portal unavailable")
	}
	return g.portal, nil
}

func stripeSubscription(id, customerID, status string, periodEnd int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:               id,
		Customer:         &stripe.Customer{ID: customerID},
		Status:           stripe.SubscriptionStatus(status),
		CurrentPeriodEnd: periodEnd,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_1"}},
			},
		},
	}
}

func checkoutSession(customerID, subscriptionID, email string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            "cs_1",
		Customer:      &stripe.Customer{ID: customerID},
		Subscription:  &stripe.Subscription{ID: subscriptionID},
		CustomerEmail: email,
	}
}

func newBillingFixture(t *testing.T) (*BillingService, *store.MemoryStore, *fakeGateway) {
	t.Helper()
	memStore := store.NewMemoryStore()
	gateway := &fakeGateway{subscriptions: make(map[string]*stripe.Subscription)}
	svc := NewBillingService(memStore, gateway, BillingConfig{
		PriceID:    "price_1",
		SuccessURL: "http://localhost:5173/success",
		CancelURL:  "http://localhost:5173/cancel",
		ReturnURL:  "http://localhost:5173/dashboard",
	})
	return svc, memStore, gateway
}

const (
	t1 = int64(1750000000)
	t2 = int64(1760000000)
)

func TestHandleCheckoutCompletedLinksAndCreates(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")

	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)

	err := svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "a@example.com"))
	require.NoError(t, err)

	linked, err := memStore.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", linked.StripeCustomerID)

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "price_1", sub.StripePriceID)
	assert.Equal(t, "active", sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(time.Unix(t1, 0)))
}

func TestHandleCheckoutCompletedUnknownEmailDropped(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)

	// Unknown purchaser: the event is dropped without error and nothing is
	// written, not even the gateway fetch.
	err := svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "stranger@example.com"))
	require.NoError(t, err)
	assert.Zero(t, gateway.fetchCalls)

	_, err = memStore.GetUserByStripeCustomerID(ctx, "cus_1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleCheckoutCompletedFallsBackToCustomerDetails(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)

	session := checkoutSession("cus_1", "sub_1", "")
	session.CustomerDetails = &stripe.CheckoutSessionCustomerDetails{Email: "a@example.com"}

	require.NoError(t, svc.HandleCheckoutCompleted(ctx, session))

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
}

func TestHandleCheckoutCompletedGatewayFailure(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.fetchErr = errors.New("stripe is down")

	err := svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "a@example.com"))
	require.Error(t, err)

	// Customer link already happened, subscription record did not.
	linked, err := memStore.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", linked.StripeCustomerID)

	_, err = memStore.GetSubscriptionByUserID(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleCheckoutCompletedDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)

	session := checkoutSession("cus_1", "sub_1", "a@example.com")
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, session))
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, session))

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, "active", sub.Status)
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "a@example.com")))

	// Status and period end come straight from the event payload.
	err := svc.HandleSubscriptionUpdated(ctx, stripeSubscription("sub_1", "cus_1", "past_due", t2))
	require.NoError(t, err)

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "past_due", sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(time.Unix(t2, 0)))
}

func TestHandleSubscriptionUpdatedUnlinkedCustomer(t *testing.T) {
	ctx := context.Background()
	svc, memStore, _ := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")

	// No user carries cus_9, so the event is a logged no-op.
	err := svc.HandleSubscriptionUpdated(ctx, stripeSubscription("sub_9", "cus_9", "active", t1))
	require.NoError(t, err)

	_, err = memStore.GetSubscriptionByUserID(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "a@example.com")))

	// Deletion is a status transition, keyed to the event's period end.
	deleted := stripeSubscription("sub_1", "cus_1", "canceled", t2)
	require.NoError(t, svc.HandleSubscriptionDeleted(ctx, deleted))

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(time.Unix(t2, 0)))

	assert.False(t, NewUserService(memStore).IsEntitled(ctx, u.ID))
}

func TestHandleInvoicePaidRefreshesFromGateway(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t1)
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, checkoutSession("cus_1", "sub_1", "a@example.com")))

	// Renewal moved the period end; invoice handling re-fetches the detail.
	gateway.subscriptions["sub_1"] = stripeSubscription("sub_1", "cus_1", "active", t2)
	require.NoError(t, svc.HandleInvoicePaid(ctx, "sub_1"))

	sub, err := memStore.GetSubscriptionByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodEnd.Equal(time.Unix(t2, 0)))
}

func TestCreateCheckoutSessionPrefersLinkedCustomer(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.checkout = &stripe.CheckoutSession{ID: "cs_9", URL: "https://checkout.stripe.com/cs_9"}

	resp, err := svc.CreateCheckoutSession(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "cs_9", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/cs_9", resp.CheckoutURL)
}

func TestCreatePortalSessionRequiresLinkedCustomer(t *testing.T) {
	ctx := context.Background()
	svc, memStore, gateway := newBillingFixture(t)
	u := createUser(t, memStore, "clerk_a", "a@example.com")
	gateway.portal = &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p_1"}

	_, err := svc.CreatePortalSession(ctx, u)
	assert.Error(t, err)

	require.NoError(t, memStore.SetStripeCustomerID(ctx, u.ID, "cus_1"))
	u.StripeCustomerID = "cus_1"

	resp, err := svc.CreatePortalSession(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p_1", resp.URL)
}
