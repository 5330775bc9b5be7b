package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/plan"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

type billingFixture struct {
	users *memUsers
	subs  *memSubscriptions
	api   *fakeStripe
	svc   *StripeService
}

func newBillingFixture(users ...*model.User) *billingFixture {
	periodEnd := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	fx := &billingFixture{
		users: newMemUsers(users...),
		subs:  &memSubscriptions{},
		api: &fakeStripe{subs: map[string]*stripe.Subscription{
			"sub_1": {
				ID:       "sub_1",
				Customer: &stripe.Customer{ID: "cus_1"},
				Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
					{Price: &stripe.Price{ID: "price_pro"}, CurrentPeriodEnd: periodEnd},
				}},
			},
		}},
	}
	plans := plan.NewTable("price_pro")
	subSvc := NewSubscriptionService(fx.users, fx.subs, plans, fx.api, zerolog.Nop())
	fx.svc = NewStripeService(fx.api, testWebhookSecret, "https://app.example", plans, fx.users, subSvc, zerolog.Nop())
	return fx
}

func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	fx := newBillingFixture(&model.User{ID: "owner"})
	payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_1",
		"object":       "checkout.session",
		"metadata":     map[string]string{"userId": "owner"},
		"subscription": "sub_1",
		"customer":     "cus_1",
	})

	require.NoError(t, fx.svc.HandleWebhook(context.Background(), payload, sig))
	require.Len(t, fx.subs.calls, 1)
	call := fx.subs.calls[0]
	require.Equal(t, "upsert", call.op)
	require.Equal(t, "owner", call.userID)
	require.Equal(t, "cus_1", call.customerID)
	require.Equal(t, "sub_1", call.subscriptionID)
	require.Equal(t, "price_pro", call.priceID)
	require.Equal(t, 2030, call.periodEnd.Year())
}

func TestWebhookInvoicePaidRenews(t *testing.T) {
	fx := newBillingFixture()
	payload, sig := signedEvent(t, "invoice.payment_succeeded", map[string]any{
		"id":     "in_1",
		"object": "invoice",
		"lines": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "il_1", "object": "line_item", "subscription": "sub_1"},
			},
		},
	})

	require.NoError(t, fx.svc.HandleWebhook(context.Background(), payload, sig))
	require.Len(t, fx.subs.calls, 1)
	require.Equal(t, "renew", fx.subs.calls[0].op)
	require.Equal(t, "sub_1", fx.subs.calls[0].subscriptionID)
}

func TestWebhookSubscriptionDeletedDowngrades(t *testing.T) {
	fx := newBillingFixture()
	payload, sig := signedEvent(t, "customer.subscription.deleted", map[string]any{
		"id":     "sub_1",
		"object": "subscription",
	})

	require.NoError(t, fx.svc.HandleWebhook(context.Background(), payload, sig))
	require.Equal(t, []subCall{{op: "clear", subscriptionID: "sub_1"}}, fx.subs.calls)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fx := newBillingFixture()
	payload, _ := signedEvent(t, "customer.subscription.deleted", map[string]any{"id": "sub_1", "object": "subscription"})

	err := fx.svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidWebhook)
	require.Empty(t, fx.subs.calls)
}

func TestCreateCheckoutSession(t *testing.T) {
	fx := newBillingFixture(&model.User{ID: "owner", Email: "owner@example.com"})

	url, err := fx.svc.CreateCheckoutSession(context.Background(), "owner")
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.test/session", url)
	require.Equal(t, 1, fx.api.createdCustomer)
	require.Equal(t, "cus_new", fx.users.customers["owner"])

	params := fx.api.checkoutParams
	require.Equal(t, "owner", params.Metadata["userId"])
	require.Equal(t, "price_pro", *params.LineItems[0].Price)
	require.Equal(t, "https://app.example/dashboard/billing", *params.SuccessURL)
}

func TestCreateBillingSessionRoutesSubscribersToPortal(t *testing.T) {
	customer := "cus_1"
	subID := "sub_1"
	price := "price_pro"
	end := time.Now().Add(24 * time.Hour)
	fx := newBillingFixture(
		&model.User{ID: "pro", StripeCustomerID: &customer, StripeSubscriptionID: &subID, StripePriceID: &price, StripeCurrentPeriodEnd: &end},
		&model.User{ID: "free", Email: "free@example.com"},
	)
	ctx := context.Background()

	url, err := fx.svc.CreateBillingSession(ctx, "pro")
	require.NoError(t, err)
	require.Equal(t, "https://billing.stripe.test/portal", url)
	require.Equal(t, "cus_1", fx.api.portalCustomer)

	url, err = fx.svc.CreateBillingSession(ctx, "free")
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.test/session", url)

	_, err = fx.svc.CreatePortalSession(ctx, "free")
	require.ErrorIs(t, err, ErrNoCustomer)
}

func TestGetUserSubscriptionPlan(t *testing.T) {
	subID := "sub_1"
	price := "price_pro"
	end := time.Now().Add(time.Hour)
	fx := newBillingFixture(&model.User{ID: "pro", StripeSubscriptionID: &subID, StripePriceID: &price, StripeCurrentPeriodEnd: &end})
	fx.api.subs["sub_1"].CancelAtPeriodEnd = true
	subSvc := NewSubscriptionService(fx.users, fx.subs, plan.NewTable("price_pro"), fx.api, zerolog.Nop())

	sub, err := subSvc.GetUserSubscriptionPlan(context.Background(), "pro")
	require.NoError(t, err)
	require.True(t, sub.IsSubscribed)
	require.True(t, sub.IsCanceled)
	require.Equal(t, plan.Pro, sub.Name)

	sub, err = subSvc.GetUserSubscriptionPlan(context.Background(), "nobody")
	require.NoError(t, err)
	require.False(t, sub.IsSubscribed)
	require.Equal(t, plan.Free, sub.Name)
}
