package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/plan"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrInvalidWebhook marks webhook payloads that fail verification or decoding.
	ErrInvalidWebhook = errors.New("invalid stripe webhook")
	ErrNoCustomer     = errors.New("no stripe customer for user")
)

// StripeAPI is the subset of Stripe used for billing.
type StripeAPI interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type stripeClient struct{}

// NewStripeAPI sets the global Stripe key and returns the live API.
func NewStripeAPI(secretKey string) StripeAPI {
	stripe.Key = secretKey
	return stripeClient{}
}

func (stripeClient) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	cust, err := customerpkg.New(&stripe.CustomerParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"userId": userID},
	})
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (stripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (string, error) {
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (stripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	sess, err := billingsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func (stripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return subscriptionpkg.Get(subscriptionID, nil)
}

// StripeService manages Stripe integration
type StripeService struct {
	api           StripeAPI
	webhookSecret string
	returnURL     string
	plans         plan.Table
	userRepo      repository.UserRepository
	subSvc        SubscriptionService
	logger        zerolog.Logger
}

// NewStripeService returns the billing service with a scoped logger. Checkout
// and portal sessions return to appBaseURL + /dashboard/billing.
func NewStripeService(api StripeAPI, webhookSecret, appBaseURL string, plans plan.Table, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	return &StripeService{
		api:           api,
		webhookSecret: webhookSecret,
		returnURL:     appBaseURL + "/dashboard/billing",
		plans:         plans,
		userRepo:      userRepo,
		subSvc:        subSvc,
		logger:        logger.With().Str("service", "StripeService").Logger(),
	}
}

func (s *StripeService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.api.CreateCustomer(ctx, user.Email, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.ID, customerID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return customerID, nil
}

// CreateCheckoutSession starts a Stripe Checkout for the Pro plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	pro, ok := s.plans.ByName(plan.Pro)
	if !ok || pro.PriceID == "" {
		return "", fmt.Errorf("pro plan has no stripe price configured")
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(pro.PriceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(s.returnURL),
		CancelURL:          stripe.String(s.returnURL),
		Metadata:           map[string]string{"userId": userID},
	}
	url, err := s.api.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return url, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	url, err := s.api.CreatePortalSession(ctx, *user.StripeCustomerID, s.returnURL)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return url, nil
}

// CreateBillingSession sends subscribers to the portal and everyone else to checkout.
func (s *StripeService) CreateBillingSession(ctx context.Context, userID string) (string, error) {
	sub, err := s.subSvc.GetUserSubscriptionPlan(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub.IsSubscribed && sub.StripeCustomerID != "" {
		return s.CreatePortalSession(ctx, userID)
	}
	return s.CreateCheckoutSession(ctx, userID)
}

// HandleWebhook verifies and applies a Stripe event. Verification and decode
// failures wrap ErrInvalidWebhook.
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook received")

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: checkout.session: %v", ErrInvalidWebhook, err)
		}
		return s.onCheckoutCompleted(ctx, &cs)
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("%w: invoice: %v", ErrInvalidWebhook, err)
		}
		return s.onInvoicePaid(ctx, &invoice)
	case "customer.subscription.updated":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %v", ErrInvalidWebhook, err)
		}
		priceID, end, err := subscriptionTerms(&ss)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
		}
		return s.subSvc.RenewStripeSubscription(ctx, ss.ID, priceID, end)
	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			return fmt.Errorf("%w: subscription: %v", ErrInvalidWebhook, err)
		}
		return s.subSvc.DowngradeToFreePlan(ctx, ss.ID)
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	return nil
}

func (s *StripeService) onCheckoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	userID := cs.Metadata["userId"]
	if userID == "" {
		// Not one of ours.
		s.logger.Warn().Str("checkout_session_id", cs.ID).Msg("Missing userId in checkout session metadata")
		return nil
	}
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		return fmt.Errorf("%w: checkout session %s has no subscription", ErrInvalidWebhook, cs.ID)
	}

	sub, err := s.api.GetSubscription(ctx, cs.Subscription.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription details")
		return fmt.Errorf("fetch subscription %s: %w", cs.Subscription.ID, err)
	}
	priceID, end, err := subscriptionTerms(sub)
	if err != nil {
		return err
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	} else if cs.Customer != nil {
		customerID = cs.Customer.ID
	}

	s.logger.Info().Str("subscription_id", sub.ID).Str("price_id", priceID).Str("user_id", userID).Msg("Checkout completed")
	return s.subSvc.UpsertStripeSubscription(ctx, userID, customerID, sub.ID, priceID, end)
}

func (s *StripeService) onInvoicePaid(ctx context.Context, invoice *stripe.Invoice) error {
	var subID string
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Subscription != nil && line.Subscription.ID != "" {
				subID = line.Subscription.ID
				break
			}
		}
	}
	if subID == "" {
		s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping subscription update")
		return nil
	}

	sub, err := s.api.GetSubscription(ctx, subID)
	if err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to fetch subscription for renewal")
		return fmt.Errorf("fetch subscription %s: %w", subID, err)
	}
	priceID, end, err := subscriptionTerms(sub)
	if err != nil {
		return err
	}
	err = s.subSvc.RenewStripeSubscription(ctx, subID, priceID, end)
	if errors.Is(err, repository.ErrNotFound) {
		// The first invoice can arrive before checkout.session.completed.
		s.logger.Info().Str("subscription_id", subID).Msg("Renewal for unknown subscription; waiting for checkout")
		return nil
	}
	return err
}

// subscriptionTerms reads the price and period end from the first item.
func subscriptionTerms(sub *stripe.Subscription) (string, time.Time, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return "", time.Time{}, fmt.Errorf("subscription %s has no items", sub.ID)
	}
	item := sub.Items.Data[0]
	if item.Price == nil || item.Price.ID == "" {
		return "", time.Time{}, fmt.Errorf("subscription %s has no price", sub.ID)
	}
	return item.Price.ID, time.Unix(item.CurrentPeriodEnd, 0).UTC(), nil
}
