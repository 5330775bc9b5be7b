package service

import (
	"context"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/plan"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	// GetUserSubscriptionPlan resolves the caller's plan. Unknown users are on the free tier.
	GetUserSubscriptionPlan(ctx context.Context, userID string) (*plan.Subscription, error)
	UpsertStripeSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID string, periodEnd time.Time) error
	RenewStripeSubscription(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error
	DowngradeToFreePlan(ctx context.Context, subscriptionID string) error
}

type subscriptionService struct {
	userRepo repository.UserRepository
	repo     repository.SubscriptionRepository
	plans    plan.Table
	billing  StripeAPI
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
// billing may be nil, in which case cancellation state is not looked up.
func NewSubscriptionService(userRepo repository.UserRepository, repo repository.SubscriptionRepository, plans plan.Table, billing StripeAPI, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		userRepo: userRepo,
		repo:     repo,
		plans:    plans,
		billing:  billing,
		now:      time.Now,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetUserSubscriptionPlan(ctx context.Context, userID string) (*plan.Subscription, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for plan resolution")
		return nil, err
	}
	sub := s.plans.Resolve(u, s.now())

	if sub.IsSubscribed && sub.StripeSubscriptionID != "" && s.billing != nil {
		remote, err := s.billing.GetSubscription(ctx, sub.StripeSubscriptionID)
		if err != nil {
			// Plan limits do not depend on the cancel flag.
			s.logger.Warn().Err(err).Str("subscription_id", sub.StripeSubscriptionID).Msg("Failed to fetch cancellation state")
		} else {
			sub.IsCanceled = remote.CancelAtPeriodEnd
		}
	}
	return &sub, nil
}

func (s *subscriptionService) UpsertStripeSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID string, periodEnd time.Time) error {
	if err := s.repo.UpsertStripeSubscription(ctx, userID, customerID, subscriptionID, priceID, periodEnd); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("price_id", priceID).Msg("Failed to upsert stripe subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) RenewStripeSubscription(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error {
	if err := s.repo.UpdatePeriodBySubscriptionID(ctx, subscriptionID, priceID, periodEnd); err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Failed to renew stripe subscription")
		return err
	}
	return nil
}

// DowngradeToFreePlan drops a deleted subscription so the user falls back to the free tier.
func (s *subscriptionService) DowngradeToFreePlan(ctx context.Context, subscriptionID string) error {
	if err := s.repo.ClearSubscription(ctx, subscriptionID); err != nil {
		s.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Failed to downgrade subscription to free plan")
		return err
	}
	return nil
}
