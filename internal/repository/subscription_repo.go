package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository writes Stripe billing state onto users.
type SubscriptionRepository interface {
	// UpsertStripeSubscription records a new or renewed subscription for a user.
	UpsertStripeSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID string, periodEnd time.Time) error
	// UpdatePeriodBySubscriptionID extends the period of an existing subscription.
	UpdatePeriodBySubscriptionID(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error
	// ClearSubscription drops a deleted subscription, returning the user to the free tier.
	ClearSubscription(ctx context.Context, subscriptionID string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) UpsertStripeSubscription(ctx context.Context, userID, customerID, subscriptionID, priceID string, periodEnd time.Time) error {
	const q = `
		UPDATE users
		SET stripe_customer_id = $2,
			stripe_subscription_id = $3,
			stripe_price_id = $4,
			stripe_current_period_end = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, q, userID, customerID, subscriptionID, priceID, periodEnd)
	if err != nil {
		return fmt.Errorf("upsert stripe subscription for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepo) UpdatePeriodBySubscriptionID(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error {
	const q = `
		UPDATE users
		SET stripe_price_id = $2,
			stripe_current_period_end = $3
		WHERE stripe_subscription_id = $1
	`
	tag, err := r.pool.Exec(ctx, q, subscriptionID, priceID, periodEnd)
	if err != nil {
		return fmt.Errorf("updating period for subscription %s: %w", subscriptionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", subscriptionID, ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepo) ClearSubscription(ctx context.Context, subscriptionID string) error {
	const q = `
		UPDATE users
		SET stripe_subscription_id = NULL,
			stripe_price_id = NULL,
			stripe_current_period_end = NULL
		WHERE stripe_subscription_id = $1
	`
	if _, err := r.pool.Exec(ctx, q, subscriptionID); err != nil {
		return fmt.Errorf("clearing subscription %s: %w", subscriptionID, err)
	}
	return nil
}
