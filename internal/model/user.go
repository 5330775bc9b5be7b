package model

import "time"

// User mirrors an identity from the auth provider plus its billing state.
type User struct {
	ID                     string     `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	StripeCustomerID       *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID   *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripePriceID          *string    `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	StripeCurrentPeriodEnd *time.Time `db:"stripe_current_period_end" json:"stripe_current_period_end,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
}
