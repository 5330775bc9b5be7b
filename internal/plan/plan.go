// Package plan holds the static subscription tiers and resolves a user's
// current tier from their billing state.
package plan

import (
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
)

const (
	Free = "Free"
	Pro  = "Pro"
)

// gracePeriod keeps a subscription usable for a day past its period end so
// renewal webhooks have time to arrive.
const gracePeriod = 24 * time.Hour

type Plan struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Quota         int    `json:"quota"`
	PagesPerPDF   int    `json:"pagesPerPdf"`
	MaxFileSizeMB int    `json:"maxFileSizeMb"`
	PriceID       string `json:"-"`
}

// Table is the ordered list of plans offered.
type Table []Plan

// NewTable builds the plan table with the Stripe price configured for Pro.
func NewTable(proPriceID string) Table {
	return Table{
		{Name: Free, Slug: "free", Quota: 10, PagesPerPDF: 5, MaxFileSizeMB: 4},
		{Name: Pro, Slug: "pro", Quota: 50, PagesPerPDF: 25, MaxFileSizeMB: 16, PriceID: proPriceID},
	}
}

// ByName returns the plan with the given name.
func (t Table) ByName(name string) (Plan, bool) {
	for _, p := range t {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// ByPriceID returns the plan billed with the given Stripe price.
func (t Table) ByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range t {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// Free returns the free tier.
func (t Table) Free() Plan {
	p, _ := t.ByName(Free)
	return p
}

// Subscription describes the plan a user is on right now.
type Subscription struct {
	Plan
	IsSubscribed           bool       `json:"isSubscribed"`
	IsCanceled             bool       `json:"isCanceled"`
	StripeCustomerID       string     `json:"-"`
	StripeSubscriptionID   string     `json:"-"`
	StripeCurrentPeriodEnd *time.Time `json:"stripeCurrentPeriodEnd,omitempty"`
}

// Resolve computes the active subscription for u at now. A nil user is on
// the free tier.
func (t Table) Resolve(u *model.User, now time.Time) Subscription {
	sub := Subscription{Plan: t.Free()}
	if u == nil {
		return sub
	}
	if u.StripeCustomerID != nil {
		sub.StripeCustomerID = *u.StripeCustomerID
	}
	if u.StripeSubscriptionID != nil {
		sub.StripeSubscriptionID = *u.StripeSubscriptionID
	}
	sub.StripeCurrentPeriodEnd = u.StripeCurrentPeriodEnd

	if u.StripePriceID == nil || u.StripeCurrentPeriodEnd == nil {
		return sub
	}
	if !u.StripeCurrentPeriodEnd.Add(gracePeriod).After(now) {
		return sub
	}
	sub.IsSubscribed = true
	if p, ok := t.ByPriceID(*u.StripePriceID); ok {
		sub.Plan = p
	} else {
		sub.Plan, _ = t.ByName(Pro)
	}
	return sub
}

// ExceedsPages reports whether a document with pages pages is over the limit.
func (p Plan) ExceedsPages(pages int) bool {
	return pages > p.PagesPerPDF
}

// MaxFileSizeBytes is the upload size ceiling in bytes.
func (p Plan) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB) << 20
}
