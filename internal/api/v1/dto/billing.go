package dto

import "time"

type URLResponse struct {
	URL string `json:"url"`
}

// PlanResponseDTO describes the caller's current plan.
type PlanResponseDTO struct {
	Name                   string     `json:"name"`
	Slug                   string     `json:"slug"`
	Quota                  int        `json:"quota"`
	PagesPerPDF            int        `json:"pagesPerPdf"`
	MaxFileSizeMB          int        `json:"maxFileSizeMb"`
	IsSubscribed           bool       `json:"isSubscribed"`
	IsCanceled             bool       `json:"isCanceled"`
	StripeCurrentPeriodEnd *time.Time `json:"stripeCurrentPeriodEnd,omitempty"`
}
