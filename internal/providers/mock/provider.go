// Package mock implements the local analysis provider: a fixed, offline
// result used for development and as the default backend.
package mock

import (
	"context"
	"time"

	"breeze/internal/analysis"
	"breeze/internal/domain"
)

// Name is the provider identifier reported in analysis runs.
const Name = "local"

// Provider returns the same three special points for every recording.
type Provider struct {
	delay time.Duration
	now   func() time.Time
}

func NewProvider(delay time.Duration) *Provider {
	return &Provider{delay: delay, now: time.Now}
}

func (p *Provider) Name() string { return Name }

// Analyze waits for the simulated delay and returns the canned points. It
// only fails when ctx ends first.
func (p *Provider) Analyze(ctx context.Context, recording domain.Recording) ([]domain.SpecialPoint, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	now := p.now()
	high, medium := 0.92, 0.81
	return []domain.SpecialPoint{
		{
			ID:              analysis.PointID(now, 0),
			Type:            domain.PointRequirement,
			Title:           "Product certification needed",
			Description:     "The client requires certified products before placing an order.",
			Context:         "We need organic certification",
			Timestamp:       now,
			Importance:      domain.ImportanceHigh,
			RelatedSegments: []string{},
			ActionRequired:  true,
			FollowUpNeeded:  true,
			Confidence:      &high,
		},
		{
			ID:              analysis.PointID(now, 1),
			Type:            domain.PointConcern,
			Title:           "Pricing sensitivity",
			Description:     "The client hinted that pricing may block the deal.",
			Context:         "The price seems higher than what we pay today",
			Timestamp:       now,
			Importance:      domain.ImportanceMedium,
			RelatedSegments: []string{},
			ActionRequired:  false,
			FollowUpNeeded:  true,
			Confidence:      &medium,
		},
		{
			ID:              analysis.PointID(now, 2),
			Type:            domain.PointOpportunity,
			Title:           "Volume expansion",
			Description:     "The client plans to grow order volume next quarter.",
			Context:         "We expect to double our orders next quarter",
			Timestamp:       now,
			Importance:      domain.ImportanceHigh,
			RelatedSegments: []string{},
			ActionRequired:  false,
			FollowUpNeeded:  true,
			Confidence:      &high,
		},
	}, nil
}
