package watch

import (
	"context"

	"github.com/samvad-hq/campaign-desk/internal/domain"
	"github.com/samvad-hq/campaign-desk/pkg/publishers"
	"github.com/samvad-hq/campaign-desk/pkg/targets"
)

// CampaignPreviewer enriches changed campaigns with landing-page metadata.
type CampaignPreviewer interface {
	Enrich(ctx context.Context, t targets.Target, campaigns []domain.Campaign) []domain.Campaign
}

// EventPublisher publishes change events downstream and reports how many
// sinks accepted each one.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
