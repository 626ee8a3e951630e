package publishers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/campaign-desk/internal/domain"
)

// KindCampaignChanged marks an event emitted for a new campaign revision.
const KindCampaignChanged = "campaign.changed"

// attrTargetID is the message attribute carrying Event.TargetID on queue sinks.
const attrTargetID = "target_id"

// Event represents the payload published downstream.
type Event struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	TargetID    string          `json:"target_id"`
	TargetName  string          `json:"target_name"`
	Revision    string          `json:"revision"`
	Campaign    domain.Campaign `json:"campaign"`
	ClockSkewMs int64           `json:"clock_skew_ms"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// NewEvent builds a campaign.changed event with a fresh id.
func NewEvent(targetID, targetName, revision string, c domain.Campaign, skew time.Duration) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        KindCampaignChanged,
		TargetID:    targetID,
		TargetName:  targetName,
		Revision:    revision,
		Campaign:    c,
		ClockSkewMs: skew.Milliseconds(),
		ObservedAt:  time.Now().UTC(),
	}
}
