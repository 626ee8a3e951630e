package domain

import "time"

// Domain contains core models shared by the campaign feature and the watcher.

// Campaign statuses accepted by the backend.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

type Campaign struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	LandingURL  string    `json:"landing_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Preview is filled client-side from the landing page; the backend never sends it.
	Preview *Preview `json:"preview,omitempty"`
}

// Preview is the landing page summary extracted from OG tags.
type Preview struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Creative is an uploaded asset attached to a campaign.
type Creative struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	FileName   string `json:"file_name"`
	URL        string `json:"url"`
}

// ValidStatus reports whether s is a known campaign status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusArchived:
		return true
	default:
		return false
	}
}
