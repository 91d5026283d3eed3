package models

// Wildcard statuses.
const (
	WildcardStatusPending  = "pending"
	WildcardStatusApproved = "approved"
	WildcardStatusRejected = "rejected"
)

// MaxClassifiedWildcards caps how many wildcard entrants an admin may flag as
// classified per event.
const MaxClassifiedWildcards = 7

// Wildcard is a video-submission qualification entry, outside the ranked
// league system. The intake UI lives in another service; this side only
// stores the submission and its curation state.
type Wildcard struct {
	ID            string `json:"id" gorm:"primaryKey"`
	EventID       string `json:"event_id" gorm:"not null;index"`
	CategoryID    string `json:"category_id" gorm:"not null;index"`
	ParticipantID string `json:"participant_id" gorm:"not null;index"`
	DisplayName   string `json:"display_name"`
	VideoURL      string `json:"video_url"`
	Status        string `json:"status" gorm:"not null;default:'pending'"`
	IsClassified  bool   `json:"is_classified" gorm:"default:false"`
	ReviewedBy    string `json:"reviewed_by,omitempty"`

	Timestamps
}
