package models

// Registration source tags, lowest precedence first. When a participant
// qualifies through more than one route, the highest-precedence source wins
// the tag (see services.SourcePrecedence).
const (
	SourceWildcard         = "wildcard"
	SourceOnlineTop3       = "online_league_top3"
	SourcePresencialTop3   = "presencial_league_top3"
	SourceChampionshipTop3 = "championship_top3"
	SourceManual           = "manual"
)

// Inscripcion is a confirmed participant↔event↔category registration.
// Unique per (participant, event, category); consolidation skips duplicates
// rather than erroring on them.
type Inscripcion struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ParticipantID string `json:"participant_id" gorm:"not null;uniqueIndex:idx_inscripcion_unique"`
	EventID       string `json:"event_id" gorm:"not null;uniqueIndex:idx_inscripcion_unique"`
	CategoryID    string `json:"category_id" gorm:"not null;uniqueIndex:idx_inscripcion_unique"`
	DisplayName   string `json:"display_name"`
	Source        string `json:"source" gorm:"not null;default:'manual'"`

	Timestamps
}

// TableName keeps the Spanish domain name for the registrations table.
func (Inscripcion) TableName() string { return "inscripciones" }
