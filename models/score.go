package models

// Score statuses. A DRAFT is the judge's autosaved work in progress; once
// SUBMITTED it is immutable outside an admin override.
const (
	ScoreStatusDraft     = "draft"
	ScoreStatusSubmitted = "submitted"
)

// Score is one judge's sheet for one participant in one round. Preliminary
// showcase scores carry a nil BattleID; battle scores reference their battle.
type Score struct {
	ID            string  `json:"id" gorm:"primaryKey"`
	EventID       string  `json:"event_id" gorm:"not null;index:idx_score_scope"`
	CategoryID    string  `json:"category_id" gorm:"not null;index:idx_score_scope"`
	Phase         Phase   `json:"phase" gorm:"not null;index:idx_score_scope"`
	Round         int     `json:"round" gorm:"not null;default:1"`
	BattleID      *string `json:"battle_id,omitempty" gorm:"index"`
	JudgeID       string  `json:"judge_id" gorm:"not null;index"`
	ParticipantID string  `json:"participant_id" gorm:"not null;index"`
	Status        string  `json:"status" gorm:"not null;default:'draft'"`
	TotalScore    float64 `json:"total_score" gorm:"not null;default:0"`

	Details []ScoreDetail `json:"details,omitempty" gorm:"foreignKey:ScoreID"`

	Timestamps
}

// ScoreDetail is one (criterio, value) line of a score sheet.
type ScoreDetail struct {
	ID         string  `json:"id" gorm:"primaryKey"`
	ScoreID    string  `json:"score_id" gorm:"not null;index"`
	CriterioID string  `json:"criterio_id" gorm:"not null;index"`
	Value      float64 `json:"value" gorm:"not null"`
}

// Sum returns the total of the detail values. Persisted TotalScore is always
// recomputed from details on write, never trusted from input.
func SumDetails(details []ScoreDetail) float64 {
	var total float64
	for _, d := range details {
		total += d.Value
	}
	return total
}
