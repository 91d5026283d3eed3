package models

import (
	"time"
)

// Event kinds — the four qualification tracks feeding the national final.
const (
	EventKindChampionship     = "championship"
	EventKindLeaguePresencial = "league_presencial"
	EventKindLeagueOnline     = "league_online"
	EventKindWildcardEvent    = "wildcard_event"
)

// Event is one edition of a competition (a league season, a wildcard open,
// or the championship itself).
type Event struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	Kind            string     `json:"kind" gorm:"not null;index"`
	Name            string     `json:"name" gorm:"not null"`
	Slug            string     `json:"slug" gorm:"index"`
	Year            int        `json:"year" gorm:"not null;index"`
	Description     string     `json:"description"`
	Rules           string     `json:"rules"`
	PosterURL       string     `json:"poster_url"`
	Status          string     `json:"status" gorm:"default:'draft'"` // draft, published, active, completed
	StartTime       time.Time  `json:"start_time" gorm:"not null"`
	EndTime         time.Time  `json:"end_time"`
	PublishedAt     *time.Time `json:"published_at,omitempty" gorm:"index"`
	PublishSchedule *time.Time `json:"publish_schedule,omitempty"`

	Categories []Category `json:"categories,omitempty" gorm:"foreignKey:EventID"`

	Timestamps
}

// Category scopes criteria, battles and registrations within an event.
type Category struct {
	ID      string `json:"id" gorm:"primaryKey"`
	EventID string `json:"event_id" gorm:"not null;index"`
	Name    string `json:"name" gorm:"not null"`

	Criterios []Criterio `json:"criterios,omitempty" gorm:"foreignKey:CategoryID"`

	Timestamps
}

// Criterio is a scoring rubric dimension with a maximum point value.
type Criterio struct {
	ID         string  `json:"id" gorm:"primaryKey"`
	CategoryID string  `json:"category_id" gorm:"not null;index"`
	Name       string  `json:"name" gorm:"not null"`
	MaxScore   float64 `json:"max_score" gorm:"not null"`
	SortOrder  int     `json:"sort_order" gorm:"column:sort_order;default:0"`

	Timestamps
}

// JudgeAssignment scopes which judges are expected to score a given
// (event, category, phase). declareWinner derives its completeness check
// from these rows.
type JudgeAssignment struct {
	ID         string `json:"id" gorm:"primaryKey"`
	EventID    string `json:"event_id" gorm:"not null;index:idx_judge_scope"`
	CategoryID string `json:"category_id" gorm:"not null;index:idx_judge_scope"`
	Phase      Phase  `json:"phase" gorm:"not null;index:idx_judge_scope"`
	JudgeID    string `json:"judge_id" gorm:"not null;index"`
	JudgeName  string `json:"judge_name"`

	Timestamps
}
