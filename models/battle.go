package models

// Battle is one head-to-head matchup in a bracket column. Created only by
// bracket seeding (or lazily by progression for successor columns), slots
// filled only by progression, winner set only by declareWinner. Never
// deleted in normal operation.
type Battle struct {
	ID         string `json:"id" gorm:"primaryKey"`
	EventID    string `json:"event_id" gorm:"not null;index:idx_battle_scope;uniqueIndex:idx_battle_order"`
	CategoryID string `json:"category_id" gorm:"not null;index:idx_battle_scope;uniqueIndex:idx_battle_order"`
	Phase      Phase  `json:"phase" gorm:"not null;index:idx_battle_scope;uniqueIndex:idx_battle_order"`
	OrderIndex int    `json:"order_index" gorm:"not null;uniqueIndex:idx_battle_order"` // 1-based within the column

	SlotAID *string `json:"slot_a_id,omitempty"`
	SlotBID *string `json:"slot_b_id,omitempty"`

	WinnerID    *string `json:"winner_id,omitempty"`
	WinnerVotes int     `json:"winner_votes" gorm:"default:0"`
	LoserVotes  int     `json:"loser_votes" gorm:"default:0"`

	Timestamps
}

// HasParticipant reports whether id occupies one of the battle's slots.
func (b *Battle) HasParticipant(id string) bool {
	return (b.SlotAID != nil && *b.SlotAID == id) || (b.SlotBID != nil && *b.SlotBID == id)
}

// Decided reports whether a winner has been declared.
func (b *Battle) Decided() bool { return b.WinnerID != nil }
