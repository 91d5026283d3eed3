package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"battle-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BracketService struct {
	DB      *gorm.DB
	Ranking *RankingService
}

func NewBracketService(db *gorm.DB, ranking *RankingService) *BracketService {
	return &BracketService{DB: db, Ranking: ranking}
}

// PlanBracket builds the seeded battles for one bracket column without
// touching storage. Rank i is paired with rank size-1-i (1 vs N seeding),
// producing size/2 battles with sequential order indices.
func PlanBracket(eventID, categoryID string, phase models.Phase, size int, ranking []RankedEntry) ([]models.Battle, error) {
	if size != 8 && size != 16 && size != 32 {
		return nil, validationf(fmt.Sprintf("unsupported bracket size %d (want 8, 16 or 32)", size))
	}
	if !models.IsEliminationPhase(phase) {
		return nil, validationf(fmt.Sprintf("phase %s cannot be seeded", phase))
	}
	if opening, _ := models.PhaseForBracketSize(size); opening != phase {
		return nil, validationf(fmt.Sprintf("a bracket of %d opens at %s, not %s", size, opening, phase))
	}
	if len(ranking) < size {
		return nil, ErrInsufficientParticipants
	}

	battles := make([]models.Battle, 0, size/2)
	for i := 0; i < size/2; i++ {
		top := ranking[i].ParticipantID
		bottom := ranking[size-1-i].ParticipantID
		battles = append(battles, models.Battle{
			ID:         uuid.NewString(),
			EventID:    eventID,
			CategoryID: categoryID,
			Phase:      phase,
			OrderIndex: i + 1,
			SlotAID:    &top,
			SlotBID:    &bottom,
		})
	}
	return battles, nil
}

// SuccessorOrder maps a battle's order index onto the order index of its
// destination battle in the next column.
func SuccessorOrder(orderIndex int) int { return (orderIndex-1)/2 + 1 }

// GenerateBracket serves POST /brackets. Seeding always reads the
// Preliminary ranking regardless of which column is being generated, and
// persists every battle in one transaction — or none of them.
func (s *BracketService) GenerateBracket(c *fiber.Ctx) error {
	type Req struct {
		EventID    string `json:"event_id"`
		CategoryID string `json:"category_id"`
		Phase      string `json:"phase"`
		Size       int    `json:"size"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.EventID == "" || req.CategoryID == "" || req.Phase == "" {
		return respondError(c, validationf("event_id, category_id and phase are required"))
	}
	phase := models.Phase(req.Phase)

	ranking, err := s.Ranking.Rank(req.EventID, req.CategoryID, models.PhasePreliminary)
	if err != nil {
		log.Printf("ERROR loading preliminary ranking for bracket: %v", err)
		return respondError(c, err)
	}

	battles, err := PlanBracket(req.EventID, req.CategoryID, phase, req.Size, ranking)
	if err != nil {
		return respondError(c, err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// The count guard below is only race-free behind a lock on the
		// event row; two unlocked transactions would both count zero. The
		// unique index on the battle column scope backstops this.
		var event models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&event, "id = ?", req.EventID).Error; err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.Battle{}).
			Where("event_id = ? AND category_id = ? AND phase = ?", req.EventID, req.CategoryID, phase).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyGenerated
		}
		for i := range battles {
			if err := tx.Create(&battles[i]).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyGenerated
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "event not found"})
		}
		if !errors.Is(err, ErrAlreadyGenerated) {
			log.Printf("ERROR generating bracket %s/%s/%s: %v", req.EventID, req.CategoryID, phase, err)
		}
		return respondError(c, err)
	}

	invalidateViews("battles:" + req.EventID + ":" + req.CategoryID)
	return c.Status(201).JSON(fiber.Map{
		"battles": battles,
		"count":   len(battles),
	})
}

// findOrCreateBattle returns the battle at (event, category, phase, order),
// creating an empty one when the column has not been materialized yet.
func findOrCreateBattle(tx *gorm.DB, eventID, categoryID string, phase models.Phase, orderIndex int) (*models.Battle, error) {
	var battle models.Battle
	err := tx.Where("event_id = ? AND category_id = ? AND phase = ? AND order_index = ?",
		eventID, categoryID, phase, orderIndex).
		First(&battle).Error
	if err == nil {
		return &battle, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	battle = models.Battle{
		ID:         uuid.NewString(),
		EventID:    eventID,
		CategoryID: categoryID,
		Phase:      phase,
		OrderIndex: orderIndex,
	}
	if err := tx.Create(&battle).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost a creation race; the row exists now, use it.
			err = tx.Where("event_id = ? AND category_id = ? AND phase = ? AND order_index = ?",
				eventID, categoryID, phase, orderIndex).
				First(&battle).Error
		}
		if err != nil {
			return nil, err
		}
	}
	return &battle, nil
}

// pickSlot decides where participantID lands in dest: the column to write,
// or "" when the participant already occupies a slot and the fill is a
// no-op. Both slots taken by others is a bracket corruption, not a retry.
func pickSlot(dest *models.Battle, participantID string) (string, error) {
	if dest.HasParticipant(participantID) {
		return "", nil
	}
	switch {
	case dest.SlotAID == nil:
		return "slot_a_id", nil
	case dest.SlotBID == nil:
		return "slot_b_id", nil
	}
	return "", fmt.Errorf("battle %s/%d already has both slots filled", dest.Phase, dest.OrderIndex)
}

// fillSlot places participantID into the first empty slot of dest.
// Idempotent: a participant already occupying a slot is left in place, so
// re-running progression never duplicates or overwrites an assignment.
func fillSlot(tx *gorm.DB, dest *models.Battle, participantID string) error {
	column, err := pickSlot(dest, participantID)
	if err != nil || column == "" {
		return err
	}
	if column == "slot_a_id" {
		dest.SlotAID = &participantID
	} else {
		dest.SlotBID = &participantID
	}
	return tx.Model(dest).Update(column, participantID).Error
}

// slotTarget names a successor battle slot a participant must be placed
// into.
type slotTarget struct {
	Phase         models.Phase
	OrderIndex    int
	ParticipantID string
}

// planAdvance lists the placements a decided battle produces: none for
// terminal battles, winner into SuccessorOrder of the next column for
// ordinary ones, and for semifinals the winner into the final plus the
// loser into the third-place battle.
func planAdvance(battle *models.Battle) ([]slotTarget, error) {
	if battle.WinnerID == nil {
		return nil, fmt.Errorf("battle %s has no winner to advance", battle.ID)
	}
	winner := *battle.WinnerID

	if battle.Phase == models.PhaseFinal || battle.Phase == models.PhaseThirdPlace {
		return nil, nil // terminal battles have no successor
	}

	if battle.Phase == models.PhaseSemifinal {
		loser := battleLoser(battle)
		if loser == "" {
			return nil, fmt.Errorf("semifinal %s winner does not match either slot", battle.ID)
		}
		return []slotTarget{
			{Phase: models.PhaseFinal, OrderIndex: 1, ParticipantID: winner},
			{Phase: models.PhaseThirdPlace, OrderIndex: 1, ParticipantID: loser},
		}, nil
	}

	next, ok := models.NextEliminationPhase(battle.Phase)
	if !ok {
		return nil, nil
	}
	return []slotTarget{
		{Phase: next, OrderIndex: SuccessorOrder(battle.OrderIndex), ParticipantID: winner},
	}, nil
}

// advanceWithinTx propagates a decided battle's result into the next column,
// materializing successor battles lazily.
func advanceWithinTx(tx *gorm.DB, battle *models.Battle) error {
	targets, err := planAdvance(battle)
	if err != nil {
		return err
	}
	for _, tg := range targets {
		dest, err := findOrCreateBattle(tx, battle.EventID, battle.CategoryID, tg.Phase, tg.OrderIndex)
		if err != nil {
			return err
		}
		if err := fillSlot(tx, dest, tg.ParticipantID); err != nil {
			return err
		}
	}
	return nil
}

// battleLoser returns the slot occupant that is not the winner, or "" when
// the winner does not occupy a slot.
func battleLoser(b *models.Battle) string {
	if b.WinnerID == nil || b.SlotAID == nil || b.SlotBID == nil {
		return ""
	}
	switch *b.WinnerID {
	case *b.SlotAID:
		return *b.SlotBID
	case *b.SlotBID:
		return *b.SlotAID
	}
	return ""
}

// Advance serves POST /battles/:id/advance — a retry hook for operators.
// declareWinner already advances in its own transaction; re-invoking here is
// harmless because slot filling checks before writing.
func (s *BracketService) Advance(c *fiber.Ctx) error {
	battleID := c.Params("id")
	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return respondError(c, err)
	}
	if !battle.Decided() {
		return respondError(c, ErrIncompleteJudging)
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return advanceWithinTx(tx, &battle)
	})
	if err != nil {
		log.Printf("ERROR advancing battle %s: %v", battleID, err)
		return respondError(c, err)
	}
	invalidateViews("battles:" + battle.EventID + ":" + battle.CategoryID)
	return c.JSON(fiber.Map{"message": "winner advanced", "battle_id": battleID})
}

// ListBattles serves GET /events/:id/battles/:category_id — the
// bracket board, ordered by phase then order index, with display names
// resolved for the rendering layer.
func (s *BracketService) ListBattles(c *fiber.Ctx) error {
	eventID := c.Params("id")
	categoryID := c.Params("category_id")

	q := s.DB.Where("event_id = ? AND category_id = ?", eventID, categoryID)
	if phase := c.Query("phase"); phase != "" {
		if !models.IsValidPhase(models.Phase(phase)) {
			return respondError(c, validationf("unknown phase: "+phase))
		}
		q = q.Where("phase = ?", phase)
	}

	var battles []models.Battle
	if err := q.Find(&battles).Error; err != nil {
		log.Printf("ERROR listing battles for %s/%s: %v", eventID, categoryID, err)
		return respondError(c, err)
	}
	sort.Slice(battles, func(i, j int) bool {
		pi, pj := models.PhaseIndex(battles[i].Phase), models.PhaseIndex(battles[j].Phase)
		if pi != pj {
			return pi < pj
		}
		return battles[i].OrderIndex < battles[j].OrderIndex
	})

	names := s.resolveSlotNames(battles)
	type BattleView struct {
		models.Battle
		SlotAName string `json:"slot_a_name,omitempty"`
		SlotBName string `json:"slot_b_name,omitempty"`
	}
	views := make([]BattleView, len(battles))
	for i, b := range battles {
		views[i] = BattleView{Battle: b}
		if b.SlotAID != nil {
			views[i].SlotAName = names[*b.SlotAID]
		}
		if b.SlotBID != nil {
			views[i].SlotBName = names[*b.SlotBID]
		}
	}
	return c.JSON(fiber.Map{"battles": views, "count": len(views)})
}

func (s *BracketService) resolveSlotNames(battles []models.Battle) map[string]string {
	ids := map[string]bool{}
	for _, b := range battles {
		if b.SlotAID != nil {
			ids[*b.SlotAID] = true
		}
		if b.SlotBID != nil {
			ids[*b.SlotBID] = true
		}
	}
	names := map[string]string{}
	if len(ids) == 0 {
		return names
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	var mirrors []models.ParticipantMirror
	if err := s.DB.Where("external_user_id IN ?", list).Find(&mirrors).Error; err != nil {
		log.Printf("WARN resolving participant names: %v", err)
		return names
	}
	for _, m := range mirrors {
		names[m.ExternalUserID] = m.DisplayName
	}
	return names
}
