package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"battle-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// autosaveRegistry tracks the in-flight draft write of each judging session.
// A session is one (judge, battle, participant, round). Submitting cancels
// the pending autosave so a late draft can never land on top of a submitted
// score — this is a write discipline, not a database lock.
type autosaveRegistry struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]autosaveEntry
}

type autosaveEntry struct {
	gen    uint64
	cancel context.CancelFunc
}

func newAutosaveRegistry() *autosaveRegistry {
	return &autosaveRegistry{pending: map[string]autosaveEntry{}}
}

// Begin registers a new in-flight draft write for key, cancelling any
// previous one, and returns the context the write must run under. The done
// func clears the registration once the write has finished.
func (r *autosaveRegistry) Begin(key string) (context.Context, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.pending[key]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.seq++
	gen := r.seq
	r.pending[key] = autosaveEntry{gen: gen, cancel: cancel}
	done := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.pending[key]; ok && current.gen == gen {
			delete(r.pending, key)
		}
		cancel()
	}
	return ctx, done
}

// Cancel aborts the session's pending autosave, if any.
func (r *autosaveRegistry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.pending[key]; ok {
		entry.cancel()
		delete(r.pending, key)
	}
}

func sessionKey(judgeID, battleID, participantID string, round int) string {
	return fmt.Sprintf("%s|%s|%s|%d", judgeID, battleID, participantID, round)
}

type JudgingService struct {
	DB        *gorm.DB
	autosaves *autosaveRegistry
}

func NewJudgingService(db *gorm.DB) *JudgingService {
	return &JudgingService{DB: db, autosaves: newAutosaveRegistry()}
}

// ScoreDetailInput is one rubric line of a submitted sheet.
type ScoreDetailInput struct {
	CriterioID string  `json:"criterio_id"`
	Value      float64 `json:"value"`
}

// ValidateDetails checks every detail against its criterio. Out-of-range
// values are rejected outright, never clamped.
func ValidateDetails(details []ScoreDetailInput, criterios []models.Criterio) error {
	if len(details) == 0 {
		return validationf("at least one criterio value is required")
	}
	byID := make(map[string]models.Criterio, len(criterios))
	for _, cr := range criterios {
		byID[cr.ID] = cr
	}
	seen := map[string]bool{}
	for _, d := range details {
		cr, ok := byID[d.CriterioID]
		if !ok {
			return validationf("criterio " + d.CriterioID + " does not belong to this category")
		}
		if seen[d.CriterioID] {
			return validationf("criterio " + cr.Name + " appears more than once")
		}
		seen[d.CriterioID] = true
		if d.Value < 0 || d.Value > cr.MaxScore {
			return validationf(fmt.Sprintf("value %.2f for %s is outside [0, %.2f]", d.Value, cr.Name, cr.MaxScore))
		}
	}
	return nil
}

// SubmitRoundScore serves POST /battles/:id/scores. A draft body autosaves
// (overwriting any previous draft); finalize=true flips the sheet to
// SUBMITTED, which is terminal.
func (s *JudgingService) SubmitRoundScore(c *fiber.Ctx) error {
	type Req struct {
		ParticipantID string             `json:"participant_id"`
		Round         int                `json:"round"`
		Details       []ScoreDetailInput `json:"details"`
		Finalize      bool               `json:"finalize"`
	}
	battleID := c.Params("id")
	judgeID, _ := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.ParticipantID == "" {
		return respondError(c, validationf("participant_id is required"))
	}
	if req.Round != 1 && req.Round != 2 {
		return respondError(c, validationf("round must be 1 or 2"))
	}

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return respondError(c, err)
	}
	if !battle.HasParticipant(req.ParticipantID) {
		return respondError(c, validationf("participant is not in this battle"))
	}

	// Authorization before touching any data: the judge must be assigned to
	// this scope.
	assigned, err := s.isAssigned(judgeID, battle.EventID, battle.CategoryID, battle.Phase)
	if err != nil {
		return respondError(c, err)
	}
	if !assigned {
		return respondError(c, ErrNotAssigned)
	}

	var criterios []models.Criterio
	if err := s.DB.Where("category_id = ?", battle.CategoryID).Find(&criterios).Error; err != nil {
		return respondError(c, err)
	}
	if err := ValidateDetails(req.Details, criterios); err != nil {
		return respondError(c, err)
	}

	key := sessionKey(judgeID, battleID, req.ParticipantID, req.Round)
	var writeCtx context.Context = context.Background()
	if req.Finalize {
		// A final submit always wins over a still-pending autosave.
		s.autosaves.Cancel(key)
	} else {
		ctx, done := s.autosaves.Begin(key)
		defer done()
		writeCtx = ctx
	}

	score, err := s.writeScore(writeCtx, &battle, judgeID, req.ParticipantID, req.Round, req.Details, req.Finalize)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// The autosave lost to a concurrent submit; drop it silently.
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "autosave superseded"})
		}
		if !errors.Is(err, ErrAlreadySubmitted) {
			log.Printf("ERROR writing score for battle %s: %v", battleID, err)
		}
		return respondError(c, err)
	}

	status := 200
	if req.Finalize {
		status = 201
	}
	return c.Status(status).JSON(score)
}

// writeScore creates or overwrites the session's score row. A SUBMITTED row
// is terminal and rejects any further write.
func (s *JudgingService) writeScore(ctx context.Context, battle *models.Battle, judgeID, participantID string, round int, details []ScoreDetailInput, finalize bool) (*models.Score, error) {
	var score models.Score
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("battle_id = ? AND judge_id = ? AND participant_id = ? AND round = ?",
			battle.ID, judgeID, participantID, round).
			First(&score).Error
		switch {
		case err == nil:
			if score.Status == models.ScoreStatusSubmitted {
				return ErrAlreadySubmitted
			}
			if err := tx.Where("score_id = ?", score.ID).Delete(&models.ScoreDetail{}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			score = models.Score{
				ID:            uuid.NewString(),
				EventID:       battle.EventID,
				CategoryID:    battle.CategoryID,
				Phase:         battle.Phase,
				Round:         round,
				BattleID:      &battle.ID,
				JudgeID:       judgeID,
				ParticipantID: participantID,
				Status:        models.ScoreStatusDraft,
			}
			if err := tx.Create(&score).Error; err != nil {
				return err
			}
		default:
			return err
		}

		rows := make([]models.ScoreDetail, 0, len(details))
		for _, d := range details {
			rows = append(rows, models.ScoreDetail{
				ID:         uuid.NewString(),
				ScoreID:    score.ID,
				CriterioID: d.CriterioID,
				Value:      d.Value,
			})
		}
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}

		status := models.ScoreStatusDraft
		if finalize {
			status = models.ScoreStatusSubmitted
		}
		total := models.SumDetails(rows)
		if err := tx.Model(&score).Updates(map[string]interface{}{
			"status":      status,
			"total_score": total,
		}).Error; err != nil {
			return err
		}
		score.Status = status
		score.TotalScore = total
		score.Details = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// VoteTally is the outcome of a battle's judge vote.
type VoteTally struct {
	WinnerID    string `json:"winner_id"`
	WinnerVotes int    `json:"winner_votes"`
	LoserVotes  int    `json:"loser_votes"`
}

// TallyVotes determines a battle winner from submitted scores. Each judge's
// totals are summed across both rounds per participant; the judge votes for
// the higher sum, an exact tie abstains. The participant with more judge
// votes wins. This is a vote-of-judges rule: one judge's extreme point
// spread cannot dominate the outcome the way a raw point sum would.
//
// Every (judge, participant, round) combination must be present and
// SUBMITTED, else ErrIncompleteJudging. Equal vote counts yield ErrVotesTied
// and nothing is persisted.
func TallyVotes(scores []models.Score, judgeIDs []string, participantA, participantB string) (*VoteTally, error) {
	if len(judgeIDs) == 0 {
		return nil, ErrIncompleteJudging
	}
	type cell struct {
		sum    float64
		rounds map[int]bool
	}
	sheet := map[string]map[string]*cell{} // judge -> participant -> totals
	for _, jid := range judgeIDs {
		sheet[jid] = map[string]*cell{
			participantA: {rounds: map[int]bool{}},
			participantB: {rounds: map[int]bool{}},
		}
	}
	for _, sc := range scores {
		if sc.Status != models.ScoreStatusSubmitted {
			continue
		}
		judge, ok := sheet[sc.JudgeID]
		if !ok {
			continue // score from an unassigned judge does not count
		}
		entry, ok := judge[sc.ParticipantID]
		if !ok {
			continue
		}
		entry.sum += sc.TotalScore
		entry.rounds[sc.Round] = true
	}

	votesA, votesB := 0, 0
	for _, jid := range judgeIDs {
		a, b := sheet[jid][participantA], sheet[jid][participantB]
		if !a.rounds[1] || !a.rounds[2] || !b.rounds[1] || !b.rounds[2] {
			return nil, ErrIncompleteJudging
		}
		switch {
		case a.sum > b.sum:
			votesA++
		case b.sum > a.sum:
			votesB++
		}
		// equal sums: the judge abstains
	}

	switch {
	case votesA > votesB:
		return &VoteTally{WinnerID: participantA, WinnerVotes: votesA, LoserVotes: votesB}, nil
	case votesB > votesA:
		return &VoteTally{WinnerID: participantB, WinnerVotes: votesB, LoserVotes: votesA}, nil
	}
	return nil, ErrVotesTied
}

// DeclareWinner serves POST /battles/:id/winner. The winner, the vote
// tallies and the slot assignment in the successor battle are persisted in
// one transaction: a progression failure leaves the battle un-won and the
// call retryable.
func (s *JudgingService) DeclareWinner(c *fiber.Ctx) error {
	battleID := c.Params("id")

	var battle models.Battle
	if err := s.DB.First(&battle, "id = ?", battleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "battle not found"})
		}
		return respondError(c, err)
	}
	if battle.Decided() {
		// Retry path: the winner stands, re-run progression only.
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			return advanceWithinTx(tx, &battle)
		})
		if err != nil {
			log.Printf("ERROR re-advancing decided battle %s: %v", battleID, err)
			return respondError(c, err)
		}
		return c.JSON(VoteTally{WinnerID: *battle.WinnerID, WinnerVotes: battle.WinnerVotes, LoserVotes: battle.LoserVotes})
	}
	if battle.SlotAID == nil || battle.SlotBID == nil {
		return respondError(c, ErrIncompleteJudging)
	}

	var assignments []models.JudgeAssignment
	if err := s.DB.Where("event_id = ? AND category_id = ? AND phase = ?",
		battle.EventID, battle.CategoryID, battle.Phase).
		Find(&assignments).Error; err != nil {
		return respondError(c, err)
	}
	judgeIDs := make([]string, len(assignments))
	for i, a := range assignments {
		judgeIDs[i] = a.JudgeID
	}

	var scores []models.Score
	if err := s.DB.Where("battle_id = ? AND status = ?", battleID, models.ScoreStatusSubmitted).
		Find(&scores).Error; err != nil {
		return respondError(c, err)
	}

	tally, err := TallyVotes(scores, judgeIDs, *battle.SlotAID, *battle.SlotBID)
	if err != nil {
		return respondError(c, err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&battle).Updates(map[string]interface{}{
			"winner_id":    tally.WinnerID,
			"winner_votes": tally.WinnerVotes,
			"loser_votes":  tally.LoserVotes,
		}).Error; err != nil {
			return err
		}
		battle.WinnerID = &tally.WinnerID
		battle.WinnerVotes = tally.WinnerVotes
		battle.LoserVotes = tally.LoserVotes
		return advanceWithinTx(tx, &battle)
	})
	if err != nil {
		log.Printf("ERROR declaring winner for battle %s: %v", battleID, err)
		return respondError(c, err)
	}

	invalidateViews("battles:" + battle.EventID + ":" + battle.CategoryID)
	return c.JSON(tally)
}

// ReopenScore serves PATCH /admin/scores/:id/reopen — the admin override that
// flips a submitted sheet back to draft so a correction can be entered.
func (s *JudgingService) ReopenScore(c *fiber.Ctx) error {
	scoreID := c.Params("id")
	result := s.DB.Model(&models.Score{}).
		Where("id = ? AND status = ?", scoreID, models.ScoreStatusSubmitted).
		Update("status", models.ScoreStatusDraft)
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "submitted score not found"})
	}
	log.Printf("score %s reopened by admin %v", scoreID, c.Locals("user_id"))
	return c.JSON(fiber.Map{"message": "score reopened", "score_id": scoreID})
}

func (s *JudgingService) isAssigned(judgeID, eventID, categoryID string, phase models.Phase) (bool, error) {
	if judgeID == "" {
		return false, nil
	}
	var count int64
	err := s.DB.Model(&models.JudgeAssignment{}).
		Where("judge_id = ? AND event_id = ? AND category_id = ? AND phase = ?",
			judgeID, eventID, categoryID, phase).
		Count(&count).Error
	return count > 0, err
}
