package services

import (
	"log"
	"math"
	"sort"

	"battle-league-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RankingService struct {
	DB *gorm.DB
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{DB: db}
}

// JudgeScore is one judge's summed total for a participant within a phase.
type JudgeScore struct {
	JudgeID string  `json:"judge_id"`
	Score   float64 `json:"score"`
}

// RankedEntry is one row of a ranking, descending by average score.
type RankedEntry struct {
	ParticipantID  string       `json:"participant_id"`
	AvgScore       float64      `json:"avg_score"`
	PerJudgeScores []JudgeScore `json:"per_judge_scores"`
}

// ComputeRanking aggregates submitted scores into an ordered ranking. Drafts
// are ignored even if present in the input. Per judge, totals are summed
// across rounds; the average is the mean over judges, rounded to 2 decimals.
// Ties on the average order by ascending participant ID so identical input
// always yields identical output.
func ComputeRanking(scores []models.Score) []RankedEntry {
	perParticipant := map[string]map[string]float64{} // participant -> judge -> summed total
	for _, s := range scores {
		if s.Status != models.ScoreStatusSubmitted {
			continue
		}
		judges, ok := perParticipant[s.ParticipantID]
		if !ok {
			judges = map[string]float64{}
			perParticipant[s.ParticipantID] = judges
		}
		judges[s.JudgeID] += s.TotalScore
	}

	entries := make([]RankedEntry, 0, len(perParticipant))
	for participantID, judges := range perParticipant {
		judgeIDs := make([]string, 0, len(judges))
		for id := range judges {
			judgeIDs = append(judgeIDs, id)
		}
		sort.Strings(judgeIDs)

		var sum float64
		perJudge := make([]JudgeScore, 0, len(judgeIDs))
		for _, id := range judgeIDs {
			sum += judges[id]
			perJudge = append(perJudge, JudgeScore{JudgeID: id, Score: judges[id]})
		}
		avg := math.Round(sum/float64(len(judgeIDs))*100) / 100

		entries = append(entries, RankedEntry{
			ParticipantID:  participantID,
			AvgScore:       avg,
			PerJudgeScores: perJudge,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AvgScore != entries[j].AvgScore {
			return entries[i].AvgScore > entries[j].AvgScore
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries
}

// Rank loads submitted scores for (event, category, phase) and returns the
// ordered ranking. No data yields an empty ranking, never an error.
func (s *RankingService) Rank(eventID, categoryID string, phase models.Phase) ([]RankedEntry, error) {
	var scores []models.Score
	err := s.DB.
		Where("event_id = ? AND category_id = ? AND phase = ? AND status = ?",
			eventID, categoryID, phase, models.ScoreStatusSubmitted).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return ComputeRanking(scores), nil
}

// GetRanking serves GET /events/:id/ranking/:category_id?phase=
func (s *RankingService) GetRanking(c *fiber.Ctx) error {
	eventID := c.Params("id")
	categoryID := c.Params("category_id")
	phase := models.Phase(c.Query("phase", string(models.PhasePreliminary)))
	if !models.IsValidPhase(phase) {
		return respondError(c, validationf("unknown phase: "+string(phase)))
	}

	entries, err := s.Rank(eventID, categoryID, phase)
	if err != nil {
		log.Printf("ERROR computing ranking for %s/%s/%s: %v", eventID, categoryID, phase, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"event_id":    eventID,
		"category_id": categoryID,
		"phase":       phase,
		"ranking":     entries,
	})
}
