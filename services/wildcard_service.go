package services

import (
	"errors"
	"log"

	"battle-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WildcardService struct {
	DB *gorm.DB
}

func NewWildcardService(db *gorm.DB) *WildcardService {
	return &WildcardService{DB: db}
}

// ListWildcards serves GET /admin/events/:id/wildcards.
func (s *WildcardService) ListWildcards(c *fiber.Ctx) error {
	eventID := c.Params("id")
	q := s.DB.Where("event_id = ?", eventID).Order("created_at ASC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var wildcards []models.Wildcard
	if err := q.Find(&wildcards).Error; err != nil {
		log.Printf("ERROR listing wildcards for event %s: %v", eventID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"wildcards": wildcards, "count": len(wildcards)})
}

// ApproveWildcard serves POST /admin/wildcards/:id/approve. Approval also
// creates the participant's registration for the wildcard's event and
// category — or links to an existing one instead of failing.
func (s *WildcardService) ApproveWildcard(c *fiber.Ctx) error {
	wildcardID := c.Params("id")
	adminID, _ := c.Locals("user_id").(string)

	var wildcard models.Wildcard
	if err := s.DB.First(&wildcard, "id = ?", wildcardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "wildcard not found"})
		}
		return respondError(c, err)
	}
	if wildcard.Status == models.WildcardStatusApproved {
		return c.JSON(fiber.Map{"message": "wildcard already approved", "wildcard": wildcard})
	}

	var inscripcion models.Inscripcion
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&wildcard).Updates(map[string]interface{}{
			"status":      models.WildcardStatusApproved,
			"reviewed_by": adminID,
		}).Error; err != nil {
			return err
		}
		err := tx.Where("participant_id = ? AND event_id = ? AND category_id = ?",
			wildcard.ParticipantID, wildcard.EventID, wildcard.CategoryID).
			First(&inscripcion).Error
		if err == nil {
			return nil // already registered through another route; just link
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		inscripcion = models.Inscripcion{
			ID:            uuid.NewString(),
			ParticipantID: wildcard.ParticipantID,
			EventID:       wildcard.EventID,
			CategoryID:    wildcard.CategoryID,
			DisplayName:   foldDisplayName(wildcard.DisplayName),
			Source:        models.SourceWildcard,
		}
		if err := tx.Create(&inscripcion).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyRegistered
			}
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadyRegistered) {
		log.Printf("ERROR approving wildcard %s: %v", wildcardID, err)
		return respondError(c, err)
	}

	wildcard.Status = models.WildcardStatusApproved
	invalidateViews("wildcards:" + wildcard.EventID)
	return c.JSON(fiber.Map{
		"message":     "wildcard approved",
		"wildcard":    wildcard,
		"inscripcion": inscripcion,
	})
}

// RejectWildcard serves POST /admin/wildcards/:id/reject.
func (s *WildcardService) RejectWildcard(c *fiber.Ctx) error {
	wildcardID := c.Params("id")
	adminID, _ := c.Locals("user_id").(string)

	result := s.DB.Model(&models.Wildcard{}).
		Where("id = ?", wildcardID).
		Updates(map[string]interface{}{
			"status":        models.WildcardStatusRejected,
			"is_classified": false,
			"reviewed_by":   adminID,
		})
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "wildcard not found"})
	}
	return c.JSON(fiber.Map{"message": "wildcard rejected", "wildcard_id": wildcardID})
}

// ClassifyWildcard serves POST /admin/wildcards/:id/classify. Flagging is
// capped: an event carries at most MaxClassifiedWildcards classified entries.
func (s *WildcardService) ClassifyWildcard(c *fiber.Ctx) error {
	type Req struct {
		Classified bool `json:"classified"`
	}
	wildcardID := c.Params("id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var wildcard models.Wildcard
		if err := tx.First(&wildcard, "id = ?", wildcardID).Error; err != nil {
			return err
		}
		if req.Classified {
			if wildcard.Status != models.WildcardStatusApproved {
				return validationf("only approved wildcards can be classified")
			}
			// The cap count races without a lock: two concurrent flags on
			// the same event would both count below the cap. Serialize on
			// the event row.
			var event models.Event
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&event, "id = ?", wildcard.EventID).Error; err != nil {
				return err
			}
			var count int64
			if err := tx.Model(&models.Wildcard{}).
				Where("event_id = ? AND is_classified = ? AND id <> ?", wildcard.EventID, true, wildcardID).
				Count(&count).Error; err != nil {
				return err
			}
			if count >= models.MaxClassifiedWildcards {
				return validationf("classified wildcard cap reached for this event")
			}
		}
		return tx.Model(&wildcard).Update("is_classified", req.Classified).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "wildcard not found"})
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "wildcard classification updated", "wildcard_id": wildcardID})
}
