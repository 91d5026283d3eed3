// services/scheduler.go
package services

import (
	"log"
	"time"

	"battle-league-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPublishScheduler flips draft events whose publish schedule has
// elapsed to published. Runs every minute for the life of the process.
func (s *EventService) StartPublishScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var events []models.Event
			now := time.Now()
			err := s.DB.Where("status = ? AND publish_schedule IS NOT NULL AND publish_schedule <= ?", "draft", now).
				Find(&events).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, e := range events {
				updates := map[string]interface{}{
					"status":           "published",
					"published_at":     now,
					"publish_schedule": nil,
				}
				if err := s.DB.Model(&e).Updates(updates).Error; err != nil {
					log.Printf("[Scheduler] Failed to publish event %s: %v", e.ID, err)
				} else {
					log.Printf("✅ Auto-published event: %s", e.Name)
				}
			}
		}),
	)
}
