package services

import (
	"errors"
	"log"
	"path/filepath"
	"time"

	"battle-league-system/models"
	"battle-league-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

var validEventKinds = map[string]bool{
	models.EventKindChampionship:     true,
	models.EventKindLeaguePresencial: true,
	models.EventKindLeagueOnline:     true,
	models.EventKindWildcardEvent:    true,
}

// CreateEvent serves POST /admin/events (multipart: fields + optional poster).
func (s *EventService) CreateEvent(c *fiber.Ctx) error {
	kind := c.FormValue("kind")
	name := c.FormValue("name")
	yearStr := c.FormValue("year")
	startTimeStr := c.FormValue("start_time")

	if kind == "" || name == "" || yearStr == "" || startTimeStr == "" {
		return respondError(c, validationf("kind, name, year and start_time are required"))
	}
	if !validEventKinds[kind] {
		return respondError(c, validationf("unknown event kind: "+kind))
	}
	year := atoiDefault(yearStr, 0)
	if year < 2000 {
		return respondError(c, validationf("year must be a four-digit year"))
	}
	startTime, err := time.Parse(time.RFC3339, startTimeStr)
	if err != nil {
		return respondError(c, validationf("invalid start_time (use RFC3339)"))
	}
	var endTime time.Time
	if v := c.FormValue("end_time"); v != "" {
		endTime, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, validationf("invalid end_time (use RFC3339)"))
		}
	}
	var publishSchedule *time.Time
	if v := c.FormValue("publish_schedule"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return respondError(c, validationf("invalid publish_schedule (use RFC3339)"))
		}
		publishSchedule = &t
	}

	var posterURL string
	if poster, err := c.FormFile("poster"); err == nil && poster.Size > 0 {
		ext := filepath.Ext(poster.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		filename := uuid.NewString() + ext
		if utils.R2Enabled() {
			url, err := utils.UploadFileToR2(poster, "events/posters/"+filename)
			if err != nil {
				log.Printf("ERROR uploading event poster: %v", err)
				return respondError(c, err)
			}
			posterURL = url
		} else {
			if err := utils.SaveFile(poster, utils.GetUploadPath(filename)); err != nil {
				log.Printf("ERROR saving event poster locally: %v", err)
				return respondError(c, err)
			}
			posterURL = "/uploads/" + filename
		}
	}

	event := &models.Event{
		ID:              uuid.NewString(),
		Kind:            kind,
		Name:            name,
		Slug:            slug.Make(name),
		Year:            year,
		Description:     c.FormValue("description"),
		Rules:           c.FormValue("rules"),
		PosterURL:       posterURL,
		Status:          "draft",
		StartTime:       startTime,
		EndTime:         endTime,
		PublishSchedule: publishSchedule,
	}
	if err := s.DB.Create(event).Error; err != nil {
		log.Printf("ERROR creating event: %v", err)
		return respondError(c, err)
	}
	return c.Status(201).JSON(event)
}

// GetAllEvents serves GET /events?kind=&year=
func (s *EventService) GetAllEvents(c *fiber.Ctx) error {
	q := s.DB.Preload("Categories.Criterios").Order("start_time DESC")
	if kind := c.Query("kind"); kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if year := atoiDefault(c.Query("year"), 0); year > 0 {
		q = q.Where("year = ?", year)
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		log.Printf("ERROR fetching events: %v", err)
		return respondError(c, err)
	}
	return c.JSON(events)
}

// GetEventByID serves GET /events/:id.
func (s *EventService) GetEventByID(c *fiber.Ctx) error {
	var event models.Event
	err := s.DB.Preload("Categories.Criterios").First(&event, "id = ?", c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "event not found"})
		}
		return respondError(c, err)
	}
	return c.JSON(event)
}

// UpdateEventStatus serves PATCH /admin/events/:id/status.
func (s *EventService) UpdateEventStatus(c *fiber.Ctx) error {
	type Req struct {
		Status string `json:"status"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}

	var updates map[string]interface{}
	switch req.Status {
	case "publish":
		now := time.Now()
		updates = map[string]interface{}{"status": "published", "published_at": now}
	case "draft", "published", "active", "completed":
		updates = map[string]interface{}{"status": req.Status}
	default:
		return respondError(c, validationf("invalid status"))
	}

	result := s.DB.Model(&models.Event{}).Where("id = ?", c.Params("id")).Updates(updates)
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "event not found"})
	}
	invalidateViews("events")
	var updated models.Event
	s.DB.Preload("Categories.Criterios").First(&updated, "id = ?", c.Params("id"))
	return c.JSON(updated)
}

// UpdateEvent serves PATCH /admin/events/:id. Field edits only; status moves
// through UpdateEventStatus. A name change re-slugs the event.
func (s *EventService) UpdateEvent(c *fiber.Ctx) error {
	type Req struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		Rules           *string `json:"rules"`
		EndTime         *string `json:"end_time"`
		PublishSchedule *string `json:"publish_schedule"` // "" clears the schedule
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return respondError(c, validationf("name cannot be empty"))
		}
		updates["name"] = *req.Name
		updates["slug"] = slug.Make(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Rules != nil {
		updates["rules"] = *req.Rules
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return respondError(c, validationf("invalid end_time (use RFC3339)"))
		}
		updates["end_time"] = t
	}
	if req.PublishSchedule != nil {
		if *req.PublishSchedule == "" {
			updates["publish_schedule"] = nil
		} else {
			t, err := time.Parse(time.RFC3339, *req.PublishSchedule)
			if err != nil {
				return respondError(c, validationf("invalid publish_schedule (use RFC3339)"))
			}
			updates["publish_schedule"] = t
		}
	}
	if len(updates) == 0 {
		return respondError(c, validationf("no fields to update"))
	}

	result := s.DB.Model(&models.Event{}).Where("id = ?", c.Params("id")).Updates(updates)
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "event not found"})
	}
	invalidateViews("events")
	var updated models.Event
	s.DB.Preload("Categories.Criterios").First(&updated, "id = ?", c.Params("id"))
	return c.JSON(updated)
}

// CreateCategory serves POST /admin/events/:id/categories.
func (s *EventService) CreateCategory(c *fiber.Ctx) error {
	type Req struct {
		Name string `json:"name"`
	}
	eventID := c.Params("id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.Name == "" {
		return respondError(c, validationf("name is required"))
	}
	if err := s.DB.First(&models.Event{}, "id = ?", eventID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "event not found"})
	}
	category := &models.Category{
		ID:      uuid.NewString(),
		EventID: eventID,
		Name:    req.Name,
	}
	if err := s.DB.Create(category).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(category)
}

// CreateCriterio serves POST /admin/categories/:category_id/criterios.
func (s *EventService) CreateCriterio(c *fiber.Ctx) error {
	type Req struct {
		Name      string  `json:"name"`
		MaxScore  float64 `json:"max_score"`
		SortOrder int     `json:"sort_order"`
	}
	categoryID := c.Params("category_id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.Name == "" {
		return respondError(c, validationf("name is required"))
	}
	if req.MaxScore <= 0 {
		return respondError(c, validationf("max_score must be positive"))
	}
	if err := s.DB.First(&models.Category{}, "id = ?", categoryID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "category not found"})
	}
	criterio := &models.Criterio{
		ID:         uuid.NewString(),
		CategoryID: categoryID,
		Name:       req.Name,
		MaxScore:   req.MaxScore,
		SortOrder:  req.SortOrder,
	}
	if err := s.DB.Create(criterio).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(criterio)
}

// AssignJudge serves POST /admin/events/:id/judges.
func (s *EventService) AssignJudge(c *fiber.Ctx) error {
	type Req struct {
		CategoryID string `json:"category_id"`
		Phase      string `json:"phase"`
		JudgeID    string `json:"judge_id"`
		JudgeName  string `json:"judge_name"`
	}
	eventID := c.Params("id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.CategoryID == "" || req.Phase == "" || req.JudgeID == "" {
		return respondError(c, validationf("category_id, phase and judge_id are required"))
	}
	if !models.IsValidPhase(models.Phase(req.Phase)) {
		return respondError(c, validationf("unknown phase: "+req.Phase))
	}

	var existing int64
	s.DB.Model(&models.JudgeAssignment{}).
		Where("event_id = ? AND category_id = ? AND phase = ? AND judge_id = ?",
			eventID, req.CategoryID, req.Phase, req.JudgeID).
		Count(&existing)
	if existing > 0 {
		return c.Status(409).JSON(fiber.Map{"error": "judge already assigned"})
	}

	assignment := &models.JudgeAssignment{
		ID:         uuid.NewString(),
		EventID:    eventID,
		CategoryID: req.CategoryID,
		Phase:      models.Phase(req.Phase),
		JudgeID:    req.JudgeID,
		JudgeName:  req.JudgeName,
	}
	if err := s.DB.Create(assignment).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(assignment)
}

// ListRegistrations serves GET /events/:id/registrations/:category_id.
func (s *EventService) ListRegistrations(c *fiber.Ctx) error {
	var rows []models.Inscripcion
	err := s.DB.Where("event_id = ? AND category_id = ?", c.Params("id"), c.Params("category_id")).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"inscripciones": rows, "count": len(rows)})
}
