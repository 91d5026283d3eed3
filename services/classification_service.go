package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"battle-league-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// SourcePrecedence lists qualification routes lowest-to-highest. A
// participant qualifying through several routes is tagged with the highest
// one. The table is explicit and tested — tag resolution never depends on
// the order sources happen to be processed in.
var SourcePrecedence = []string{
	models.SourceWildcard,
	models.SourceOnlineTop3,
	models.SourcePresencialTop3,
	models.SourceChampionshipTop3,
}

// sourceRank returns the precedence of tag; unknown tags rank lowest.
func sourceRank(tag string) int {
	for i, s := range SourcePrecedence {
		if s == tag {
			return i
		}
	}
	return -1
}

// Qualifier is one qualification of one participant through one route.
type Qualifier struct {
	ParticipantID string
	DisplayName   string
	Source        string
}

// PlannedRegistration is a deduplicated registrant with its winning source
// tag.
type PlannedRegistration struct {
	ParticipantID string
	DisplayName   string
	Source        string
}

// ClassificationPlan is the pure outcome of merging qualification routes,
// before anything is written.
type ClassificationPlan struct {
	Registrations   []PlannedRegistration
	SkippedExisting []string
	SourceBreakdown map[string]int
	Log             []string
}

// PlanClassification merges qualifiers from every route into a deduplicated
// registrant set. Participants already registered in the target are skipped,
// not errored, which makes consolidation safely re-runnable.
func PlanClassification(qualifiers []Qualifier, alreadyRegistered map[string]bool) ClassificationPlan {
	plan := ClassificationPlan{SourceBreakdown: map[string]int{}}

	best := map[string]PlannedRegistration{}
	var order []string
	for _, q := range qualifiers {
		plan.SourceBreakdown[q.Source]++
		current, seen := best[q.ParticipantID]
		if !seen {
			order = append(order, q.ParticipantID)
			best[q.ParticipantID] = PlannedRegistration(q)
			continue
		}
		if sourceRank(q.Source) > sourceRank(current.Source) {
			name := current.DisplayName
			if q.DisplayName != "" {
				name = q.DisplayName
			}
			best[q.ParticipantID] = PlannedRegistration{
				ParticipantID: q.ParticipantID,
				DisplayName:   name,
				Source:        q.Source,
			}
		} else if current.DisplayName == "" && q.DisplayName != "" {
			current.DisplayName = q.DisplayName
			best[q.ParticipantID] = current
		}
	}

	for _, id := range order {
		reg := best[id]
		if alreadyRegistered[id] {
			plan.SkippedExisting = append(plan.SkippedExisting, id)
			plan.Log = append(plan.Log, fmt.Sprintf("skip %s: already registered", id))
			continue
		}
		plan.Registrations = append(plan.Registrations, reg)
		plan.Log = append(plan.Log, fmt.Sprintf("register %s via %s", id, reg.Source))
	}
	return plan
}

type ClassificationService struct {
	DB      *gorm.DB
	Ranking *RankingService
}

func NewClassificationService(db *gorm.DB, ranking *RankingService) *ClassificationService {
	return &ClassificationService{DB: db, Ranking: ranking}
}

// sourceKinds maps each qualification route onto the event kind it reads.
var sourceKinds = []struct {
	kind   string
	source string
}{
	{models.EventKindWildcardEvent, models.SourceWildcard},
	{models.EventKindLeagueOnline, models.SourceOnlineTop3},
	{models.EventKindLeaguePresencial, models.SourcePresencialTop3},
	{models.EventKindChampionship, models.SourceChampionshipTop3},
}

// RunClassification serves POST /admin/classification. It consolidates the
// year's four qualification tracks into the target event's registrant list
// inside one transaction, skipping anyone already registered, and returns
// the ordered audit log alongside the counts.
func (s *ClassificationService) RunClassification(c *fiber.Ctx) error {
	type Req struct {
		TargetEventID string `json:"target_event_id"`
		Year          int    `json:"year"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, validationf("invalid JSON"))
	}
	if req.TargetEventID == "" || req.Year == 0 {
		return respondError(c, validationf("target_event_id and year are required"))
	}

	var target models.Event
	if err := s.DB.First(&target, "id = ?", req.TargetEventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "target event not found"})
		}
		return respondError(c, err)
	}
	targetCategory, err := s.primaryCategory(target.ID)
	if err != nil {
		return respondError(c, err)
	}

	var auditLog []string
	var qualifiers []Qualifier
	for _, src := range sourceKinds {
		sourceQualifiers, lines, err := s.collectSource(src.kind, src.source, req.Year)
		if err != nil {
			log.Printf("ERROR collecting %s qualifiers: %v", src.kind, err)
			return respondError(c, err)
		}
		auditLog = append(auditLog, lines...)
		qualifiers = append(qualifiers, sourceQualifiers...)
	}

	existing := map[string]bool{}
	var existingRows []models.Inscripcion
	if err := s.DB.Where("event_id = ? AND category_id = ?", target.ID, targetCategory.ID).
		Find(&existingRows).Error; err != nil {
		return respondError(c, err)
	}
	for _, row := range existingRows {
		existing[row.ParticipantID] = true
	}

	plan := PlanClassification(qualifiers, existing)
	auditLog = append(auditLog, plan.Log...)

	registered := 0
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, reg := range plan.Registrations {
			// Guard-then-write: a manual registration racing us is skipped,
			// not an error.
			var count int64
			if err := tx.Model(&models.Inscripcion{}).
				Where("participant_id = ? AND event_id = ? AND category_id = ?",
					reg.ParticipantID, target.ID, targetCategory.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				auditLog = append(auditLog, fmt.Sprintf("skip %s: registered concurrently", reg.ParticipantID))
				continue
			}
			row := models.Inscripcion{
				ID:            uuid.NewString(),
				ParticipantID: reg.ParticipantID,
				EventID:       target.ID,
				CategoryID:    targetCategory.ID,
				DisplayName:   s.resolveDisplayName(reg.ParticipantID, reg.DisplayName),
				Source:        reg.Source,
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					auditLog = append(auditLog, fmt.Sprintf("skip %s: registered concurrently", reg.ParticipantID))
					continue
				}
				return err
			}
			registered++
		}
		return nil
	})
	if err != nil {
		log.Printf("ERROR running classification for %s/%d: %v", target.ID, req.Year, err)
		return respondError(c, err)
	}

	invalidateViews("registrations:" + target.ID)
	return c.JSON(fiber.Map{
		"registered_count": registered,
		"skipped_count":    len(plan.SkippedExisting) + (len(plan.Registrations) - registered),
		"source_breakdown": plan.SourceBreakdown,
		"log":              auditLog,
	})
}

// collectSource gathers the qualifiers of one route: top 3 of the Final
// ranking for ranked kinds, admin-classified entries (capped) for the
// wildcard kind.
func (s *ClassificationService) collectSource(kind, source string, year int) ([]Qualifier, []string, error) {
	var event models.Event
	err := s.DB.Where("kind = ? AND year = ?", kind, year).
		Order("start_time DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, []string{fmt.Sprintf("no %s event found for %d", kind, year)}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	lines := []string{fmt.Sprintf("source %s: %s", source, event.Name)}

	if kind == models.EventKindWildcardEvent {
		var wildcards []models.Wildcard
		err := s.DB.Where("event_id = ? AND status = ? AND is_classified = ?",
			event.ID, models.WildcardStatusApproved, true).
			Order("created_at ASC").
			Limit(models.MaxClassifiedWildcards).
			Find(&wildcards).Error
		if err != nil {
			return nil, nil, err
		}
		qualifiers := make([]Qualifier, 0, len(wildcards))
		for _, w := range wildcards {
			qualifiers = append(qualifiers, Qualifier{
				ParticipantID: w.ParticipantID,
				DisplayName:   foldDisplayName(w.DisplayName),
				Source:        source,
			})
		}
		lines = append(lines, fmt.Sprintf("source %s: %d classified wildcard(s)", source, len(qualifiers)))
		return qualifiers, lines, nil
	}

	category, err := s.primaryCategory(event.ID)
	if err != nil {
		// A source event without a category is skippable; a storage failure
		// is not.
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, nil, err
		}
		return nil, append(lines, fmt.Sprintf("source %s: no category, skipped", source)), nil
	}
	ranking, err := s.Ranking.Rank(event.ID, category.ID, models.PhaseFinal)
	if err != nil {
		return nil, nil, err
	}
	top := ranking
	if len(top) > 3 {
		top = top[:3]
	}
	qualifiers := make([]Qualifier, 0, len(top))
	for _, entry := range top {
		qualifiers = append(qualifiers, Qualifier{ParticipantID: entry.ParticipantID, Source: source})
	}
	lines = append(lines, fmt.Sprintf("source %s: %d finalist(s) qualified", source, len(qualifiers)))
	return qualifiers, lines, nil
}

// primaryCategory returns the event's first category. Source and target
// events in this league carry exactly one.
func (s *ClassificationService) primaryCategory(eventID string) (*models.Category, error) {
	var category models.Category
	err := s.DB.Where("event_id = ?", eventID).
		Order("created_at ASC").
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, validationf("event has no category")
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// resolveDisplayName picks the best known name for a participant: the
// profile mirror first, then the latest prior registration, then the
// wildcard submission name carried on the qualifier, then a placeholder.
func (s *ClassificationService) resolveDisplayName(participantID, qualifierName string) string {
	var mirror models.ParticipantMirror
	if err := s.DB.Where("external_user_id = ?", participantID).First(&mirror).Error; err == nil && mirror.DisplayName != "" {
		return mirror.DisplayName
	}
	var prior models.Inscripcion
	err := s.DB.Where("participant_id = ? AND display_name <> ''", participantID).
		Order("created_at DESC").
		First(&prior).Error
	if err == nil {
		return prior.DisplayName
	}
	if qualifierName != "" {
		return qualifierName
	}
	suffix := participantID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "Participante " + strings.ToUpper(suffix)
}

// foldDisplayName normalizes raw user-submitted names (wildcard forms arrive
// in any casing) into title case.
func foldDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return cases.Title(language.Spanish).String(strings.ToLower(name))
}

// atoiDefault is a small helper for numeric query params.
func atoiDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
