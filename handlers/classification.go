// handlers/classification_routes.go
package handlers

import (
	"battle-league-system/middleware"
	"battle-league-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupClassificationRoutes(app *fiber.App, wildcardService *services.WildcardService, classificationService *services.ClassificationService) {
	// 🔐 All classification surfaces are admin-operated
	secured := app.Group("/", middleware.UserContextMiddleware())
	admin := secured.Group("/", middleware.RequireRoles("admin"))

	// Wildcard review pipeline
	admin.Get("/events/:id/wildcards", wildcardService.ListWildcards)
	admin.Post("/wildcards/:id/approve", wildcardService.ApproveWildcard)
	admin.Post("/wildcards/:id/reject", wildcardService.RejectWildcard)
	admin.Post("/wildcards/:id/classify", wildcardService.ClassifyWildcard)

	// Consolidates the season's qualifier tracks into the target event
	admin.Post("/classification/run", classificationService.RunClassification)
}
