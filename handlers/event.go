// handlers/event_routes.go
package handlers

import (
	"battle-league-system/middleware"
	"battle-league-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupEventRoutes(app *fiber.App, eventService *services.EventService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/events", eventService.GetAllEvents)
	app.Get("/events/:id", eventService.GetEventByID)
	app.Get("/events/:id/registrations/:category_id", eventService.ListRegistrations)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Event administration (Admin only)
	admin := secured.Group("/", middleware.RequireRoles("admin"))
	admin.Post("/events", eventService.CreateEvent)
	admin.Patch("/events/:id", eventService.UpdateEvent)
	admin.Patch("/events/:id/status", eventService.UpdateEventStatus)
	admin.Post("/events/:id/categories", eventService.CreateCategory)
	admin.Post("/categories/:category_id/criterios", eventService.CreateCriterio)
	admin.Post("/events/:id/judges", eventService.AssignJudge)
}
