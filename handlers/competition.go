// handlers/competition_routes.go
package handlers

import (
	"battle-league-system/middleware"
	"battle-league-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCompetitionRoutes(app *fiber.App, rankingService *services.RankingService, bracketService *services.BracketService, judgingService *services.JudgingService) {
	// 🔓 Public read surface — rankings and the bracket board
	app.Get("/events/:id/ranking/:category_id", rankingService.GetRanking)
	app.Get("/events/:id/battles/:category_id", bracketService.ListBattles)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Judge scoring — assignment is enforced per-battle inside the service
	judges := secured.Group("/", middleware.RequireRoles("judge", "admin"))
	judges.Post("/battles/:id/scores", judgingService.SubmitRoundScore)

	// 🔒 Admin-only bracket and battle management
	admin := secured.Group("/", middleware.RequireRoles("admin"))
	admin.Post("/brackets", bracketService.GenerateBracket)
	admin.Post("/battles/:id/winner", judgingService.DeclareWinner)
	admin.Post("/battles/:id/advance", bracketService.Advance)
	admin.Patch("/scores/:id/reopen", judgingService.ReopenScore)
}
