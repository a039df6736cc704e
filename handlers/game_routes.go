// handlers/game_routes.go
package handlers

import (
	"trust-game-system/middleware"
	"trust-game-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App,
	games *services.GameService,
	matchmaking *services.MatchmakingService,
	profiles *services.ProfileService,
) {
	// 🔓 Read-only routes — no user context, but still behind Gateway auth
	app.Get("/games/:id", games.GetGame)
	app.Get("/games/:id/current-round", games.GetCurrentRound)
	app.Get("/games/:id/rounds/:round_id/outcome", games.GetRoundOutcome)

	// 🔐 Secured routes — require the Gateway-injected user context
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/matchmaking/join", matchmaking.JoinQueue)
	secured.Post("/games/:id/rounds/:round_id/choice", games.SubmitChoiceHandler)

	secured.Get("/profiles/:external_id", profiles.GetProfile)
	secured.Put("/profiles/:external_id/personality", profiles.UpdatePersonality)
}
