// handlers/admin_routes.go
package handlers

import (
	"trust-game-system/middleware"
	"trust-game-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the dataset tooling: simulation batches, aggregate
// stats and R2 exports. Admin role required end to end.
func SetupAdminRoutes(app *fiber.App,
	simulator *services.SimulatorService,
	export *services.ExportService,
) {
	admin := app.Group("/admin",
		middleware.UserContextMiddleware(),
		middleware.RequireRole("admin"),
	)

	admin.Post("/simulations", simulator.RunSimulationHandler)
	admin.Get("/simulations/stats", simulator.StatsHandler)
	admin.Post("/datasets/export", export.ExportHandler)
}
