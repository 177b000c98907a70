package routes

import (
	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterVideoRoutes registers the video catalog and its duettes
func RegisterVideoRoutes(e *echo.Echo, c *container.Container) {
	videos := handlers.NewVideoHandler(c)
	duettes := handlers.NewDuetteHandler(c)

	g := e.Group("/api/video")
	{
		g.GET("", videos.ListVideos)         // GET /api/video?val=&filter=
		g.POST("", videos.CreateVideo)       // POST /api/video
		g.GET("/:id", videos.GetVideo)       // GET /api/video/{id}
		g.PATCH("/:id", videos.PatchVideo)   // PATCH /api/video/{id}
		g.DELETE("/:id", videos.DeleteVideo) // DELETE /api/video/{id}

		g.POST("/:id/duettes", duettes.CreateDuette)             // POST /api/video/{id}/duettes
		g.GET("/:id/duettes", duettes.ListDuettes)               // GET /api/video/{id}/duettes
		g.DELETE("/:id/duettes/:duetteId", duettes.DeleteDuette) // DELETE /api/video/{id}/duettes/{duette_id}
	}
}
