package server

import (
	"github.com/OFFIS-RIT/matchgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	e.GET("/graph", routes.GetGraphHandler)
	e.GET("/edges.csv", routes.GetEdgesHandler)

	apiRoutes := e.Group("/api")
	apiRoutes.GET("/scene", routes.GetSceneHandler)
}
