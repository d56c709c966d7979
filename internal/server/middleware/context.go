package middleware

import (
	"github.com/OFFIS-RIT/matchgraph/internal/pipeline"

	"github.com/labstack/echo/v4"
)

type App struct {
	Pipeline *pipeline.Pipeline
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(p *pipeline.Pipeline) echo.MiddlewareFunc {
	app := &App{Pipeline: p}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
