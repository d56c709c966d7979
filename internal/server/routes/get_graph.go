package routes

import (
	"bytes"
	"net/http"

	"github.com/OFFIS-RIT/matchgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/edgelist"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"
	"github.com/OFFIS-RIT/matchgraph/pkg/render"

	"github.com/labstack/echo/v4"
)

type layoutParams struct {
	Seed       int64 `json:"seed"`
	Iterations int   `json:"iterations" validate:"min=1,max=1000"`
}

// bindLayout starts from the configured layout and applies the optional
// seed and iterations query parameters.
func bindLayout(c echo.Context) (layoutParams, error) {
	opts := c.(*middleware.AppContext).App.Pipeline.Config().Layout
	params := layoutParams{Seed: opts.Seed, Iterations: opts.Iterations}

	err := echo.QueryParamsBinder(c).
		Int64("seed", &params.Seed).
		Int("iterations", &params.Iterations).
		BindError()
	if err != nil {
		return params, err
	}
	if err := c.Validate(params); err != nil {
		return params, err
	}
	return params, nil
}

// freshRecords re-reads the workbook on every request so the preview follows
// edits to the input.
func freshRecords(c echo.Context) ([]common.EdgeRecord, error) {
	p := c.(*middleware.AppContext).App.Pipeline
	if err := p.Refresh(); err != nil {
		logger.Error("[Server] Failed to refresh input", "err", err)
		return nil, err
	}
	records, _, err := p.Extract(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Failed to extract records", "err", err)
		return nil, err
	}
	return records, nil
}

func sceneFor(c echo.Context) (render.Scene, error) {
	params, err := bindLayout(c)
	if err != nil {
		return render.Scene{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid request params")
	}

	p := c.(*middleware.AppContext).App.Pipeline
	records, err := freshRecords(c)
	if err != nil {
		return render.Scene{}, echo.NewHTTPError(http.StatusInternalServerError, "Failed to read results")
	}

	opts := p.Config().Layout
	opts.Seed = params.Seed
	opts.Iterations = params.Iterations
	_, scene, err := p.Visualize(records, opts)
	if err != nil {
		logger.Error("[Server] Failed to build graph", "err", err)
		return render.Scene{}, echo.NewHTTPError(http.StatusInternalServerError, "Failed to build graph")
	}
	return scene, nil
}

func GetGraphHandler(c echo.Context) error {
	scene, err := sceneFor(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, scene, c.(*middleware.AppContext).App.Pipeline.Config().Render); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func GetSceneHandler(c echo.Context) error {
	scene, err := sceneFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, scene)
}

func GetEdgesHandler(c echo.Context) error {
	records, err := freshRecords(c)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read results"})
	}

	var buf bytes.Buffer
	if err := edgelist.Write(&buf, records, edgelist.HasJustification(records)); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
