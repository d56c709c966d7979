package render

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/graph"
	"github.com/OFFIS-RIT/matchgraph/pkg/layout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(records []common.EdgeRecord) Scene {
	g := graph.BuildFromSlice(records)
	return Encode(g, layout.Spring(g, layout.DefaultOptions()), DefaultStyle())
}

func TestEncodeScalesByJustificationScore(t *testing.T) {
	scene := encode([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 0.9, Justification: "strong", JustificationScore: 4},
		{Source: "A", Target: "Y", Score: 0.2, Justification: "weak", JustificationScore: 2},
		{Source: "B", Target: "Y", Score: 0.1, JustificationScore: 0},
	})

	require.True(t, scene.Interactive)
	assert.Equal(t, 4.0, scene.MaxScore)

	widths := make([]float64, 0, len(scene.Edges))
	for _, e := range scene.Edges {
		widths = append(widths, e.Width)
	}
	assert.Equal(t, []float64{5, 3, 1}, widths)
	assert.Equal(t, "A → X", scene.Edges[0].Label)
	assert.Equal(t, "strong", scene.Edges[0].Justification)

	sizes := map[string]float64{}
	colors := map[string]string{}
	for _, n := range scene.Nodes {
		sizes[string(n.Group)+":"+n.Name] = n.Size
		colors[string(n.Group)+":"+n.Name] = n.Color
	}
	assert.Equal(t, 6+6*3.0/4, sizes["source:A"])
	assert.Equal(t, 12.0, sizes["target:X"])
	assert.Equal(t, 6+6*1.0/4, sizes["target:Y"])
	assert.Equal(t, 6.0, sizes["source:B"])
	assert.Equal(t, "tomato", colors["source:A"])
	assert.Equal(t, "skyblue", colors["target:X"])
}

func TestEncodeAllZeroScores(t *testing.T) {
	scene := encode([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 1, Justification: "only text"},
		{Source: "B", Target: "X", Score: 1, Justification: "more text"},
	})

	require.True(t, scene.Interactive)
	assert.Equal(t, 1.0, scene.MaxScore)
	for _, e := range scene.Edges {
		assert.Equal(t, 1.0, e.Width)
	}
	require.Len(t, scene.Nodes, 3)
	for _, n := range scene.Nodes {
		assert.Equal(t, 6.0, n.Size)
		assert.Equal(t, DefaultStyle().NodeColor, n.Color, n.Name)
	}
}

func TestEncodeClampsNegativeScores(t *testing.T) {
	scene := encode([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 1, JustificationScore: -3},
		{Source: "B", Target: "X", Score: 1, JustificationScore: 2},
	})

	for _, e := range scene.Edges {
		assert.GreaterOrEqual(t, e.Width, 1.0)
		assert.LessOrEqual(t, e.Width, 5.0)
	}
	for _, n := range scene.Nodes {
		assert.GreaterOrEqual(t, n.Size, 6.0)
		assert.LessOrEqual(t, n.Size, 12.0)
	}
}

func TestEncodeSimpleVariant(t *testing.T) {
	scene := encode([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 0.9},
		{Source: "B", Target: "X", Score: 0.1},
	})

	assert.False(t, scene.Interactive)
	for _, e := range scene.Edges {
		assert.Equal(t, 1.0, e.Width)
	}
	for _, n := range scene.Nodes {
		assert.Equal(t, 6.0, n.Size)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		den  float64
		want float64
	}{
		{name: "zero", v: 0, den: 4, want: 1},
		{name: "max", v: 4, den: 4, want: 5},
		{name: "half", v: 2, den: 4, want: 3},
		{name: "negative", v: -2, den: 4, want: 1},
		{name: "above max", v: 8, den: 4, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scale(1, 4, tt.v, tt.den))
		})
	}
}

func TestRenderInteractive(t *testing.T) {
	scene := encode([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 0.9, Justification: "<b>shared</b> sector", JustificationScore: 4},
	})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, scene, Options{Title: "Matches"}))
	html := buf.String()

	assert.Contains(t, html, "<title>Matches</title>")
	assert.Contains(t, html, DefaultPlotlyURL)
	assert.Contains(t, html, `id="justification"`)
	assert.Contains(t, html, "plotly_click")
	assert.Contains(t, html, `"customdata"`)
	assert.Contains(t, html, `"meta":"nodes"`)
	assert.NotContains(t, html, "<b>shared</b>", "justification text is escaped inside the script")
}

func TestRenderSimple(t *testing.T) {
	scene := encode([]common.EdgeRecord{{Source: "A", Target: "X", Score: 0.9}})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, scene, Options{}))
	html := buf.String()

	assert.Contains(t, html, "<title>"+DefaultTitle+"</title>")
	assert.Contains(t, html, "Plotly.newPlot")
	assert.NotContains(t, html, "justification")
	assert.NotContains(t, html, "plotly_click")
	assert.NotContains(t, html, "customdata")
}

func TestRenderExtremeScores(t *testing.T) {
	tests := []struct {
		name  string
		score float64
	}{
		{"largest", math.MaxFloat64},
		{"most negative", -math.MaxFloat64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := encode([]common.EdgeRecord{
				{Source: "A", Target: "B", Score: tt.score},
				{Source: "C", Target: "B", Score: 0.5},
			})
			for _, n := range scene.Nodes {
				for _, c := range []float64{n.Pos.X, n.Pos.Y, n.Pos.Z} {
					assert.False(t, math.IsNaN(c) || math.IsInf(c, 0), n.Name)
				}
			}

			var buf bytes.Buffer
			require.NoError(t, Render(&buf, scene, Options{}))
			assert.Contains(t, buf.String(), "Plotly.newPlot")
		})
	}
}

func TestRenderEmptyGraph(t *testing.T) {
	scene := encode(nil)
	assert.Empty(t, scene.Edges)
	assert.Empty(t, scene.Nodes)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, scene, Options{}))
	assert.Equal(t, 1, strings.Count(buf.String(), `"scatter3d"`))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "network_3d.html")
	scene := encode([]common.EdgeRecord{{Source: "A", Target: "X", Score: 0.9}})

	require.NoError(t, WriteFile(path, scene, Options{}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Plotly.newPlot")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file is left behind")

	assert.Error(t, WriteFile(filepath.Join(dir, "missing", "out.html"), scene, Options{}))
}
