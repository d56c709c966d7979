package render

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultPlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"
	DefaultTitle     = "Entity match network"

	// nodeTraceMeta tags the marker trace so clicks on nodes leave the
	// rationale panel alone.
	nodeTraceMeta = "nodes"
)

type Options struct {
	Title     string `yaml:"title"`
	PlotlyURL string `yaml:"plotly_url" validate:"omitempty,url"`
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.PlotlyURL == "" {
		o.PlotlyURL = DefaultPlotlyURL
	}
	return o
}

type plotLine struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

type plotMarker struct {
	Size  []float64 `json:"size"`
	Color []string  `json:"color"`
}

type plotTrace struct {
	Type       string      `json:"type"`
	Mode       string      `json:"mode"`
	X          []any       `json:"x"`
	Y          []any       `json:"y"`
	Z          []any       `json:"z"`
	Line       *plotLine   `json:"line,omitempty"`
	Marker     *plotMarker `json:"marker,omitempty"`
	Text       any         `json:"text"`
	HoverInfo  string      `json:"hoverinfo"`
	CustomData []string    `json:"customdata,omitempty"`
	Meta       string      `json:"meta,omitempty"`
}

// traces converts a scene into Plotly Scatter3d traces: one line trace per
// edge and a single marker trace holding all nodes.
func traces(scene Scene) []plotTrace {
	out := make([]plotTrace, 0, len(scene.Edges)+1)
	for _, e := range scene.Edges {
		t := plotTrace{
			Type:      "scatter3d",
			Mode:      "lines",
			X:         []any{e.From.X, e.To.X, nil},
			Y:         []any{e.From.Y, e.To.Y, nil},
			Z:         []any{e.From.Z, e.To.Z, nil},
			Line:      &plotLine{Width: e.Width, Color: scene.EdgeColor},
			Text:      e.Label,
			HoverInfo: "text",
		}
		if scene.Interactive {
			t.CustomData = []string{e.Justification, e.Justification, e.Justification}
		}
		out = append(out, t)
	}

	nodes := plotTrace{
		Type:      "scatter3d",
		Mode:      "markers",
		X:         make([]any, 0, len(scene.Nodes)),
		Y:         make([]any, 0, len(scene.Nodes)),
		Z:         make([]any, 0, len(scene.Nodes)),
		Marker:    &plotMarker{Size: make([]float64, 0, len(scene.Nodes)), Color: make([]string, 0, len(scene.Nodes))},
		HoverInfo: "text",
		Meta:      nodeTraceMeta,
	}
	names := make([]string, 0, len(scene.Nodes))
	for _, n := range scene.Nodes {
		nodes.X = append(nodes.X, n.Pos.X)
		nodes.Y = append(nodes.Y, n.Pos.Y)
		nodes.Z = append(nodes.Z, n.Pos.Z)
		nodes.Marker.Size = append(nodes.Marker.Size, n.Size)
		nodes.Marker.Color = append(nodes.Marker.Color, n.Color)
		names = append(names, n.Name)
	}
	nodes.Text = names
	return append(out, nodes)
}

func plotLayout(scene Scene) map[string]any {
	l := map[string]any{
		"showlegend": false,
		"margin":     map[string]int{"l": 0, "r": 0, "b": 0, "t": 0},
	}
	if scene.Interactive {
		l["clickmode"] = "event"
	}
	return l
}

const page = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <script src="{{.PlotlyURL}}"></script>
</head>
<body>
  <div id="graph" style="width:100%;height:90vh;"></div>
{{- if .Interactive}}
  <div id="justification" style="margin-top:10px;font-family:sans-serif;"></div>
{{- end}}
  <script>
    Plotly.newPlot('graph', {{.Traces}}, {{.Layout}}, {responsive: true});
{{- if .Interactive}}
    document.getElementById('graph').on('plotly_click', function (d) {
      var pt = d.points[0];
      if (pt.data.meta === 'nodes') {
        return;
      }
      document.getElementById('justification').innerText = pt.customdata || '';
    });
{{- end}}
  </script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("network").Parse(page))

// Render writes the scene as a self-contained HTML document.
func Render(w io.Writer, scene Scene, opts Options) error {
	opts = opts.withDefaults()

	tracesJSON, err := json.Marshal(traces(scene))
	if err != nil {
		return fmt.Errorf("failed to encode traces: %w", err)
	}
	layoutJSON, err := json.Marshal(plotLayout(scene))
	if err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}

	err = pageTemplate.Execute(w, map[string]any{
		"Title":       opts.Title,
		"PlotlyURL":   opts.PlotlyURL,
		"Interactive": scene.Interactive,
		"Traces":      template.JS(tracesJSON),
		"Layout":      template.JS(layoutJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// WriteFile renders into a temporary file next to path and renames it into
// place, so readers never observe a partially written artifact.
func WriteFile(path string, scene Scene, opts Options) (err error) {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate temp name: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+id+".tmp")

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriter(f)
	if err = Render(bw, scene, opts); err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", tmp, cerr)
	}
	if err != nil {
		return err
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move artifact to %s: %w", path, err)
	}
	return nil
}
