package render

import (
	"math"

	"github.com/OFFIS-RIT/matchgraph/pkg/graph"
	"github.com/OFFIS-RIT/matchgraph/pkg/layout"

	"gonum.org/v1/gonum/spatial/r3"
)

// Style holds the visual constants of the artifact.
type Style struct {
	EdgeMinWidth    float64 `yaml:"edge_min_width" json:"edge_min_width" validate:"gte=0"`
	EdgeWidthSpread float64 `yaml:"edge_width_spread" json:"edge_width_spread" validate:"gte=0"`
	NodeMinSize     float64 `yaml:"node_min_size" json:"node_min_size" validate:"gte=0"`
	NodeSizeSpread  float64 `yaml:"node_size_spread" json:"node_size_spread" validate:"gte=0"`
	SourceColor     string  `yaml:"source_color" json:"source_color" validate:"required"`
	TargetColor     string  `yaml:"target_color" json:"target_color" validate:"required"`
	// NodeColor paints every node of a graph without rationale data.
	NodeColor string `yaml:"node_color" json:"node_color" validate:"required"`
	EdgeColor       string  `yaml:"edge_color" json:"edge_color" validate:"required"`
}

func DefaultStyle() Style {
	return Style{
		EdgeMinWidth:    1,
		EdgeWidthSpread: 4,
		NodeMinSize:     6,
		NodeSizeSpread:  6,
		SourceColor:     "tomato",
		TargetColor:     "skyblue",
		NodeColor:       "skyblue",
		EdgeColor:       "#888",
	}
}

// Point is a JSON friendly position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func pointOf(v r3.Vec) Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

type NodeVisual struct {
	Group    graph.Group `json:"group"`
	Name     string      `json:"name"`
	Pos      Point       `json:"pos"`
	Size     float64     `json:"size"`
	Color    string      `json:"color"`
	AvgScore float64     `json:"avg_score"`
	Degree   int         `json:"degree"`
}

type EdgeVisual struct {
	Source             string  `json:"source"`
	Target             string  `json:"target"`
	Label              string  `json:"label"`
	From               Point   `json:"from"`
	To                 Point   `json:"to"`
	Score              float64 `json:"score"`
	Width              float64 `json:"width"`
	Justification      string  `json:"justification"`
	JustificationScore float64 `json:"justification_score"`
}

// Scene is everything the renderer needs, already resolved to visual values.
// Interactive selects the variant with the rationale panel.
type Scene struct {
	Interactive bool         `json:"interactive"`
	EdgeColor   string       `json:"edge_color"`
	MaxScore    float64      `json:"max_justification_score"`
	Nodes       []NodeVisual `json:"nodes"`
	Edges       []EdgeVisual `json:"edges"`
}

// Encode maps graph attributes to visual channels. Edge width grows with the
// justification score, node size with the mean justification score of the
// incident edges, both relative to the largest justification score in the
// graph. Graphs without rationale data get uniform widths, sizes and colors.
func Encode(g *graph.Graph, l layout.Layout, style Style) Scene {
	interactive := g.HasJustification()
	edges := g.Edges()

	den := 1.0
	var top float64
	for i, m := range edges {
		if i == 0 || m.JustificationScore > top {
			top = m.JustificationScore
		}
	}
	if len(edges) > 0 && top > 0 {
		den = top
	}

	scene := Scene{
		Interactive: interactive,
		EdgeColor:   style.EdgeColor,
		MaxScore:    den,
		Nodes:       make([]NodeVisual, 0, g.Len()),
		Edges:       make([]EdgeVisual, 0, len(edges)),
	}

	for _, m := range edges {
		src, tgt := m.Source(), m.Target()
		width := style.EdgeMinWidth
		if interactive {
			width = scale(style.EdgeMinWidth, style.EdgeWidthSpread, m.JustificationScore, den)
		}
		scene.Edges = append(scene.Edges, EdgeVisual{
			Source:             src.Key.Name,
			Target:             tgt.Key.Name,
			Label:              src.Key.Name + " → " + tgt.Key.Name,
			From:               pointOf(l[src.Key]),
			To:                 pointOf(l[tgt.Key]),
			Score:              m.W,
			Width:              width,
			Justification:      m.Justification,
			JustificationScore: m.JustificationScore,
		})
	}

	for _, n := range g.Nodes() {
		incident := g.Incident(n.Key)
		var avg float64
		if len(incident) > 0 {
			for _, m := range incident {
				avg += m.JustificationScore
			}
			avg /= float64(len(incident))
		}

		size := style.NodeMinSize
		if interactive {
			size = scale(style.NodeMinSize, style.NodeSizeSpread, avg, den)
		}

		color := style.NodeColor
		if interactive {
			color = style.TargetColor
			if n.Key.Group == graph.GroupSource {
				color = style.SourceColor
			}
		}

		scene.Nodes = append(scene.Nodes, NodeVisual{
			Group:    n.Key.Group,
			Name:     n.Key.Name,
			Pos:      pointOf(l[n.Key]),
			Size:     size,
			Color:    color,
			AvgScore: avg,
			Degree:   len(incident),
		})
	}

	return scene
}

// scale returns base + spread·v/den clamped into [base, base+spread].
func scale(base, spread, v, den float64) float64 {
	out := base + spread*v/den
	if math.IsNaN(out) || out < base {
		return base
	}
	if out > base+spread {
		return base + spread
	}
	return out
}
