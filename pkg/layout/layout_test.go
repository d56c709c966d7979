package layout

import (
	"math"
	"testing"

	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func sample() *graph.Graph {
	return graph.BuildFromSlice([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 0.9},
		{Source: "A", Target: "Y", Score: 0.2},
		{Source: "B", Target: "X", Score: 0.5},
		{Source: "C", Target: "Z", Score: 0.7},
	})
}

func TestSpringIsDeterministic(t *testing.T) {
	g := sample()
	first := Spring(g, DefaultOptions())
	second := Spring(g, DefaultOptions())
	assert.Equal(t, first, second)

	other := DefaultOptions()
	other.Seed = 7
	assert.NotEqual(t, first, Spring(g, other))
}

func TestSpringPlacesEveryNode(t *testing.T) {
	g := sample()
	l := Spring(g, DefaultOptions())
	require.Len(t, l, g.Len())

	for _, n := range g.Nodes() {
		p, ok := l[n.Key]
		require.True(t, ok, n.Key.String())
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z), n.Key.String())
	}
}

func TestSpringRescalesIntoBox(t *testing.T) {
	opts := DefaultOptions()
	opts.Scale = 2
	l := Spring(sample(), opts)

	lo, hi := l.Bounds()
	lim := math.Max(
		math.Max(math.Abs(lo.X), math.Abs(hi.X)),
		math.Max(math.Max(math.Abs(lo.Y), math.Abs(hi.Y)), math.Max(math.Abs(lo.Z), math.Abs(hi.Z))),
	)
	assert.InDelta(t, 2.0, lim, 1e-9)

	var mean r3.Vec
	for _, p := range l {
		mean = r3.Add(mean, p)
	}
	mean = r3.Scale(1/float64(len(l)), mean)
	assert.InDelta(t, 0, r3.Norm(mean), 1e-9)
}

func TestSpringEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Spring(graph.New(), DefaultOptions()))

	g := graph.New()
	g.Add(common.EdgeRecord{Source: "A", Target: "B", Score: 1})
	// Two nodes still go through the simulation.
	assert.Len(t, Spring(g, DefaultOptions()), 2)
}

func TestSpringWithoutEdgesSpreadsNodes(t *testing.T) {
	g := graph.BuildFromSlice([]common.EdgeRecord{
		{Source: "A", Target: "B", Score: 0},
		{Source: "C", Target: "D", Score: 0},
	})
	l := Spring(g, DefaultOptions())

	nodes := g.Nodes()
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			d := r3.Norm(r3.Sub(l[nodes[i].Key], l[nodes[j].Key]))
			assert.Greater(t, d, 1e-3, "%s and %s collapsed", nodes[i].Key, nodes[j].Key)
		}
	}
}

func TestStrongerMatchesEndUpCloser(t *testing.T) {
	g := graph.BuildFromSlice([]common.EdgeRecord{
		{Source: "A", Target: "X", Score: 5},
		{Source: "A", Target: "Y", Score: 0.01},
	})
	opts := DefaultOptions()
	opts.Iterations = 200
	l := Spring(g, opts)

	a := l[graph.NodeKey{Group: graph.GroupSource, Name: "A"}]
	x := l[graph.NodeKey{Group: graph.GroupTarget, Name: "X"}]
	y := l[graph.NodeKey{Group: graph.GroupTarget, Name: "Y"}]
	assert.Less(t, r3.Norm(r3.Sub(a, x)), r3.Norm(r3.Sub(a, y)))
}

func TestZeroIterationsUsesDefault(t *testing.T) {
	g := sample()
	opts := DefaultOptions()
	opts.Iterations = 0
	assert.Equal(t, Spring(g, DefaultOptions()), Spring(g, opts))
}

func TestSpringExtremeScoresStayFinite(t *testing.T) {
	tests := []struct {
		name  string
		score float64
	}{
		{"largest", math.MaxFloat64},
		{"most negative", -math.MaxFloat64},
		{"large", 1e300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph.BuildFromSlice([]common.EdgeRecord{
				{Source: "A", Target: "B", Score: tt.score},
				{Source: "C", Target: "B", Score: 0.5},
			})
			l := Spring(g, DefaultOptions())
			require.Len(t, l, 4)
			for key, p := range l {
				for _, c := range []float64{p.X, p.Y, p.Z} {
					assert.False(t, math.IsNaN(c) || math.IsInf(c, 0), key.String())
				}
			}
		})
	}
}
