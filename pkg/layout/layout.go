package layout

import (
	"math"
	"math/rand/v2"

	"github.com/OFFIS-RIT/matchgraph/pkg/graph"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSeed keeps rendered artifacts stable between runs.
const DefaultSeed int64 = 42

const (
	defaultIterations = 50
	defaultThreshold  = 1e-4
	minDistance       = 0.01
)

// Layout maps every node to a position in 3D space.
type Layout map[graph.NodeKey]r3.Vec

// Options configures Spring.
//
// K is the optimal distance between nodes; zero selects 1/sqrt(n).
// Threshold stops the simulation early once the mean node displacement of an
// iteration falls below it. Scale is the half-width of the box the final
// positions are rescaled into; zero or negative keeps the raw positions.
type Options struct {
	Seed       int64   `yaml:"seed"`
	Iterations int     `yaml:"iterations" validate:"min=1"`
	K          float64 `yaml:"k" validate:"min=0"`
	Threshold  float64 `yaml:"threshold" validate:"min=0"`
	Scale      float64 `yaml:"scale"`
}

// DefaultOptions returns the settings used for the published artifact.
func DefaultOptions() Options {
	return Options{
		Seed:       DefaultSeed,
		Iterations: defaultIterations,
		Threshold:  defaultThreshold,
		Scale:      1,
	}
}

// Spring computes a force-directed layout of g. Nodes repel each other with
// k²/d and edges pull their endpoints together with weight·d²/k, so pairs with
// a higher match score end up closer. The result only depends on g and opts.
func Spring(g *graph.Graph, opts Options) Layout {
	if opts.Iterations <= 0 {
		opts.Iterations = defaultIterations
	}

	nodes := g.Nodes()
	n := len(nodes)
	out := make(Layout, n)
	switch n {
	case 0:
		return out
	case 1:
		out[nodes[0].Key] = r3.Vec{}
		return out
	}

	index := make(map[int64]int, n)
	for i, node := range nodes {
		index[node.ID()] = i
	}

	adj := make([][]float64, n)
	for i := range adj {
		adj[i] = make([]float64, n)
	}
	// Weights above 1 are scaled into [-1, 1] so that finite but huge match
	// scores cannot overflow the attraction term.
	edges := g.Edges()
	norm := 1.0
	for _, m := range edges {
		norm = math.Max(norm, math.Abs(m.W))
	}
	for _, m := range edges {
		i, j := index[m.F.ID()], index[m.T.ID()]
		adj[i][j] = m.W / norm
		adj[j][i] = m.W / norm
	}

	pos := initialPositions(n, opts.Seed)

	k := opts.K
	if k <= 0 {
		k = math.Sqrt(1 / float64(n))
	}

	// The temperature bounds the step length of a node per iteration and
	// cools linearly to zero.
	t := 0.1 * span(pos)
	dt := t / float64(opts.Iterations+1)

	disp := make([]r3.Vec, n)
	for iter := 0; iter < opts.Iterations; iter++ {
		for i := range disp {
			disp[i] = r3.Vec{}
		}

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				delta := r3.Sub(pos[i], pos[j])
				d := math.Max(r3.Norm(delta), minDistance)
				force := k*k/(d*d) - adj[i][j]*d/k
				disp[i] = r3.Add(disp[i], r3.Scale(force, delta))
			}
		}

		var moved float64
		for i := range pos {
			length := r3.Norm(disp[i])
			if math.IsInf(length, 0) || math.IsNaN(length) {
				continue
			}
			if length < minDistance {
				length = 0.1
			}
			step := r3.Scale(t/length, disp[i])
			pos[i] = r3.Add(pos[i], step)
			moved += r3.Norm2(step)
		}

		t -= dt
		if math.Sqrt(moved)/float64(n) < opts.Threshold {
			break
		}
	}

	if opts.Scale > 0 {
		rescale(pos, opts.Scale)
	}

	for i, node := range nodes {
		out[node.Key] = pos[i]
	}
	return out
}

// initialPositions draws uniform positions in the unit cube from a PCG
// source seeded with seed.
func initialPositions(n int, seed int64) []r3.Vec {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	pos := make([]r3.Vec, n)
	for i := range pos {
		pos[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
	}
	return pos
}

// span returns the largest extent of the positions along any axis.
func span(pos []r3.Vec) float64 {
	lo := pos[0]
	hi := pos[0]
	for _, p := range pos[1:] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	ext := r3.Sub(hi, lo)
	return math.Max(ext.X, math.Max(ext.Y, ext.Z))
}

// rescale centres the positions on the origin and scales them so the largest
// absolute coordinate equals scale.
func rescale(pos []r3.Vec, scale float64) {
	var mean r3.Vec
	for _, p := range pos {
		mean = r3.Add(mean, p)
	}
	mean = r3.Scale(1/float64(len(pos)), mean)

	var lim float64
	for i := range pos {
		pos[i] = r3.Sub(pos[i], mean)
		lim = math.Max(lim, math.Max(math.Abs(pos[i].X), math.Max(math.Abs(pos[i].Y), math.Abs(pos[i].Z))))
	}
	if lim == 0 {
		return
	}
	for i := range pos {
		pos[i] = r3.Scale(scale/lim, pos[i])
	}
}

// Bounds returns the smallest box containing all positions.
func (l Layout) Bounds() (lo, hi r3.Vec) {
	first := true
	for _, p := range l {
		if first {
			lo, hi = p, p
			first = false
			continue
		}
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}
