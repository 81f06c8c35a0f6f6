// Package kmeans splits tracks into mood clusters over (energy, valence).
package kmeans

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"

	"github.com/muesli/clusters"
)

// Point is one track in feature space.
type Point struct {
	ID      string
	Energy  float64
	Valence float64
}

// Result holds one label per input point, in input order, and the centroid
// of each label as (energy, valence).
type Result struct {
	Labels    []int
	Centroids [][2]float64
}

// Sizes returns the number of points carrying each label.
func (r Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, l := range r.Labels {
		sizes[l]++
	}
	return sizes
}

// Plotter renders a finished partition.
type Plotter interface {
	Plot(name string, points []Point, res Result) error
}

// Engine runs seeded k-means several times and keeps the tightest partition.
// Labels are numbered by ascending centroid energy, then valence, so equal
// inputs always yield equal labels.
type Engine struct {
	Restarts int
	// Seed drives the k-means++ choice of initial centers.
	Seed int64
	// Plotter is optional.
	Plotter Plotter
}

type observation struct {
	index  int
	coords clusters.Coordinates
}

func (o observation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o observation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Partition clusters points into k groups. name identifies the partition in
// plots.
func (e *Engine) Partition(name string, points []Point, k int) (Result, error) {
	if k < 1 {
		return Result{}, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if len(points) < k {
		return Result{}, fmt.Errorf("cannot split %d points into %d clusters", len(points), k)
	}

	obs := make(clusters.Observations, len(points))
	for i, p := range points {
		obs[i] = observation{index: i, coords: clusters.Coordinates{p.Energy, p.Valence}}
	}

	rng := rand.New(rand.NewSource(e.Seed))
	var best clusters.Clusters
	bestInertia := math.Inf(1)
	for r := 0; r < max(e.Restarts, 1); r++ {
		cc := initialCenters(obs, k, rng)
		settle(cc, obs)
		if in := inertia(cc); in < bestInertia {
			best, bestInertia = cc, in
		}
	}

	res := canonical(best, len(points))
	if e.Plotter != nil {
		if err := e.Plotter.Plot(name, points, res); err != nil {
			return res, fmt.Errorf("plotting %s: %w", name, err)
		}
	}
	return res, nil
}

// initialCenters picks k centers from obs by k-means++: each further center
// is drawn with probability proportional to its squared distance from the
// nearest center already chosen.
func initialCenters(obs clusters.Observations, k int, rng *rand.Rand) clusters.Clusters {
	cc := make(clusters.Clusters, 0, k)
	cc = append(cc, clusters.Cluster{Center: slices.Clone(obs[rng.Intn(len(obs))].Coordinates())})

	dist := make([]float64, len(obs))
	for len(cc) < k {
		var total float64
		for i, o := range obs {
			dist[i] = o.Distance(cc[cc.Nearest(o)].Center)
			total += dist[i]
		}

		next := rng.Intn(len(obs))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				if d == 0 {
					continue
				}
				next = i
				if target -= d; target < 0 {
					break
				}
			}
		}
		cc = append(cc, clusters.Cluster{Center: slices.Clone(obs[next].Coordinates())})
	}
	return cc
}

// maxSettleRounds bounds settle on inputs that oscillate.
const maxSettleRounds = 1000

// settle repeats Lloyd steps from the current centers until no point moves.
// Points are visited in input order so equal assignments yield bit-identical
// centers.
func settle(cc clusters.Clusters, obs clusters.Observations) {
	assigned := make([]int, len(obs))
	for i := range assigned {
		assigned[i] = -1
	}
	for round := 0; round < maxSettleRounds; round++ {
		cc.Reset()
		moved := false
		for i, o := range obs {
			ci := cc.Nearest(o)
			cc[ci].Append(o)
			if assigned[i] != ci {
				assigned[i] = ci
				moved = true
			}
		}
		if !moved {
			return
		}
		cc.Recenter()
	}
}

func inertia(cc clusters.Clusters) float64 {
	var sum float64
	for _, c := range cc {
		for _, o := range c.Observations {
			sum += o.Distance(c.Center)
		}
	}
	return sum
}

func canonical(cc clusters.Clusters, n int) Result {
	order := make([]int, len(cc))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := cc[order[a]].Center, cc[order[b]].Center
		if ca[0] != cb[0] {
			return ca[0] < cb[0]
		}
		return ca[1] < cb[1]
	})

	res := Result{
		Labels:    make([]int, n),
		Centroids: make([][2]float64, len(cc)),
	}
	for label, ci := range order {
		c := cc[ci]
		res.Centroids[label] = [2]float64{c.Center[0], c.Center[1]}
		for _, o := range c.Observations {
			res.Labels[o.(observation).index] = label
		}
	}
	return res
}

// ClusterCount is the number of playlists a super-genre of size tracks is split
// into once it reaches limit.
func ClusterCount(size, limit int) int {
	return size/limit + 1
}
