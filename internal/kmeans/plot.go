package kmeans

import (
	"fmt"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGPlotter writes one energy/valence scatter plot per partition into Dir.
type PNGPlotter struct {
	Dir string
}

func (p PNGPlotter) Plot(name string, points []Point, res Result) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}

	xs := make([][]float64, len(res.Centroids))
	ys := make([][]float64, len(res.Centroids))
	for i, pt := range points {
		l := res.Labels[i]
		xs[l] = append(xs[l], pt.Energy)
		ys[l] = append(ys[l], pt.Valence)
	}

	var series []chart.Series
	var cx, cy []float64
	for l, c := range res.Centroids {
		series = append(series, chart.ContinuousSeries{
			Name: fmt.Sprintf("cluster %d", l),
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    5,
				DotColor:    chart.GetDefaultColor(l),
			},
			XValues: xs[l],
			YValues: ys[l],
		})
		cx = append(cx, c[0])
		cy = append(cy, c[1])
	}
	series = append(series, chart.ContinuousSeries{
		Name: "centroids",
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    10,
			DotColor:    drawing.ColorBlack,
		},
		XValues: cx,
		YValues: cy,
	})

	graph := chart.Chart{
		Title:  "super-genre " + name,
		Width:  1024,
		Height: 1024,
		XAxis:  chart.XAxis{Name: "energy"},
		YAxis:  chart.YAxis{Name: "valence"},
		Series: series,
	}

	f, err := os.Create(filepath.Join(p.Dir, fmt.Sprintf("supergenre-%s.png", name)))
	if err != nil {
		return err
	}
	defer f.Close()
	return graph.Render(chart.PNG, f)
}
