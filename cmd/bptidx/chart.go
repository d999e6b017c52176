package main

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotResults draws one group of bars per workload, one bar per structure.
func plotResults(results []BenchResult, path string) error {
	var names []string
	var ops []WorkloadType
	latency := make(map[string]map[WorkloadType]float64)
	for _, r := range results {
		if latency[r.Name] == nil {
			latency[r.Name] = make(map[WorkloadType]float64)
			names = append(names, r.Name)
		}
		ops = appendOnce(ops, r.Operation)
		latency[r.Name][r.Operation] = float64(r.LatencyNs)
	}

	p := plot.New()
	p.Title.Text = "Latency per operation"
	p.Y.Label.Text = "ns/op"

	w := vg.Points(14)
	for i, name := range names {
		vals := make(plotter.Values, len(ops))
		for j, op := range ops {
			vals[j] = latency[name][op]
		}
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return errors.Wrapf(err, "bars for %s", name)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = w * vg.Length(float64(i)-float64(len(names)-1)/2)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}
	p.Legend.Top = true

	labels := make([]string, len(ops))
	for i, op := range ops {
		labels[i] = string(op)
	}
	p.NominalX(labels...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func appendOnce(ops []WorkloadType, op WorkloadType) []WorkloadType {
	for _, o := range ops {
		if o == op {
			return ops
		}
	}
	return append(ops, op)
}
