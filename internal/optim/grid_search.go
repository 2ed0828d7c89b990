package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/experiment"
)

// Point is one evaluated combination of the grid.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search runs one experiment per grid point and returns every point in
// grid order together with the index of the best one, or -1 if no point
// succeeded. Failed runs are kept with their error. When maximize is false
// the smallest metric value wins.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
	maximize bool,
) ([]Point, int, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, -1, fmt.Errorf("%w: %d parameters but %d ranges",
			dynamo.ErrInvalidConfig, len(g.paramNames), len(g.ranges))
	}

	points := make([]Point, 0, g.size())
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, &points); err != nil {
		return points, -1, err
	}

	best := -1
	for i, p := range points {
		if p.Err != nil || math.IsNaN(p.Value) {
			continue
		}
		if best < 0 || (maximize && p.Value > points[best].Value) || (!maximize && p.Value < points[best].Value) {
			best = i
		}
	}
	return points, best, nil
}

func (g *GridSearch) size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	points *[]Point,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		p := Point{Params: current}
		exp, err := buildExperiment(current)
		if err != nil {
			p.Err = err
			*points = append(*points, p)
			return nil
		}

		result, err := exp.Run(ctx)
		if err != nil {
			p.Err = err
		} else if val, ok := result.Metrics[metricName]; ok {
			p.Value = val
		} else {
			p.Err = fmt.Errorf("%w: metric %s", dynamo.ErrUnknownName, metricName)
		}
		*points = append(*points, p)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, points); err != nil {
			return err
		}
	}
	return nil
}

// ParseRange parses "name=start:stop:n" into n evenly spaced values from
// start to stop inclusive, or "name=v1,v2,..." into an explicit list.
func ParseRange(expr string) (string, []float64, error) {
	name, body, ok := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || body == "" {
		return "", nil, fmt.Errorf("%w: range %q, want name=start:stop:n or name=v1,v2", dynamo.ErrInvalidConfig, expr)
	}

	if parts := strings.Split(body, ":"); len(parts) == 3 {
		start, err1 := strconv.ParseFloat(parts[0], 64)
		stop, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			return "", nil, fmt.Errorf("%w: range %q", dynamo.ErrInvalidConfig, expr)
		}
		return name, linspace(start, stop, n), nil
	}

	fields := strings.Split(body, ",")
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: range %q: %v", dynamo.ErrInvalidConfig, expr, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

func linspace(start, stop float64, n int) []float64 {
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// SortedNames returns the parameter names of p in a stable order.
func (p Point) SortedNames() []string {
	names := make([]string, 0, len(p.Params))
	for k := range p.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
