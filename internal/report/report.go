// Package report renders run summaries and comparison tables for the
// terminal.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/dpend/internal/experiment"
	"github.com/san-kum/dpend/internal/optim"
	"github.com/san-kum/dpend/internal/storage"
)

const rad2deg = 180 / math.Pi

// Summary renders the metadata of a stored run.
func Summary(meta *storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(Title.Render(meta.ID))
	b.WriteString("\n\n")

	pairs := [][2]string{
		{"model", meta.Model},
		{"created", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"integrator", meta.Integrator},
		{"dt", fmt.Sprintf("%.4fs", meta.Dt)},
		{"duration", fmt.Sprintf("%.2fs", meta.Duration)},
		{"tolerance", fmt.Sprintf("%.1e", meta.Tolerance)},
		{"samples", fmt.Sprintf("%d", meta.Samples)},
		{"steps", fmt.Sprintf("%d (%d rejected)", meta.StepsTaken, meta.Rejected)},
	}
	if len(meta.InitState) > 0 {
		pairs = append(pairs, [2]string{"initial", formatAngles(meta.InitState)})
	}
	for _, k := range sortedKeys(meta.Params) {
		pairs = append(pairs, [2]string{k, fmt.Sprintf("%g", meta.Params[k])})
	}
	writePairs(&b, pairs)

	b.WriteString("\n")
	b.WriteString(Label.Render(fmt.Sprintf("%-12s", "energy drift")))
	b.WriteString(driftStyle(meta.EnergyDrift).Render(fmt.Sprintf("%.3e", meta.EnergyDrift)))
	b.WriteString("\n")

	if len(meta.Metrics) > 0 {
		b.WriteString("\n")
		metrics := make([][2]string, 0, len(meta.Metrics))
		for _, k := range sortedKeys(meta.Metrics) {
			metrics = append(metrics, [2]string{k, fmt.Sprintf("%.6f", meta.Metrics[k])})
		}
		writePairs(&b, metrics)
	}

	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// Comparison renders one row per integrator.
func Comparison(rows []experiment.Comparison) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Label).
		Headers("integrator", "theta1", "theta2", "energy drift", "steps", "rejected", "time").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Header
			}
			return Cell
		})

	for _, r := range rows {
		if r.Err != nil {
			t.Row(r.Integrator, Bad.Render("error: "+r.Err.Error()), "", "", "", "", "")
			continue
		}
		th1, th2 := "-", "-"
		if len(r.Final) >= 3 {
			th1 = fmt.Sprintf("%.6f", r.Final[0])
			th2 = fmt.Sprintf("%.6f", r.Final[2])
		} else if len(r.Final) > 0 {
			th1 = fmt.Sprintf("%.6f", r.Final[0])
		}
		t.Row(
			r.Integrator,
			th1,
			th2,
			driftStyle(r.EnergyDrift).Render(fmt.Sprintf("%.2e", r.EnergyDrift)),
			fmt.Sprintf("%d", r.Steps),
			fmt.Sprintf("%d", r.Rejected),
			fmt.Sprintf("%.2fms", float64(r.Elapsed.Microseconds())/1000),
		)
	}
	return t.Render()
}

// Divergence renders the separation of every perturbed member at a few
// evenly spaced sample times.
func Divergence(d *experiment.Divergence, columns int) string {
	if len(d.Times) == 0 || len(d.Separations) == 0 {
		return ""
	}
	if columns < 2 {
		columns = 2
	}
	idx := make([]int, 0, columns)
	for k := 0; k < columns; k++ {
		i := k * (len(d.Times) - 1) / (columns - 1)
		if len(idx) == 0 || idx[len(idx)-1] != i {
			idx = append(idx, i)
		}
	}

	headers := []string{"delta", "diverged"}
	for _, i := range idx {
		headers = append(headers, fmt.Sprintf("t=%.1f", d.Times[i]))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Label).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Header
			}
			return Cell
		})

	for m, sep := range d.Separations {
		diverged := Good.Render("no")
		if d.DivergedAt[m] >= 0 {
			diverged = Bad.Render(fmt.Sprintf("%.2fs", d.DivergedAt[m]))
		}
		row := []string{fmt.Sprintf("%.1e", float64(m+1)*d.Epsilon), diverged}
		for _, i := range idx {
			row = append(row, fmt.Sprintf("%.2e", sep[i]))
		}
		t.Row(row...)
	}
	return t.Render()
}

func writePairs(b *strings.Builder, pairs [][2]string) {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}
	for _, p := range pairs {
		b.WriteString(Label.Render(fmt.Sprintf("%-*s", width+2, p[0])))
		b.WriteString(Value.Render(p[1]))
		b.WriteString("\n")
	}
}

func formatAngles(x []float64) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = fmt.Sprintf("%.2f°", v*rad2deg)
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sweep renders every grid point with its metric value and marks the best.
func Sweep(points []optim.Point, best int, metric string) string {
	if len(points) == 0 {
		return ""
	}
	names := points[0].SortedNames()
	headers := append(append([]string{}, names...), metric)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Label).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return Header
			case row == best:
				return Cell.Inherit(Good)
			}
			return Cell
		})

	for _, p := range points {
		row := make([]string, 0, len(headers))
		for _, n := range names {
			row = append(row, fmt.Sprintf("%g", p.Params[n]))
		}
		if p.Err != nil {
			row = append(row, Bad.Render("error: "+p.Err.Error()))
		} else {
			row = append(row, fmt.Sprintf("%.6g", p.Value))
		}
		t.Row(row...)
	}
	return t.Render()
}
