// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Schedule renders the window mask schedule: one row per phase, with the fraction of attention
// pairs allowed for a sequence of seqLen tokens. The row of the given epoch is highlighted
// (use a negative epoch for none).
func Schedule(seqLen, epoch int) string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("Window mask schedule (%d tokens)", seqLen)))
	sb.WriteString("\n")
	t := newTable([]string{"Epochs", "Radius", "Allowed pairs"}, lipgloss.Right)
	for ii, phase := range window.Schedule {
		epochs := fmt.Sprintf("%d+", phase.From)
		if ii+1 < len(window.Schedule) {
			epochs = fmt.Sprintf("%d-%d", phase.From, window.Schedule[ii+1].From-1)
		}
		radius, coverage := "unmasked", "100%"
		if phase.Radius > 0 {
			radius = fmt.Sprint(phase.Radius)
			coverage = fmt.Sprintf("%.2f%%", 100*window.Coverage(seqLen, phase.Radius))
		}
		current := epoch >= phase.From && (ii+1 == len(window.Schedule) || epoch < window.Schedule[ii+1].From)
		t.row(current, epochs, radius, coverage)
	}
	sb.WriteString(t.Render())
	return sb.String()
}

// CoverageByEpoch returns, for epochs 0 to numEpochs-1, the fraction of attention pairs allowed
// by the window mask of a sequence of seqLen tokens.
func CoverageByEpoch(seqLen, numEpochs int) plotter.XYs {
	points := make(plotter.XYs, numEpochs)
	for epoch := range numEpochs {
		points[epoch].X = float64(epoch)
		points[epoch].Y = 1
		if radius, masked := window.RadiusForEpoch(epoch); masked {
			points[epoch].Y = window.Coverage(seqLen, radius)
		}
	}
	return points
}

// PlotSchedule saves a plot of CoverageByEpoch to filePath. The image format is taken from the
// file extension (e.g. ".png", ".svg" or ".pdf").
func PlotSchedule(filePath string, seqLen, numEpochs int) error {
	if numEpochs <= 0 {
		return errors.Errorf("invalid number of epochs %d to plot", numEpochs)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Window mask schedule, %d tokens", seqLen)
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "allowed attention pairs"
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(CoverageByEpoch(seqLen, numEpochs))
	if err != nil {
		return errors.Wrap(err, "failed to create schedule plot")
	}
	line.StepStyle = plotter.PostStep
	line.Width = vg.Points(2)
	p.Add(line)
	p.Legend.Add("coverage", line)
	p.Legend.Top = false

	if err = p.Save(8*vg.Inch, 4*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save schedule plot to %q", filePath)
	}
	return nil
}
