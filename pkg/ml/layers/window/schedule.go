// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package window

// Phase is one step of the window schedule: from epoch From (inclusive) onward the mask with
// the given Radius is used, until the next phase starts. A Radius of 0 means attention is
// not masked.
type Phase struct {
	From, Radius int
}

// Schedule is the fixed epoch schedule, widening the window as training progresses and
// disabling it from epoch 60 onward.
var Schedule = []Phase{
	{From: 0, Radius: 4},
	{From: 22, Radius: 6},
	{From: 32, Radius: 8},
	{From: 42, Radius: 10},
	{From: 60, Radius: 0},
}

// RadiusForEpoch returns the window radius selected for the epoch, and whether masking is
// active at all. Negative epochs are treated as epoch 0.
func RadiusForEpoch(epoch int) (radius int, masked bool) {
	for _, phase := range Schedule {
		if epoch >= phase.From {
			radius = phase.Radius
		}
	}
	if epoch < 0 {
		radius = Schedule[0].Radius
	}
	return radius, radius > 0
}
