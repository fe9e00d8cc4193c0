// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package window builds the banded local-attention masks used by the generator's masked
// attention blocks, and the epoch schedule that selects which of them is active.
//
// Masks are purely positional: they depend only on the sequence length and the window radius,
// so they are computed once on the host and cached for the lifetime of the model.
package window

import (
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Radii lists the window radii for which a Set precomputes masks, in increasing order.
var Radii = []int{4, 5, 6, 7, 8, 10}

// Mask returns the row-major n×n allow-matrix for a window of radius w: position i may attend
// to position j iff |i-j| <= w. Rows near the borders are clamped to the valid range, so every
// row allows at least its own position whenever w >= 0.
//
// A negative radius returns an all-false matrix.
func Mask(n, w int) []bool {
	mask := make([]bool, n*n)
	if w < 0 {
		return mask
	}
	for row := range n {
		from, to := max(0, row-w), min(n-1, row+w)
		rowMask := mask[row*n : (row+1)*n]
		for col := from; col <= to; col++ {
			rowMask[col] = true
		}
	}
	return mask
}

// Coverage returns the fraction of (query, key) pairs allowed by Mask(n, w).
func Coverage(n, w int) float64 {
	if n <= 0 {
		return 0
	}
	var allowed int
	for _, v := range Mask(n, w) {
		if v {
			allowed++
		}
	}
	return float64(allowed) / float64(n*n)
}

// Set holds the precomputed masks of one masked attention instance: one boolean tensor shaped
// [1, 1, seqLen, seqLen] per radius in Radii.
//
// A Set is immutable after creation and can be shared by any number of graphs.
type Set struct {
	seqLen int
	masks  map[int]*tensors.Tensor
}

// NewSet precomputes the masks for all Radii at the given sequence length.
func NewSet(seqLen int) (*Set, error) {
	if seqLen <= 0 {
		return nil, errors.Errorf("window.NewSet: sequence length must be positive, got %d", seqLen)
	}
	s := &Set{
		seqLen: seqLen,
		masks:  make(map[int]*tensors.Tensor, len(Radii)),
	}
	for _, radius := range Radii {
		s.masks[radius] = tensors.FromFlatDataAndDimensions(Mask(seqLen, radius), 1, 1, seqLen, seqLen)
	}
	return s, nil
}

// SeqLen returns the sequence length the masks were built for.
func (s *Set) SeqLen() int {
	return s.seqLen
}

// Tensor returns the cached mask for radius. It returns nil for radii not in Radii.
func (s *Set) Tensor(radius int) *tensors.Tensor {
	return s.masks[radius]
}

// ForEpoch returns the mask selected by the schedule for the given epoch, and its radius.
// It returns (nil, 0) once the schedule disables masking.
func (s *Set) ForEpoch(epoch int) (mask *tensors.Tensor, radius int) {
	radius, masked := RadiusForEpoch(epoch)
	if !masked {
		return nil, 0
	}
	return s.Tensor(radius), radius
}

// String implements fmt.Stringer.
func (s *Set) String() string {
	radii := make([]int, 0, len(s.masks))
	for r := range s.masks {
		radii = append(radii, r)
	}
	slices.Sort(radii)
	return fmt.Sprintf("window.Set(seqLen=%d, radii=%v)", s.seqLen, radii)
}
