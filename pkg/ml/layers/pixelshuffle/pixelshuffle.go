// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pixelshuffle implements the sub-pixel rearrangement ("pixel shuffle") of token sequences
// that carry an implicit spatial grid.
//
// Upsample trades channel depth for spatial resolution: a sequence shaped [batch, H*W, C] becomes
// [batch, 2H*2W, C/4]. It has no parameters and is a pure permutation of the input values, so
// Downsample recovers the original tensor exactly.
package pixelshuffle

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/pkg/errors"
)

// Factor is the spatial upscale factor per axis. Channels must be divisible by Factor².
const Factor = 2

// CheckGrid verifies that a token sequence of seqLen tokens and the given number of channels
// can be upsampled on a height×width grid.
func CheckGrid(seqLen, channels, height, width int) error {
	if height <= 0 || width <= 0 {
		return errors.Errorf("invalid grid %dx%d", height, width)
	}
	if seqLen != height*width {
		return errors.Errorf("sequence length %d doesn't match grid %dx%d (=%d)", seqLen, height, width, height*width)
	}
	if channels%(Factor*Factor) != 0 {
		return errors.Errorf("channels (%d) must be divisible by %d", channels, Factor*Factor)
	}
	return nil
}

// Upsample reinterprets x, shaped [batch, height*width, channels], as a spatial grid and moves each
// group of 4 consecutive channels into a 2×2 spatial block: input channel 4c+2i+j at (h, w) becomes
// output channel c at (2h+i, 2w+j). The result is flattened back to a token sequence shaped
// [batch, 4*height*width, channels/4].
//
// It returns the new grid dimensions along with the result.
// It panics if the sequence length doesn't match the grid, or if channels is not divisible by 4.
func Upsample(x *Node, height, width int) (y *Node, newHeight, newWidth int) {
	if x.Rank() != 3 {
		Panicf("pixelshuffle.Upsample requires x shaped [batch, seq, channels], got %s", x.Shape())
	}
	dims := x.Shape().Dimensions
	batchSize, seqLen, channels := dims[0], dims[1], dims[2]
	if err := CheckGrid(seqLen, channels, height, width); err != nil {
		panic(errors.WithMessagef(err, "pixelshuffle.Upsample(x.shape=%s)", x.Shape()))
	}
	outChannels := channels / (Factor * Factor)

	y = TransposeAllAxes(x, 0, 2, 1) // [batch, channels, seq]
	y = Reshape(y, batchSize, outChannels, Factor, Factor, height, width)
	y = TransposeAllAxes(y, 0, 1, 4, 2, 5, 3) // [batch, outChannels, height, Factor, width, Factor]
	y = Reshape(y, batchSize, outChannels, seqLen*Factor*Factor)
	y = TransposeAllAxes(y, 0, 2, 1)
	return y, height * Factor, width * Factor
}

// Downsample is the inverse of Upsample: it takes y shaped [batch, height*width, channels], with
// height and width even, and returns it shaped [batch, height*width/4, channels*4], along with
// the halved grid dimensions.
func Downsample(y *Node, height, width int) (x *Node, newHeight, newWidth int) {
	if y.Rank() != 3 {
		Panicf("pixelshuffle.Downsample requires y shaped [batch, seq, channels], got %s", y.Shape())
	}
	dims := y.Shape().Dimensions
	batchSize, seqLen, channels := dims[0], dims[1], dims[2]
	if seqLen != height*width || height%Factor != 0 || width%Factor != 0 {
		Panicf("pixelshuffle.Downsample: sequence length %d doesn't match an even grid %dx%d", seqLen, height, width)
	}
	newHeight, newWidth = height/Factor, width/Factor

	x = TransposeAllAxes(y, 0, 2, 1) // [batch, channels, seq]
	x = Reshape(x, batchSize, channels, newHeight, Factor, newWidth, Factor)
	x = TransposeAllAxes(x, 0, 1, 3, 5, 2, 4) // [batch, channels, Factor, Factor, newHeight, newWidth]
	x = Reshape(x, batchSize, channels*Factor*Factor, newHeight*newWidth)
	x = TransposeAllAxes(x, 0, 2, 1)
	return x, newHeight, newWidth
}
