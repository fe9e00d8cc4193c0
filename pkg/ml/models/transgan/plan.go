// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"fmt"
	"strings"

	"github.com/gomlx/transgan/pkg/ml/layers/transformer"
	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/pkg/errors"
)

// Stage of the generator: a grid of tokens processed by a stack of transformer blocks.
// Stage 0 is the bottleneck, the following ones are entered with a pixel upsample.
type Stage struct {
	Index         int
	Height, Width int

	// Tokens is the sequence length, Height*Width.
	Tokens int

	// Dim is the channel width of the tokens.
	Dim int

	Blocks []transformer.Block

	// MaskedBlock is the index of the window masked block, or -1 if none.
	MaskedBlock int
}

// Plan is the layout of the generator derived from a valid Config. It is immutable.
type Plan struct {
	// Stages in execution order: the bottleneck followed by the upsample stages.
	Stages []Stage

	// SeqProjections are the sequence lengths of the linear projections from the patch sequence
	// to the bottleneck grid (see Config.SeqProjections).
	SeqProjections []int

	// DecodeHeight, DecodeWidth and DecodeDim describe the grid after the final pixel upsample,
	// the input of the 1x1 convolution to RGB.
	DecodeHeight, DecodeWidth, DecodeDim int

	// OutputSize is the height and width of the generated images.
	OutputSize int

	// Masks used by the window masked block, nil if window masking is disabled.
	Masks *window.Set
}

// NewPlan validates cfg and lays out the generator stages.
func NewPlan(cfg Config) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plan := &Plan{
		SeqProjections: cfg.SeqProjections(),
		OutputSize:     cfg.OutputSize(),
	}
	maskStage, maskBlock, masked := cfg.MaskLocation()

	dropPathRates := transformer.LinearDropPathRates(cfg.DropPathRate, cfg.Depth)
	depths := append([]int{cfg.Depth}, cfg.UpsampleDepths...)
	side := cfg.BottomWidth
	for stageIdx, depth := range depths {
		stage := Stage{
			Index:       stageIdx,
			Height:      side,
			Width:       side,
			Tokens:      side * side,
			Dim:         cfg.StageDim(stageIdx),
			MaskedBlock: -1,
		}
		if masked && stageIdx == maskStage+1 {
			stage.MaskedBlock = maskBlock
			var err error
			plan.Masks, err = window.NewSet(stage.Tokens)
			if err != nil {
				return nil, errors.WithMessagef(err, "failed to build window masks for stage %d", stageIdx)
			}
		}
		for blockIdx := range depth {
			block := transformer.Block{
				Dim:          stage.Dim,
				NumHeads:     cfg.NumHeads,
				MLPRatio:     cfg.MLPRatio,
				QKVBias:      cfg.QKVBias,
				QKScale:      cfg.QKScale,
				DropRate:     cfg.DropRate,
				AttnDropRate: cfg.AttnDropRate,
			}
			if stageIdx == 0 {
				block.DropPath = dropPathRates[blockIdx]
			}
			if blockIdx == stage.MaskedBlock {
				block.Masks = plan.Masks
			}
			if err := block.Validate(); err != nil {
				return nil, errors.Wrapf(ErrInvalidConfig, "stage %d block %d: %v", stageIdx, blockIdx, err)
			}
			stage.Blocks = append(stage.Blocks, block)
		}
		plan.Stages = append(plan.Stages, stage)
		side *= 2
	}
	plan.DecodeHeight, plan.DecodeWidth = side, side
	plan.DecodeDim = cfg.StageDim(len(depths))
	return plan, nil
}

// NumBlocks returns the total number of transformer blocks.
func (p *Plan) NumBlocks() int {
	var count int
	for _, stage := range p.Stages {
		count += len(stage.Blocks)
	}
	return count
}

// String implements fmt.Stringer.
func (p *Plan) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "sequence projections %v\n", p.SeqProjections)
	for _, stage := range p.Stages {
		_, _ = fmt.Fprintf(&sb, "stage %d: %dx%d tokens of width %d, %d blocks", stage.Index, stage.Height, stage.Width,
			stage.Dim, len(stage.Blocks))
		if stage.MaskedBlock >= 0 {
			_, _ = fmt.Fprintf(&sb, " (block %d window masked)", stage.MaskedBlock)
		}
		sb.WriteString("\n")
	}
	_, _ = fmt.Fprintf(&sb, "decode: %dx%d tokens of width %d -> %dx%d RGB", p.DecodeHeight, p.DecodeWidth, p.DecodeDim,
		p.OutputSize, p.OutputSize)
	return sb.String()
}
