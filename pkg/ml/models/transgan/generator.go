// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transgan implements a progressive transformer generator for image-to-image
// translation.
//
// The input image is cut in patches, the patch sequence is projected down to a small grid of
// tokens (the bottleneck), and a stack of transformer blocks runs at full width. Then a few
// upsample stages follow: each doubles the grid with a pixel shuffle (trading 4 channels for 4
// tokens), adds the stage positional embedding and runs a few more transformer blocks. A final
// pixel shuffle and a 1x1 convolution produce the RGB output, bounded to [-1, 1] with tanh.
//
// One block of the upsample stages restricts its attention to a window around each token,
// with a radius that grows with the training epoch (see package window).
//
// Example:
//
//	cfg := transgan.LowResConfig()
//	gen, err := transgan.New(backend, context.New(), cfg)
//	if err != nil { … }
//	output, err := gen.Generate(images, epoch)  // images: [batch, 3, 64, 64], output: [batch, 3, 64, 64].
package transgan

import (
	"fmt"
	"sync"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/transgan/pkg/ml/layers/pixelshuffle"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Scope under which all the generator variables are created.
const Scope = "generator"

// NumChannels of the input and output images.
const NumChannels = 3

// Generator is the progressive transformer generator. Its structure is fixed at construction
// by the Config. The learnable parameters live in the context given to New, under Scope.
//
// Generate is safe for concurrent use. The parameters are never changed by the generator
// itself, only by an external optimizer (or checkpoint loading) between evaluations.
type Generator struct {
	backend backends.Backend
	ctx     *context.Context
	cfg     Config
	plan    *Plan
	dtype   dtypes.DType

	// posEmbeds holds one positional embedding per stage, indexed by stage.
	posEmbeds []*context.Variable

	mu       sync.Mutex
	training bool
	execs    map[execKey]*context.Exec
}

// New validates cfg, lays out the generator and creates its variables in ctx, under Scope.
//
// Variables that already exist in ctx (or are available from its loader, e.g. a checkpoint)
// keep their value. The others are initialized on the backend: positional embeddings from
// a truncated normal seeded by cfg.Seed, and the remaining ones with the context initializer.
func New(backend backends.Backend, ctx *context.Context, cfg Config) (gen *Generator, err error) {
	cfg = cfg.Clone()
	plan, err := NewPlan(cfg)
	if err != nil {
		return nil, err
	}
	dtype, err := cfg.ModelDType()
	if err != nil {
		return nil, err
	}
	gen = &Generator{
		backend: backend,
		ctx:     ctx.In(Scope).Checked(false),
		cfg:     cfg,
		plan:    plan,
		dtype:   dtype,
		execs:   make(map[execKey]*context.Exec),
	}
	klog.V(1).Infof("transgan %s generator, %d blocks:\n%s", cfg.Variant, plan.NumBlocks(), plan)

	// Initial values of the positional embeddings, one per stage.
	rng := newPosEmbedRNG(cfg.Seed)
	posEmbedValues := make([]*tensors.Tensor, len(plan.Stages))
	for _, stage := range plan.Stages {
		value, err := initialPosEmbed(rng, dtype, stage.Tokens, stage.Dim)
		if err != nil {
			return nil, err
		}
		name := PosEmbedName(stage.Index)
		if v := gen.ctx.GetVariableByScopeAndName(gen.ctx.Scope(), name); v != nil && !v.Shape().Equal(value.Shape()) {
			return nil, errors.Errorf("existing positional embedding %q shaped %s, but the configuration requires %s",
				v.ScopeAndName(), v.Shape(), value.Shape())
		}
		posEmbedValues[stage.Index] = value
	}
	if ctx.GetVariableByScopeAndName(context.RootScope, context.RNGStateVariableName) == nil {
		if err = ctx.SetRNGStateFromSeed(cfg.Seed); err != nil {
			return nil, errors.WithMessagef(err, "failed to seed the random number generator")
		}
	}

	// Create the variables, tracing the forward graph once for the ones created by the layers.
	err = TryCatch[error](func() {
		for stageIdx, value := range posEmbedValues {
			gen.posEmbeds = append(gen.posEmbeds, gen.ctx.VariableWithValue(PosEmbedName(stageIdx), value))
		}
		g := NewGraph(backend, "transgan_variables")
		defer g.Finalize()
		input := Parameter(g, "images", shapes.Make(dtype, 1, NumChannels, cfg.ImgSize, cfg.ImgSize))
		gen.forward(gen.ctx, input, 0)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build the transgan generator graph")
	}
	if err = ctx.InitializeVariables(backend, nil); err != nil {
		return nil, errors.WithMessagef(err, "failed to initialize the transgan generator variables")
	}
	klog.V(1).Infof("transgan generator has %d parameters", gen.NumParameters())
	return gen, nil
}

// Config returns a copy of the configuration of the generator.
func (gen *Generator) Config() Config {
	return gen.cfg.Clone()
}

// Plan returns the stage layout of the generator. It must not be modified.
func (gen *Generator) Plan() *Plan {
	return gen.plan
}

// Context returns the context holding the generator variables, scoped at Scope.
func (gen *Generator) Context() *context.Context {
	return gen.ctx
}

// DType of the generator variables and computation.
func (gen *Generator) DType() dtypes.DType {
	return gen.dtype
}

// Forward builds the generator computation for input shaped [batch, 3, ImgSize, ImgSize], and
// returns the generated images shaped [batch, 3, OutputSize, OutputSize], with values in [-1, 1].
//
// The epoch selects the window mask radius (see window.RadiusForEpoch). Dropout and stochastic
// depth are only active if the graph is set to training (see context.Context.SetTraining).
//
// It's a graph building function and it panics on invalid input shapes.
func (gen *Generator) Forward(input *Node, epoch int) *Node {
	return gen.forward(gen.ctx, input, epoch)
}

func (gen *Generator) forward(ctx *context.Context, input *Node, epoch int) *Node {
	g := input.Graph()
	cfg, plan := gen.cfg, gen.plan
	if input.Rank() != 4 || input.Shape().Dimensions[1] != NumChannels ||
		input.Shape().Dimensions[2] != cfg.ImgSize || input.Shape().Dimensions[3] != cfg.ImgSize {
		Panicf("transgan generator requires images shaped [batch, %d, %d, %d], got %s",
			NumChannels, cfg.ImgSize, cfg.ImgSize, input.Shape())
	}
	inputDType := input.DType()
	if !inputDType.IsFloat() {
		Panicf("transgan generator requires float images, got %s", input.Shape())
	}
	batchSize := input.Shape().Dimensions[0]
	x := gen.colocate(input)

	// Patch embedding: [batch, embed_dim, grid, grid] -> [batch, embed_dim, numPatches].
	x = layers.Convolution(ctx.In("patch_embed"), x).
		ChannelsAxis(images.ChannelsFirst).
		Filters(cfg.EmbedDim).
		KernelSize(cfg.PatchSize).
		Strides(cfg.PatchSize).
		NoPadding().
		Done()
	x = Reshape(x, batchSize, cfg.EmbedDim, plan.SeqProjections[0])

	// Shrink the sequence down to the bottleneck grid, and move the channels to the last axis.
	for ii, seqLen := range plan.SeqProjections[1:] {
		x = layers.Dense(ctx.Inf("seq_proj_%d", ii), x, true, seqLen)
	}
	x = TransposeAllAxes(x, 0, 2, 1)

	height, width := plan.Stages[0].Height, plan.Stages[0].Width
	for _, stage := range plan.Stages {
		if stage.Index > 0 {
			x, height, width = pixelshuffle.Upsample(x, height, width)
		}
		x = Add(x, BroadcastToDims(gen.posEmbeds[stage.Index].ValueGraph(g), x.Shape().Dimensions...))
		stageCtx := ctx.Inf("stage_%d", stage.Index)
		for blockIdx, block := range stage.Blocks {
			x = block.Apply(stageCtx.Inf("block_%d", blockIdx), x, epoch)
		}
	}

	// Final upsample and decoding to RGB.
	x, height, width = pixelshuffle.Upsample(x, height, width)
	x = TransposeAllAxes(x, 0, 2, 1)
	x = Reshape(x, batchSize, plan.DecodeDim, height, width)
	x = layers.Convolution(ctx.In("decode"), x).
		ChannelsAxis(images.ChannelsFirst).
		Filters(NumChannels).
		KernelSize(1).
		Done()
	x = Tanh(x)
	return ConvertDType(x, inputDType)
}

// colocate brings an input to the generator dtype. Fixed tensors of the generator (masks,
// positional embeddings) are created in the generator dtype, so they need no conversion.
func (gen *Generator) colocate(x *Node) *Node {
	if x.DType() == gen.dtype {
		return x
	}
	return ConvertDType(x, gen.dtype)
}

// String implements fmt.Stringer.
func (gen *Generator) String() string {
	return fmt.Sprintf("transgan.Generator(%s, %dx%d -> %dx%d, %s)", gen.cfg.Variant,
		gen.cfg.ImgSize, gen.cfg.ImgSize, gen.plan.OutputSize, gen.plan.OutputSize, gen.dtype)
}
