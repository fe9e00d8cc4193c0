// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transgan

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

// Variants of the generator.
const (
	// VariantHighRes upsamples in 3 stages and shrinks the patch sequence with 3 projections.
	VariantHighRes = "highres"

	// VariantLowRes upsamples in 2 stages and shrinks the patch sequence with 2 projections.
	VariantLowRes = "lowres"
)

// ErrInvalidConfig is wrapped by every error returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid transgan configuration")

// Config of the generator. The mapstructure tags are the names of the corresponding
// context hyperparameters (see CreateDefaultContext) and of the YAML configuration keys.
type Config struct {
	// Variant is either VariantHighRes or VariantLowRes.
	Variant string `mapstructure:"variant" yaml:"variant"`

	// ImgSize is the height and width of the input images. It must be divisible by PatchSize.
	ImgSize int `mapstructure:"img_size" yaml:"img_size"`

	// PatchSize is the kernel size and stride of the patch embedding convolution.
	PatchSize int `mapstructure:"patch_size" yaml:"patch_size"`

	// BottomWidth is the height and width of the token grid at the bottleneck.
	BottomWidth int `mapstructure:"bottom_width" yaml:"bottom_width"`

	// EmbedDim is the channel width at the bottleneck. Every upsample stage divides it by 4.
	EmbedDim int `mapstructure:"embed_dim" yaml:"embed_dim"`

	// Depth is the number of transformer blocks at the bottleneck.
	Depth int `mapstructure:"depth" yaml:"depth"`

	// UpsampleDepths is the number of transformer blocks of each upsample stage.
	UpsampleDepths []int `mapstructure:"upsample_depths" yaml:"upsample_depths"`

	NumHeads int     `mapstructure:"num_heads" yaml:"num_heads"`
	MLPRatio float64 `mapstructure:"mlp_ratio" yaml:"mlp_ratio"`
	QKVBias  bool    `mapstructure:"qkv_bias" yaml:"qkv_bias"`

	// QKScale overrides the attention scale (1/sqrt(head_dim)) if > 0.
	QKScale float64 `mapstructure:"qk_scale" yaml:"qk_scale"`

	DropRate     float64 `mapstructure:"drop_rate" yaml:"drop_rate"`
	AttnDropRate float64 `mapstructure:"attn_drop_rate" yaml:"attn_drop_rate"`

	// DropPathRate is the stochastic depth probability of the last bottleneck block. It grows
	// linearly from 0 over the bottleneck blocks. Upsample blocks don't use stochastic depth.
	DropPathRate float64 `mapstructure:"drop_path_rate" yaml:"drop_path_rate"`

	// WindowMask enables the epoch-scheduled window mask on one upsample block, selected
	// by MaskStage and MaskBlock. Negative indices count from the end (-1 is the last).
	WindowMask bool `mapstructure:"window_mask" yaml:"window_mask"`
	MaskStage  int  `mapstructure:"mask_stage" yaml:"mask_stage"`
	MaskBlock  int  `mapstructure:"mask_block" yaml:"mask_block"`

	// DType of the model variables and computation: "float32", "float64" or "float16".
	DType string `mapstructure:"dtype" yaml:"dtype"`

	// Seed for the initialization of the positional embeddings and for the random number
	// generator used by dropout and stochastic depth.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// HighResConfig returns the configuration of the high-resolution generator: 256x256 inputs,
// 128x128 outputs, window masking on the first block of the first upsample stage.
func HighResConfig() Config {
	return Config{
		Variant:        VariantHighRes,
		ImgSize:        256,
		PatchSize:      16,
		BottomWidth:    8,
		EmbedDim:       1024,
		Depth:          5,
		UpsampleDepths: []int{3, 3, 2},
		NumHeads:       4,
		MLPRatio:       4,
		WindowMask:     true,
		MaskStage:      0,
		MaskBlock:      0,
		DType:          "float32",
		Seed:           42,
	}
}

// LowResConfig returns the configuration of the low-resolution generator: 64x64 inputs and
// outputs, window masking on the last block of the last upsample stage.
func LowResConfig() Config {
	return Config{
		Variant:        VariantLowRes,
		ImgSize:        64,
		PatchSize:      4,
		BottomWidth:    8,
		EmbedDim:       384,
		Depth:          5,
		UpsampleDepths: []int{4, 2},
		NumHeads:       4,
		MLPRatio:       4,
		WindowMask:     true,
		MaskStage:      -1,
		MaskBlock:      -1,
		DType:          "float32",
		Seed:           42,
	}
}

// PresetConfig returns the preset configuration for the given variant.
func PresetConfig(variant string) (Config, error) {
	switch variant {
	case VariantHighRes:
		return HighResConfig(), nil
	case VariantLowRes:
		return LowResConfig(), nil
	}
	return Config{}, errors.Wrapf(ErrInvalidConfig, "unknown variant %q, valid values are %q and %q",
		variant, VariantHighRes, VariantLowRes)
}

// Clone returns a copy of the configuration that doesn't share UpsampleDepths.
func (c Config) Clone() Config {
	c.UpsampleDepths = slices.Clone(c.UpsampleDepths)
	return c
}

// NumStages is the number of upsample stages with transformer blocks.
func (c Config) NumStages() int {
	return len(c.UpsampleDepths)
}

// NumPatches is the length of the token sequence produced by the patch embedding.
func (c Config) NumPatches() int {
	if c.PatchSize <= 0 {
		return 0
	}
	grid := c.ImgSize / c.PatchSize
	return grid * grid
}

// SeqProjections returns the sequence lengths of the patch sequence shrinking chain, starting
// with NumPatches and ending with BottomWidth^2. Each projection between two consecutive
// lengths is a linear layer over the sequence axis.
func (c Config) SeqProjections() []int {
	numHalvings := 1
	if c.Variant == VariantHighRes {
		numHalvings = 2
	}
	lengths := []int{c.NumPatches()}
	n := c.NumPatches()
	for range numHalvings {
		n /= 2
		lengths = append(lengths, n)
	}
	return append(lengths, c.BottomWidth*c.BottomWidth)
}

// OutputSize is the height and width of the generated images: the bottleneck grid is
// doubled by every upsample stage and by the final upsample.
func (c Config) OutputSize() int {
	return c.BottomWidth << (c.NumStages() + 1)
}

// StageDim returns the channel width of the tokens at the given stage: stage 0 is the
// bottleneck, and stage NumStages()+1 is the input of the final 1x1 convolution.
func (c Config) StageDim(stage int) int {
	return c.EmbedDim >> (2 * stage)
}

// ModelDType parses DType.
func (c Config) ModelDType() (dtypes.DType, error) {
	switch c.DType {
	case "float32", "":
		return dtypes.Float32, nil
	case "float64":
		return dtypes.Float64, nil
	case "float16":
		return dtypes.Float16, nil
	}
	return dtypes.InvalidDType, errors.Wrapf(ErrInvalidConfig, "dtype %q not supported, use float32, float64 or float16", c.DType)
}

// MaskLocation returns the upsample stage (0-based, not counting the bottleneck) and the block
// of the window masked block, with negative indices resolved. ok is false if masking is disabled.
func (c Config) MaskLocation() (stage, block int, ok bool) {
	if !c.WindowMask || c.NumStages() == 0 {
		return 0, 0, false
	}
	stage = c.MaskStage
	if stage < 0 {
		stage += c.NumStages()
	}
	if stage < 0 || stage >= c.NumStages() {
		return 0, 0, false
	}
	block = c.MaskBlock
	if block < 0 {
		block += c.UpsampleDepths[stage]
	}
	if block < 0 || block >= c.UpsampleDepths[stage] {
		return 0, 0, false
	}
	return stage, block, true
}

// Validate checks that the configuration describes a buildable generator. All errors
// wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Variant != VariantHighRes && c.Variant != VariantLowRes {
		return errors.Wrapf(ErrInvalidConfig, "unknown variant %q", c.Variant)
	}
	if c.ImgSize <= 0 || c.PatchSize <= 0 || c.BottomWidth <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "img_size (%d), patch_size (%d) and bottom_width (%d) must be positive",
			c.ImgSize, c.PatchSize, c.BottomWidth)
	}
	if c.ImgSize%c.PatchSize != 0 {
		return errors.Wrapf(ErrInvalidConfig, "patch_size %d doesn't divide img_size %d", c.PatchSize, c.ImgSize)
	}

	// Sequence shrinking chain.
	chain := c.SeqProjections()
	numPatches := chain[0]
	for ii := 1; ii < len(chain)-1; ii++ {
		if chain[ii] <= 0 || chain[ii-1]%2 != 0 {
			return errors.Wrapf(ErrInvalidConfig, "%d patches can't be halved %d times", numPatches, len(chain)-2)
		}
	}
	if last, bottom := chain[len(chain)-2], chain[len(chain)-1]; bottom > last {
		return errors.Wrapf(ErrInvalidConfig, "bottom_width^2=%d not reachable from %d patches: projections can only shrink the sequence (%v)",
			bottom, numPatches, chain)
	}

	if c.Depth < 1 {
		return errors.Wrapf(ErrInvalidConfig, "depth must be >= 1, got %d", c.Depth)
	}
	if c.NumStages() < 1 {
		return errors.Wrapf(ErrInvalidConfig, "at least one upsample stage is required")
	}
	for stage, depth := range c.UpsampleDepths {
		if depth < 1 {
			return errors.Wrapf(ErrInvalidConfig, "upsample stage %d has %d blocks, it must have at least 1", stage, depth)
		}
	}

	// Channel widths.
	if c.NumHeads < 1 {
		return errors.Wrapf(ErrInvalidConfig, "num_heads must be >= 1, got %d", c.NumHeads)
	}
	numUpsamples := c.NumStages() + 1
	if divisor := 1 << (2 * numUpsamples); c.EmbedDim <= 0 || c.EmbedDim%divisor != 0 {
		return errors.Wrapf(ErrInvalidConfig, "embed_dim %d must be a positive multiple of 4^%d=%d, to survive %d pixel upsamples",
			c.EmbedDim, numUpsamples, divisor, numUpsamples)
	}
	for stage := 0; stage <= c.NumStages(); stage++ {
		if dim := c.StageDim(stage); dim%c.NumHeads != 0 {
			return errors.Wrapf(ErrInvalidConfig, "stage %d width %d (embed_dim/4^%d) is not divisible by num_heads %d",
				stage, dim, stage, c.NumHeads)
		}
	}

	if c.MLPRatio <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "mlp_ratio must be positive, got %g", c.MLPRatio)
	}
	if c.QKScale < 0 {
		return errors.Wrapf(ErrInvalidConfig, "qk_scale must be >= 0 (0 for the default), got %g", c.QKScale)
	}
	for _, rate := range []struct {
		name  string
		value float64
	}{{"drop_rate", c.DropRate}, {"attn_drop_rate", c.AttnDropRate}, {"drop_path_rate", c.DropPathRate}} {
		if rate.value < 0 || rate.value >= 1 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be in [0, 1), got %g", rate.name, rate.value)
		}
	}
	if c.WindowMask {
		if _, _, ok := c.MaskLocation(); !ok {
			return errors.Wrapf(ErrInvalidConfig, "window mask at stage %d, block %d is out of range for upsample depths %v",
				c.MaskStage, c.MaskBlock, c.UpsampleDepths)
		}
	}
	if _, err := c.ModelDType(); err != nil {
		return err
	}
	return nil
}
