// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageio

import (
	"image"

	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/pkg/errors"
)

// Converter converts between images and generator tensors. It's safe for concurrent use.
type Converter struct {
	dtype            dtypes.DType
	toModel, toImage *Exec
}

// NewConverter returns a Converter producing tensors of the given float dtype.
func NewConverter(backend backends.Backend, dtype dtypes.DType) (*Converter, error) {
	if !dtype.IsFloat() {
		return nil, errors.Errorf("imageio.Converter requires a float dtype, got %s", dtype)
	}
	c := &Converter{dtype: dtype}
	var err error
	c.toModel, err = NewExec(backend, func(x *Node) *Node {
		// [batch, height, width, channels] in [0, 1] -> [batch, channels, height, width] in [-1, 1].
		x = TransposeAllAxes(x, 0, 3, 1, 2)
		x = AddScalar(MulScalar(x, 2), -1)
		return ConvertDType(x, dtype)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create image to tensor converter")
	}
	c.toImage, err = NewExec(backend, func(x *Node) *Node {
		// [batch, channels, height, width] in [-1, 1] -> [batch, height, width, channels] in [0, 1].
		x = ConvertDType(x, dtypes.Float32)
		x = TransposeAllAxes(x, 0, 2, 3, 1)
		return ClipScalar(MulScalar(AddScalar(x, 1), 0.5), 0, 1)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create tensor to image converter")
	}
	return c, nil
}

// DType of the tensors produced by ToTensor.
func (c *Converter) DType() dtypes.DType {
	return c.dtype
}

// ToTensor converts images, all with the same size, to a tensor shaped
// [batch, 3, height, width] with values in [-1, 1]. The alpha channel is dropped.
func (c *Converter) ToTensor(imgs []image.Image) (t *tensors.Tensor, err error) {
	if len(imgs) == 0 {
		return nil, errors.New("no images to convert")
	}
	size := imgs[0].Bounds().Size()
	for ii, img := range imgs {
		if img.Bounds().Size() != size {
			return nil, errors.Errorf("image #%d is %v, but image #0 is %v: all images in a batch must have the same size",
				ii, img.Bounds().Size(), size)
		}
	}
	var execErr error
	err = TryCatch[error](func() {
		t, execErr = c.toModel.Exec1(images.ToTensor(dtypes.Float32).Batch(imgs))
	})
	if err == nil {
		err = execErr
	}
	if err != nil {
		return nil, errors.WithMessage(err, "failed to convert images to tensor")
	}
	return t, nil
}

// ToImages converts a tensor shaped [batch, 3, height, width] with values in [-1, 1] to images.
// Values out of range are clipped.
func (c *Converter) ToImages(t *tensors.Tensor) (imgs []image.Image, err error) {
	if t == nil {
		return nil, errors.New("no tensor to convert")
	}
	if t.Shape().Rank() != 4 || t.Shape().Dimensions[1] != 3 || !t.DType().IsFloat() {
		return nil, errors.Errorf("can't convert tensor shaped %s to images, it must be a float tensor shaped [batch, 3, height, width]",
			t.Shape())
	}
	var execErr error
	err = TryCatch[error](func() {
		var nhwc *tensors.Tensor
		nhwc, execErr = c.toImage.Exec1(t)
		if execErr == nil {
			imgs = images.ToImage().MaxValue(1.0).Batch(nhwc)
		}
	})
	if err == nil {
		err = execErr
	}
	if err != nil {
		return nil, errors.WithMessage(err, "failed to convert tensor to images")
	}
	return imgs, nil
}
