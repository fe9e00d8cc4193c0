// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func solidImage(width, height int, c color.Color) image.Image {
	return imaging.New(width, height, c)
}

func TestListLoadSave(t *testing.T) {
	dir := t.TempDir()
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	require.NoError(t, Save(
		[]image.Image{solidImage(40, 20, red), solidImage(16, 16, blue)},
		[]string{filepath.Join(dir, "b.png"), filepath.Join(dir, "a.jpg")}, 0))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0755))

	paths, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, paths)

	imgs, err := Load(paths, 8, 2)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	for _, img := range imgs {
		assert.Equal(t, image.Pt(8, 8), img.Bounds().Size())
	}
	r, g, b, _ := imgs[1].At(4, 4).RGBA()
	assert.InDelta(t, 0xffff, r, 0x200)
	assert.Zero(t, g)
	assert.Zero(t, b)

	_, err = Load([]string{filepath.Join(dir, "notes.txt")}, 8, 0)
	require.Error(t, err)
	_, err = Load(paths, 0, 0)
	require.Error(t, err)
	_, err = List(filepath.Join(dir, "missing"))
	require.Error(t, err)
	require.Error(t, Save([]image.Image{solidImage(2, 2, red)}, nil, 0))

	// Nested output directories are created.
	nested := filepath.Join(dir, "out", "deep", "c.png")
	require.NoError(t, Save([]image.Image{solidImage(2, 2, red)}, []string{nested}, 1))
	_, err = os.Stat(nested)
	require.NoError(t, err)
}

func TestConverter(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	converter, err := NewConverter(backend, dtypes.Float32)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float32, converter.DType())

	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black := color.NRGBA{A: 255}
	imgs := []image.Image{solidImage(4, 2, white), solidImage(4, 2, black)}
	batch, err := converter.ToTensor(imgs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 2, 4}, batch.Shape().Dimensions)
	flat := tensors.MustCopyFlatData[float32](batch)
	half := len(flat) / 2
	for ii, v := range flat {
		if ii < half {
			require.InDelta(t, 1.0, v, 1e-6)
		} else {
			require.InDelta(t, -1.0, v, 1e-6)
		}
	}

	back, err := converter.ToImages(batch)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, image.Pt(4, 2), back[0].Bounds().Size())
	r, _, _, _ := back[0].At(3, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	r, _, _, _ = back[1].At(3, 1).RGBA()
	assert.Zero(t, r)

	// Out of range values are clipped.
	outOfRange := tensors.FromFlatDataAndDimensions([]float64{-3, 0, 3}, 1, 3, 1, 1)
	clipped, err := converter.ToImages(outOfRange)
	require.NoError(t, err)
	gotR, gotG, gotB, _ := clipped[0].At(0, 0).RGBA()
	assert.Zero(t, gotR)
	assert.InDelta(t, 0x7fff, gotG, 0x200)
	assert.Equal(t, uint32(0xffff), gotB)

	// Errors.
	_, err = converter.ToTensor(nil)
	require.Error(t, err)
	_, err = converter.ToTensor([]image.Image{solidImage(4, 2, white), solidImage(2, 2, white)})
	require.Error(t, err)
	_, err = converter.ToImages(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 1, 2, 1, 1))
	require.Error(t, err)
	_, err = NewConverter(backend, dtypes.Int32)
	require.Error(t, err)
}
