// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package imageio moves batches of images between files and generator tensors.
//
// Generator tensors are shaped [batch, 3, height, width] (channels first) with values in [-1, 1].
// Image files are decoded in parallel, resized and center cropped to a square of the requested size.
package imageio

import (
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Extensions of the image files recognized by List.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff"}

// DefaultParallelism is the number of images decoded or encoded concurrently if none is given.
const DefaultParallelism = 8

// List returns the paths of the image files in dir (not recursive), sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list images in %q", dir)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(Extensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Load decodes the images in paths and resizes them to size x size, cropping the center of
// non-square images. Up to parallelism images are decoded concurrently (DefaultParallelism if <= 0).
func Load(paths []string, size, parallelism int) ([]image.Image, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid image size %d", size)
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	images := make([]image.Image, len(paths))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for ii, path := range paths {
		g.Go(func() error {
			img, err := imaging.Open(path, imaging.AutoOrientation(true))
			if err != nil {
				return errors.Wrapf(err, "failed to load image %q", path)
			}
			images[ii] = imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	klog.V(2).Infof("loaded %d images at %dx%d", len(images), size, size)
	return images, nil
}

// Save encodes images to the given paths, the format taken from the file extension. Parent
// directories are created as needed. Up to parallelism images are encoded concurrently
// (DefaultParallelism if <= 0).
func Save(images []image.Image, paths []string, parallelism int) error {
	if len(images) != len(paths) {
		return errors.Errorf("%d images given to save, but %d paths", len(images), len(paths))
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	var g errgroup.Group
	g.SetLimit(parallelism)
	for ii, path := range paths {
		g.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return errors.Wrapf(err, "failed to create directory for %q", path)
			}
			if err := imaging.Save(images[ii], path); err != nil {
				return errors.Wrapf(err, "failed to save image %q", path)
			}
			return nil
		})
	}
	return g.Wait()
}
