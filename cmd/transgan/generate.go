// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gomlx/transgan/pkg/ml/layers/window"
	"github.com/gomlx/transgan/pkg/ml/models/transgan"
	"github.com/gomlx/transgan/pkg/support/imageio"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

type generateOptions struct {
	checkpointDir, inputDir, outputDir string
	epoch, batchSize, parallelism      int
}

func newGenerateCommand(opts *options) *cobra.Command {
	genOpts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Translate every image of a directory with the generator of a checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(opts, genOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&genOpts.checkpointDir, "checkpoint", "", "Directory of the checkpoint with the generator.")
	flags.StringVar(&genOpts.inputDir, "input", "", "Directory with the images to translate.")
	flags.StringVar(&genOpts.outputDir, "output", "", "Directory where to write the translated images, as PNG files.")
	flags.IntVar(&genOpts.epoch, "epoch", window.Schedule[len(window.Schedule)-1].From,
		"Training epoch selecting the window mask radius. The default disables the mask.")
	flags.IntVar(&genOpts.batchSize, "batch", 8, "Number of images translated at once.")
	flags.IntVar(&genOpts.parallelism, "parallelism", imageio.DefaultParallelism,
		"Number of images read or written in parallel.")
	for _, name := range []string{"checkpoint", "input", "output"} {
		must.M(cmd.MarkFlagRequired(name))
	}
	return cmd
}

func generate(opts *options, genOpts *generateOptions, out, progressOut io.Writer) error {
	if genOpts.batchSize <= 0 {
		return errors.Errorf("--batch must be positive, got %d", genOpts.batchSize)
	}
	if genOpts.epoch < 0 {
		return errors.Errorf("--epoch must be non-negative, got %d", genOpts.epoch)
	}
	inputPaths, err := imageio.List(genOpts.inputDir)
	if err != nil {
		return err
	}
	if len(inputPaths) == 0 {
		return errors.Errorf("no images found in %q", genOpts.inputDir)
	}

	s, err := opts.newSetup(genOpts.checkpointDir, true)
	if err != nil {
		return err
	}
	backend := newBackend()
	gen, err := s.generator(backend)
	if err != nil {
		return err
	}
	converter, err := imageio.NewConverter(backend, gen.DType())
	if err != nil {
		return err
	}
	klog.V(1).Infof("Translating %d images from %q with %s", len(inputPaths), genOpts.inputDir, gen)

	bar := newProgressBar(progressOut, len(inputPaths))
	for start := 0; start < len(inputPaths); start += genOpts.batchSize {
		batchPaths := inputPaths[start:min(start+genOpts.batchSize, len(inputPaths))]
		if err = generateBatch(gen, converter, genOpts, batchPaths); err != nil {
			return err
		}
		_ = bar.Add(len(batchPaths))
	}
	_ = bar.Finish()
	_, err = fmt.Fprintf(out, "\nTranslated %d images to %q\n", len(inputPaths), genOpts.outputDir)
	return err
}

// generateBatch translates the images in inputPaths and saves them as PNG files in the output
// directory, with the same base names.
func generateBatch(gen *transgan.Generator, converter *imageio.Converter, genOpts *generateOptions, inputPaths []string) error {
	imgs, err := imageio.Load(inputPaths, gen.Config().ImgSize, genOpts.parallelism)
	if err != nil {
		return err
	}
	input, err := converter.ToTensor(imgs)
	if err != nil {
		return err
	}
	output, err := gen.Generate(input, genOpts.epoch)
	input.FinalizeAll()
	if err != nil {
		return errors.WithMessagef(err, "failed to translate %q", inputPaths)
	}
	imgs, err = converter.ToImages(output)
	output.FinalizeAll()
	if err != nil {
		return err
	}
	outputPaths := make([]string, len(inputPaths))
	for ii, inputPath := range inputPaths {
		name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPaths[ii] = filepath.Join(genOpts.outputDir, name+".png")
	}
	return imageio.Save(imgs, outputPaths, genOpts.parallelism)
}

// newProgressBar with the style used for GoMLX training loops.
func newProgressBar(w io.Writer, numImages int) *progressbar.ProgressBar {
	return progressbar.NewOptions(numImages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
	)
}
