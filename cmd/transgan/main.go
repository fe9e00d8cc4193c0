// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// transgan manages progressive transformer image-to-image generators.
//
// Generators are stored as GoMLX checkpoints: "init" creates one from the configured
// hyperparameters, "generate" translates a directory of images with it, "summary" describes it,
// and "schedule" shows the window mask schedule used while training.
//
// Hyperparameters start from the preset of --variant, then the optional YAML file given with
// --config, then the settings given with --set, e.g.:
//
//	transgan init --checkpoint ~/runs/small --set "embed_dim=192;upsample_depths=2,2"
//	transgan generate --checkpoint ~/runs/small --input ~/photos --output ~/translated
package main

import (
	"flag"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/transgan/pkg/ml/models/transgan"
	"github.com/gomlx/transgan/ui/summary"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

// newBackend is replaced in tests.
var newBackend = backends.MustNew

// options shared by all commands.
type options struct {
	variant    string
	settings   string
	configPath string
	noColor    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "transgan",
		Short:         "Progressive transformer image-to-image generator",
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Don't print the usage on errors.
			cmd.SilenceUsage = true
			summary.SetColor(!opts.noColor)
		},
	}

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	flags := rootCmd.PersistentFlags()
	flags.AddGoFlagSet(goFlags)
	addConfigFlags(flags, opts)

	rootCmd.AddCommand(
		newInitCommand(opts),
		newGenerateCommand(opts),
		newSummaryCommand(opts),
		newScheduleCommand(opts),
	)
	return rootCmd
}

func addConfigFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.variant, "variant", transgan.VariantLowRes,
		"Preset configuration to start from: \"lowres\" or \"highres\".")
	flags.StringVar(&opts.settings, "set", "",
		"Hyperparameters as a list of \"param=value\" separated by \";\", "+
			"e.g. \"embed_dim=192;upsample_depths=2,2\". Lists take comma-separated values.")
	flags.StringVar(&opts.configPath, "config", "",
		"YAML file with hyperparameters, applied before --set.")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colors in the reports.")
}
