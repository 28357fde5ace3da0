package main

import (
	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/util"
)

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	ctx := newCommandContext(opts)

	rootCmd := &cobra.Command{
		Use:           "outline",
		Short:         "Cut subjects out of images, clean up their masks and trace them to SVG",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			return ctx.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			util.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (default ./outline.toml when present)")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Matting service URL (overrides inference.endpoint and OUTLINE_ENDPOINT)")
	flags.StringVar(&opts.mattePath, "matte", "", "Use a precomputed matte image instead of the matting service")
	flags.StringVar(&opts.inputFilter, "input-resample-filter", "", "Filter used to resize the image to the model input (nearest, bilinear, bicubic, gaussian, lanczos3)")
	flags.StringVar(&opts.outputFilter, "output-resample-filter", "", "Filter used to resize the matte back to the image size")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newMaskCommand(ctx))
	rootCmd.AddCommand(newCutCommand(ctx))
	rootCmd.AddCommand(newTraceCommand(ctx))
	rootCmd.AddCommand(newComposeCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
