package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/trace"
	"github.com/chaos-io/outline/util"
)

type traceFlags struct {
	vectorizer    string
	mode          string
	filterSpeckle int
	invert        bool
	pathPrecision int
}

// apply copies the flags the user set over cfg.
func (f *traceFlags) apply(cmd *cobra.Command, cfg trace.Config) (trace.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		m, err := trace.ParseMode(f.mode)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = m
	}
	if flags.Changed("filter-speckle") {
		cfg.FilterSpeckle = f.filterSpeckle
	}
	if flags.Changed("invert") {
		cfg.Invert = f.invert
	}
	if flags.Changed("path-precision") {
		if f.pathPrecision < 0 {
			cfg.PathPrecision = nil
		} else {
			p := f.pathPrecision
			cfg.PathPrecision = &p
		}
	}
	return cfg, cfg.Validate()
}

func newTraceCommand(ctx *commandContext) *cobra.Command {
	var (
		mf     maskFlags
		tf     traceFlags
		source string
		output string
	)

	cmd := &cobra.Command{
		Use:   "trace <image>",
		Short: "Trace the subject outline into an SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			src, err := mask.ParseSource(source)
			if err != nil {
				return err
			}
			sess, cfg, err := ctx.openSession(cmd.Context(), input, &mf)
			if err != nil {
				return err
			}

			name := cfg.Trace.Vectorizer
			if cmd.Flags().Changed("vectorizer") {
				name = tf.vectorizer
			}
			v, err := vectorizerFor(name, cfg)
			if err != nil {
				return err
			}
			traceCfg, err := tf.apply(cmd, cfg.Trace.Config)
			if err != nil {
				return err
			}

			svg, _, err := sess.Trace(cmd.Context(), src, v, traceCfg)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = util.SVGPath(input)
			}
			if err := util.SaveText(path, svg); err != nil {
				return fmt.Errorf("write svg: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote svg to %s\n", path)
			return nil
		},
	}

	addMaskFlags(cmd.Flags(), &mf)
	addSourceFlag(cmd.Flags(), &source, "mask-source", "Mask to trace")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <stem>.svg)")
	cmd.Flags().StringVar(&tf.vectorizer, "vectorizer", "outline", "Tracer: outline (built in) or vtracer")
	cmd.Flags().StringVar(&tf.mode, "mode", string(trace.ModeSpline), "Curve fitting: pixel, polygon or spline")
	cmd.Flags().IntVar(&tf.filterSpeckle, "filter-speckle", 4, "Drop patches smaller than this many pixels per side")
	cmd.Flags().BoolVar(&tf.invert, "invert", false, "Trace the background instead of the subject")
	cmd.Flags().IntVar(&tf.pathPrecision, "path-precision", 2, "Decimal places in path data, negative leaves it unset")
	return cmd
}
