package main

import (
	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/layer"
	"github.com/chaos-io/outline/mask"
)

func newCutCommand(ctx *commandContext) *cobra.Command {
	var (
		mf          maskFlags
		source      string
		output      string
		trim        bool
		trimMargin  int
		exportMatte string
		exportMask  string
	)

	cmd := &cobra.Command{
		Use:   "cut <image>",
		Short: "Cut the subject out into a transparent PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			src, err := mask.ParseSource(source)
			if err != nil {
				return err
			}
			sess, _, err := ctx.openSession(cmd.Context(), input, &mf)
			if err != nil {
				return err
			}

			fg, _, err := sess.Foreground(src)
			if err != nil {
				return err
			}
			if trim {
				if fg, err = layer.TrimToSubject(fg, trimMargin); err != nil {
					return err
				}
			}
			if err := ctx.writePNG(cmd, outputPath(output, input, "foreground"), "foreground", fg); err != nil {
				return err
			}

			return ctx.writeMaskExports(cmd, sess, input, exportMatte, exportMask)
		},
	}

	addMaskFlags(cmd.Flags(), &mf)
	addSourceFlag(cmd.Flags(), &source, "alpha-source", "Mask used as the cut-out alpha")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <stem>-foreground.png)")
	cmd.Flags().BoolVar(&trim, "trim", false, "Crop the cut-out to the subject's bounding box")
	cmd.Flags().IntVar(&trimMargin, "trim-margin", 0, "Pixels kept around the subject when trimming")
	addExportFlag(cmd.Flags(), &exportMatte, "export-matte", "Also write the raw matte")
	addExportFlag(cmd.Flags(), &exportMask, "export-mask", "Also write the processed mask")
	return cmd
}
