package main

import (
	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/mask"
	"github.com/chaos-io/outline/session"
)

func newMaskCommand(ctx *commandContext) *cobra.Command {
	var (
		mf     maskFlags
		source string
		output string
	)

	cmd := &cobra.Command{
		Use:   "mask <image>",
		Short: "Write the subject mask as a grayscale PNG",
		Long: "Write the subject mask as a grayscale PNG. Without processing flags the raw matte is written " +
			"to <stem>-matte.png, otherwise the processed mask goes to <stem>-mask.png.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := mask.ParseSource(source)
			if err != nil {
				return err
			}
			sess, _, err := ctx.openSession(cmd.Context(), args[0], &mf)
			if err != nil {
				return err
			}
			m, sel, err := sess.Mask(src)
			if err != nil {
				return err
			}
			suffix := session.MaskSuffix(sel)
			return ctx.writePNG(cmd, outputPath(output, args[0], suffix), suffix, m)
		},
	}

	addMaskFlags(cmd.Flags(), &mf)
	addSourceFlag(cmd.Flags(), &source, "mask-source", "Mask to write")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path")
	return cmd
}
