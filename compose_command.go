package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/layer"
	"github.com/chaos-io/outline/mask"
)

type fillFlags struct {
	color      string
	alphaMode  string
	alphaScale float64
	solidAlpha int
}

func (f *fillFlags) fill() (layer.Fill, error) {
	c, err := layer.ParseColor(f.color)
	if err != nil {
		return layer.Fill{}, fmt.Errorf("--bg-color: %w", err)
	}
	if f.solidAlpha < 0 || f.solidAlpha > 255 {
		return layer.Fill{}, fmt.Errorf("--bg-solid-alpha must be within 0..255, got %d", f.solidAlpha)
	}
	mode, err := layer.ParseAlphaMode(f.alphaMode, f.alphaScale, uint8(f.solidAlpha))
	if err != nil {
		return layer.Fill{}, fmt.Errorf("--bg-alpha-mode: %w", err)
	}
	return layer.NewFill(c).WithMode(mode), nil
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var (
		mf               maskFlags
		ff               fillFlags
		fgSource         string
		bgSource         string
		output           string
		exportForeground string
		exportBackground string
		exportMatte      string
		exportMask       string
	)

	cmd := &cobra.Command{
		Use:   "compose <image>",
		Short: "Place the cut-out over a colored layer painted from the mask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			fgSrc, err := mask.ParseSource(fgSource)
			if err != nil {
				return err
			}
			bgSrc, err := mask.ParseSource(bgSource)
			if err != nil {
				return err
			}
			fill, err := ff.fill()
			if err != nil {
				return err
			}
			sess, _, err := ctx.openSession(cmd.Context(), input, &mf)
			if err != nil {
				return err
			}

			out, err := sess.Compose(fgSrc, bgSrc, fill)
			if err != nil {
				return err
			}
			if err := ctx.writePNG(cmd, outputPath(output, input, "composite"), "composite", out.Image); err != nil {
				return err
			}

			if path := exportPath(exportForeground, input, "foreground"); path != "" {
				if err := ctx.writePNG(cmd, path, "foreground", out.Foreground); err != nil {
					return err
				}
			}
			if path := exportPath(exportBackground, input, "bg-layer"); path != "" {
				if err := ctx.writePNG(cmd, path, "bg-layer", out.Background); err != nil {
					return err
				}
			}
			return ctx.writeMaskExports(cmd, sess, input, exportMatte, exportMask)
		},
	}

	addMaskFlags(cmd.Flags(), &mf)
	addSourceFlag(cmd.Flags(), &fgSource, "fg-mask-source", "Mask used for the cut-out")
	addSourceFlag(cmd.Flags(), &bgSource, "bg-mask-source", "Mask used for the background layer")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <stem>-composite.png)")
	cmd.Flags().StringVar(&ff.color, "bg-color", "#ffffff", "Background layer color as #rrggbb or #rrggbbaa")
	cmd.Flags().StringVar(&ff.alphaMode, "bg-alpha-mode", "use-mask", "Background alpha: use-mask, scale or solid")
	cmd.Flags().Float64Var(&ff.alphaScale, "bg-alpha-scale", 1.0, "Mask multiplier for --bg-alpha-mode scale")
	cmd.Flags().IntVar(&ff.solidAlpha, "bg-solid-alpha", 255, "Alpha for --bg-alpha-mode solid")
	addExportFlag(cmd.Flags(), &exportForeground, "export-foreground", "Also write the cut-out layer")
	addExportFlag(cmd.Flags(), &exportBackground, "export-bg-layer", "Also write the background layer")
	addExportFlag(cmd.Flags(), &exportMatte, "export-matte", "Also write the raw matte")
	addExportFlag(cmd.Flags(), &exportMask, "export-mask", "Also write the processed mask")
	return cmd
}
