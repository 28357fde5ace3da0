package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaos-io/outline/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve mask, cut, trace and compose over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, cfg, err := ctx.runner()
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(bind); v != "" {
				cfg.Server.Bind = v
			}
			v, err := vectorizerFor(cfg.Trace.Vectorizer, cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, runner, v, ctx.log())
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides server.bind)")
	return cmd
}
