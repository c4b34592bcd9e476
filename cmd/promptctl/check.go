package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(c *cli) *cobra.Command {
	var (
		rf   requestFlags
		kind string
	)

	cmd := &cobra.Command{
		Use:   "check <prompt>",
		Short: "Validate a request and report which backend would serve it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app

			req, err := a.build(rf.raw(kind, args[0]))
			if err != nil {
				return err
			}

			b, err := a.registry.Resolve(req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s request would be served by %s", req.Kind, b.Name())
			if model := req.ModelFor(b.Name()); model != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (model %s)", model)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	rf.bind(cmd)
	cmd.Flags().StringVar(&kind, "type", "text", "generation type: text or image")
	return cmd
}
