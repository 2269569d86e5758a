package main

import (
	"fmt"

	"github.com/BearBump/RepairBox/internal/trackingcode"
	"github.com/spf13/cobra"
)

func newCodeCmd(opts *rootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Generate and check tracking codes",
	}

	var n int
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Print fresh tracking codes (not reserved in the store)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("-n must be positive")
			}
			g := trackingcode.New(opts.tag, nil)
			for range n {
				code, err := g.Generate()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
	gen.Flags().IntVarP(&n, "count", "n", 1, "how many codes")

	check := &cobra.Command{
		Use:   "check CODE",
		Short: "Normalize a code and check its format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := trackingcode.Normalize(args[0])
			if !trackingcode.New(opts.tag, nil).IsValid(code) {
				return fmt.Errorf("%q is not a valid tracking code", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s valid\n", code)
			return nil
		},
	}

	cmd.AddCommand(gen, check)
	return cmd
}
