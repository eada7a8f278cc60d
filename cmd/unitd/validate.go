package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and print the order units would start in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			order, err := cfg.StartOrder()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d units\n", cfg.Name, len(order))
			for i, id := range order {
				spec, _ := cfg.Unit(id)
				line := fmt.Sprintf("  %d. %s [%s]", i+1, id, spec.DesiredState())
				if len(spec.DependsOn) > 0 {
					line += " after " + strings.Join(spec.DependsOn, ", ")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
