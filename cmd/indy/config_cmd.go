package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			text, err := cfg.Encode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Path != "" {
				_, _ = fmt.Fprintf(out, "# %s\n", cfg.Path)
			} else {
				_, _ = fmt.Fprintln(out, "# defaults")
			}
			_, _ = fmt.Fprint(out, text)
			return nil
		},
	}
}
