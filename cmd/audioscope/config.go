package main

import (
	"fmt"
	"sort"

	"github.com/petems/audioscope/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(c *cli) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if used := c.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(out, "# file: %s\n", used)
			}
			keys := c.v.AllKeys()
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s = %v\n", k, c.v.Get(k))
			}

			if !write {
				return nil
			}
			path, err := config.Save(c.v, c.configFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "save the effective configuration")
	return cmd
}
