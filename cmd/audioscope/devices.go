package main

import (
	"fmt"

	"github.com/petems/audioscope/internal/audio"
	"github.com/spf13/cobra"
)

func newDevicesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := audio.ListDevices(c.cfg.Audio)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			kind := "input"
			if c.cfg.Audio.Loopback {
				kind = "loopback"
			}
			fmt.Fprintf(out, "%s %s devices:\n", c.cfg.Audio.Backend, kind)
			if len(devices) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, dev := range devices {
				marker := " "
				if dev.Default {
					marker = "*"
				}
				fmt.Fprintf(out, " %s %s\n", marker, dev.Name)
			}
			return nil
		},
	}
}
