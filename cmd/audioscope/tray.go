package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/audioscope/internal/app"
	"github.com/petems/audioscope/internal/config"
	"github.com/petems/audioscope/internal/tray"
	"github.com/spf13/cobra"
)

func newTrayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run in the system tray, showing the loudest frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := c.logger(true)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			save := func(cfg *config.Config) error {
				c.v.Set("audio.device_id", cfg.Audio.DeviceID)
				_, err := config.Save(c.v, c.v.ConfigFileUsed())
				return err
			}
			trayUI := tray.New(c.cfg, save, Version, Commit, log)

			log.Info().Msg("audioscope tray starting...")

			// Start tray UI - MUST run on main thread
			return trayUI.Run(ctx, func(ctx context.Context) error {
				session, err := openSession(c.cfg.Audio, log)
				if err != nil {
					return err
				}
				defer session.Close()
				trayUI.SetDevice(orLabel(session.DeviceName(), c.cfg.Audio))

				return app.New(app.Config{
					Source:        session,
					Publisher:     trayUI,
					StatusUpdater: trayUI,
					Config:        c.cfg,
					Logger:        log,
				}).Run(ctx)
			})
		},
	}
}
