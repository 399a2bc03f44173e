package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/audioscope/internal/recorder"
	"github.com/spf13/cobra"
)

func newRecordCmd(c *cli) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record [file.wav]",
		Short: "Record the capture device to a WAV file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "capture.wav"
			if len(args) == 1 {
				path = args[0]
			}
			return c.runRecord(cmd.Context(), path, duration)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", time.Minute, "how long to record")
	return cmd
}

func (c *cli) runRecord(parent context.Context, path string, duration time.Duration) error {
	log := c.logger(true)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := openSession(c.cfg.Audio, log)
	if err != nil {
		return err
	}
	defer session.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	res, err := recorder.Record(ctx, session, f, recorder.Options{
		Duration: duration,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("path", path).
		Uint64("frames", res.Frames).
		Dur("elapsed", res.Elapsed).
		Msg("Saved recording")
	return nil
}
