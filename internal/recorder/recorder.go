// Package recorder streams captured frames into a WAV file.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
	"github.com/petems/audioscope/internal/audio"
	"github.com/petems/audioscope/internal/capture"
	"github.com/rs/zerolog"
)

var (
	ErrNoDuration = errors.New("recording duration must be positive")
	ErrNoAudio    = errors.New("no audio captured")
)

// Source is satisfied by *capture.Session
type Source interface {
	Poll() (capture.Chunk, bool, error)
	Format() audio.Format
}

type Options struct {
	Duration     time.Duration
	PollInterval time.Duration
	Logger       zerolog.Logger
}

type Result struct {
	Frames  uint64
	Bytes   uint64
	Elapsed time.Duration
}

// Record writes everything src captures for opts.Duration to w. The WAV
// header carries the negotiated format and the payload is the raw byte
// stream in arrival order, cut at exactly Duration worth of frames.
// Cancelling ctx ends the recording early and still finalizes the file.
func Record(ctx context.Context, src Source, w io.WriteSeeker, opts Options) (Result, error) {
	if opts.Duration <= 0 {
		return Result{}, ErrNoDuration
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}

	format := src.Format()
	if err := format.Validate(); err != nil {
		return Result{}, err
	}

	enc := wav.NewEncoder(w,
		int(format.SampleRate),
		int(format.BitsPerSample),
		int(format.Channels),
		int(headerTag(format)))

	limit := uint64(opts.Duration.Seconds() * float64(format.SampleRate))
	blockAlign := int(format.BlockAlign)

	log := opts.Logger.With().Str("component", "recorder").Logger()
	log.Info().
		Object("format", format).
		Dur("duration", opts.Duration).
		Msg("Recording started")

	var res Result
	start := time.Now()
	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for res.Frames < limit {
		chunk, ok, err := src.Poll()
		if err != nil {
			if res.Frames > 0 {
				_ = enc.Close()
			}
			return res, fmt.Errorf("poll: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				log.Info().Msg("Recording cancelled")
				return finish(enc, res, start, log)
			case <-ticker.C:
			}
			continue
		}

		frames := uint64(chunk.Frames)
		if remaining := limit - res.Frames; frames > remaining {
			frames = remaining
		}

		for i := uint64(0); i < frames; i++ {
			off := int(i) * blockAlign
			if err := enc.WriteFrame(chunk.Data[off : off+blockAlign]); err != nil {
				_ = enc.Close()
				return res, fmt.Errorf("write frame: %w", err)
			}
		}
		res.Frames += frames
		res.Bytes += frames * uint64(blockAlign)
	}

	return finish(enc, res, start, log)
}

func finish(enc *wav.Encoder, res Result, start time.Time, log zerolog.Logger) (Result, error) {
	res.Elapsed = time.Since(start)
	// the encoder writes its header with the first frame
	if res.Frames == 0 {
		return res, ErrNoAudio
	}
	if err := enc.Close(); err != nil {
		return res, fmt.Errorf("finalize wav: %w", err)
	}
	log.Info().
		Uint64("frames", res.Frames).
		Uint64("bytes", res.Bytes).
		Dur("elapsed", res.Elapsed).
		Msg("Recording finished")
	return res, nil
}

// headerTag maps the extensible tag onto its plain equivalent; the
// encoder only writes the 16-byte fmt chunk.
func headerTag(f audio.Format) uint16 {
	if f.FormatTag != audio.FormatExtensible {
		return f.FormatTag
	}
	if f.BitsPerSample == 32 {
		return audio.FormatIEEEFloat
	}
	return audio.FormatPCM
}
