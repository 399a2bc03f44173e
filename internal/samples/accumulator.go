// Package samples turns captured frames into a queue of mono samples and
// cuts analysis windows off its freshest end.
package samples

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/petems/audioscope/internal/audio"
)

var (
	ErrFraming    = errors.New("chunk length is not a multiple of block align")
	ErrBlockAlign = errors.New("block align too small for a 16-bit sample")
)

// Accumulator queues one sample per frame: the frame's first two bytes
// as a little-endian int16. Other channels in the frame are ignored.
type Accumulator struct {
	queue      []float64
	maxBacklog int
	dropped    uint64
}

// New creates an accumulator. A positive maxBacklog caps the queue; the
// oldest samples are dropped once it is exceeded.
func New(maxBacklog int) *Accumulator {
	return &Accumulator{maxBacklog: maxBacklog}
}

// Ingest appends the samples in chunk. A chunk that does not split into
// whole frames is rejected without appending anything.
func (a *Accumulator) Ingest(chunk []byte, format audio.Format) error {
	blockAlign := int(format.BlockAlign)
	if blockAlign < 2 {
		return fmt.Errorf("%w: %d", ErrBlockAlign, blockAlign)
	}
	if len(chunk)%blockAlign != 0 {
		return fmt.Errorf("%w: %d bytes, block align %d", ErrFraming, len(chunk), blockAlign)
	}

	for off := 0; off < len(chunk); off += blockAlign {
		s := int16(binary.LittleEndian.Uint16(chunk[off:]))
		a.queue = append(a.queue, float64(s))
	}

	if a.maxBacklog > 0 && len(a.queue) > a.maxBacklog {
		skip := len(a.queue) - a.maxBacklog
		a.dropped += uint64(skip)
		a.queue = append(a.queue[:0], a.queue[skip:]...)
	}
	return nil
}

// ExtractWindow drains the queue and returns its last n samples. It
// returns false and leaves the queue alone while fewer than n are queued.
func (a *Accumulator) ExtractWindow(n int) ([]float64, bool) {
	if n <= 0 || len(a.queue) < n {
		return nil, false
	}

	skip := len(a.queue) - n
	a.dropped += uint64(skip)

	window := make([]float64, n)
	copy(window, a.queue[skip:])
	a.queue = a.queue[:0]
	return window, true
}

func (a *Accumulator) Len() int {
	return len(a.queue)
}

// Dropped counts samples discarded by skip-ahead and backlog trimming
func (a *Accumulator) Dropped() uint64 {
	return a.dropped
}
