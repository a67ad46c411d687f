// Package encoder turns native-rate microphone samples into the outbound wire format
// and selects which encoding path a connection uses.
package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

// Downsampler decimates native-rate float samples to 16 kHz and packs them into
// fixed 640-byte PCM16LE frames.
//
// Decimation keeps every Nth sample with N = floor(nativeRate/16000). There is no
// anti-aliasing filter, so input content above 8 kHz folds back into the band.
type Downsampler struct {
	factor  int
	skip    int
	pending []int16
}

// NewDownsampler fails for native rates below the target rate.
func NewDownsampler(nativeRate int) (*Downsampler, error) {
	factor := nativeRate / domain.TargetSampleRate
	if factor < 1 {
		return nil, fmt.Errorf("%w: native rate %d Hz is below %d Hz", domain.ErrEncoderInit, nativeRate, domain.TargetSampleRate)
	}
	return &Downsampler{
		factor:  factor,
		pending: make([]int16, 0, domain.FrameSamples),
	}, nil
}

// Factor is the decimation factor.
func (d *Downsampler) Factor() int {
	return d.factor
}

// Buffered is the number of decimated samples waiting for a full frame.
func (d *Downsampler) Buffered() int {
	return len(d.pending)
}

// Process consumes one block of native-rate samples and returns every frame that
// became complete. The decimation phase carries over between calls.
func (d *Downsampler) Process(input []float32) [][]byte {
	var frames [][]byte
	for _, sample := range input {
		if d.skip > 0 {
			d.skip--
			continue
		}
		d.skip = d.factor - 1

		d.pending = append(d.pending, toInt16(sample))
		if len(d.pending) == domain.FrameSamples {
			frames = append(frames, packFrame(d.pending))
			d.pending = d.pending[:0]
		}
	}
	return frames
}

func toInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	if sample < 0 {
		return int16(sample * 32768)
	}
	return int16(sample * 32767)
}

func packFrame(samples []int16) []byte {
	frame := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(s))
	}
	return frame
}
