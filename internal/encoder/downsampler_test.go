package encoder

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

func TestNewDownsamplerRejectsLowRates(t *testing.T) {
	_, err := NewDownsampler(8000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEncoderInit))
}

func TestDownsamplerFactor(t *testing.T) {
	cases := map[int]int{16000: 1, 22050: 1, 32000: 2, 44100: 2, 48000: 3, 96000: 6}
	for rate, want := range cases {
		d, err := NewDownsampler(rate)
		require.NoError(t, err)
		assert.Equal(t, want, d.Factor(), "rate %d", rate)
	}
}

func TestDownsamplerFrameSizeAndConsumption(t *testing.T) {
	for _, rate := range []int{16000, 22050, 44100, 48000, 96000} {
		d, err := NewDownsampler(rate)
		require.NoError(t, err)

		perFrame := (rate / domain.TargetSampleRate) * domain.FrameSamples
		frames := d.Process(make([]float32, perFrame-1))
		assert.Empty(t, frames, "rate %d emitted early", rate)

		frames = d.Process(make([]float32, 1))
		require.Len(t, frames, 1, "rate %d", rate)
		assert.Len(t, frames[0], domain.FrameBytes)
		assert.Zero(t, d.Buffered())
	}
}

func TestDownsamplerPhaseCarriesAcrossBlocks(t *testing.T) {
	d, err := NewDownsampler(48000)
	require.NoError(t, err)

	input := make([]float32, 48000)
	for i := range input {
		input[i] = float32(i%3) * 0.25
	}

	var frames [][]byte
	for start := 0; start < len(input); start += 128 {
		end := start + 128
		if end > len(input) {
			end = len(input)
		}
		frames = append(frames, d.Process(input[start:end])...)
	}

	require.Len(t, frames, 50)
	for _, frame := range frames {
		for i := 0; i < domain.FrameSamples; i++ {
			// every kept sample is the i%3 == 0 one
			assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(frame[i*2:])))
		}
	}
}

func TestDownsamplerKeepsRemainderBuffered(t *testing.T) {
	d, err := NewDownsampler(16000)
	require.NoError(t, err)

	frames := d.Process(make([]float32, domain.FrameSamples*2+17))
	assert.Len(t, frames, 2)
	assert.Equal(t, 17, d.Buffered())
}

func TestToInt16AsymmetricFullScale(t *testing.T) {
	assert.Equal(t, int16(32767), toInt16(1))
	assert.Equal(t, int16(-32768), toInt16(-1))
	assert.Equal(t, int16(32767), toInt16(3.5))
	assert.Equal(t, int16(-32768), toInt16(-2))
	assert.Equal(t, int16(0), toInt16(0))
	assert.Equal(t, int16(16383), toInt16(0.5))
	assert.Equal(t, int16(-16384), toInt16(-0.5))
}

func TestPackFrameLittleEndian(t *testing.T) {
	frame := packFrame([]int16{1, -2, 0x1234})
	assert.Equal(t, []byte{0x01, 0x00, 0xfe, 0xff, 0x34, 0x12}, frame)
}
