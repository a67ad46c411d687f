package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// Decoder turns server audio chunks into mono PCM16LE at the output rate. WAV at the
// output rate is unpacked in process; everything else goes through ffmpeg.
type Decoder struct {
	command    string
	outputRate int
	logger     *zap.Logger
}

func NewDecoder(command string, outputRate int, logger *zap.Logger) *Decoder {
	if command == "" {
		command = "ffmpeg"
	}
	if outputRate <= 0 {
		outputRate = 24000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{command: command, outputRate: outputRate, logger: logger}
}

func (d *Decoder) Decode(ctx context.Context, chunk []byte) (ports.DecodedAudio, error) {
	if len(chunk) == 0 {
		return ports.DecodedAudio{}, fmt.Errorf("%w: empty chunk", domain.ErrDecodeFailure)
	}

	if isWAV(chunk) {
		pcm, rate, ok, err := decodeWAV(chunk)
		if err != nil {
			return ports.DecodedAudio{}, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
		}
		if ok && rate == d.outputRate {
			return ports.DecodedAudio{PCM: pcm, SampleRate: rate}, nil
		}
	}
	return d.transcode(ctx, chunk)
}

func (d *Decoder) transcode(ctx context.Context, chunk []byte) (ports.DecodedAudio, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.outputRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(chunk)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ports.DecodedAudio{}, fmt.Errorf("%w: %v: %s", domain.ErrDecodeFailure, err, stringsTrimSpaceSafe(stderr.String()))
	}
	pcm := stdout.Bytes()
	if len(pcm) < 2 {
		return ports.DecodedAudio{}, fmt.Errorf("%w: decoder produced no samples", domain.ErrDecodeFailure)
	}
	return ports.DecodedAudio{PCM: pcm[:len(pcm)&^1], SampleRate: d.outputRate}, nil
}
