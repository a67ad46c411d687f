package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// RenderQuantum is the number of samples per block delivered by a capture device.
const RenderQuantum = 128

// FFMPEGDeviceProvider opens the microphone through ffmpeg and delivers mono float32
// blocks at the native rate.
type FFMPEGDeviceProvider struct {
	command string
	logger  *zap.Logger
}

func NewFFMPEGDeviceProvider(command string, logger *zap.Logger) *FFMPEGDeviceProvider {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGDeviceProvider{command: command, logger: logger}
}

// Acquire starts capture. A missing ffmpeg binary is domain.ErrUnsupportedAPI; a
// capture process that exits right away could not open the device and is reported as
// domain.ErrPermissionDenied.
func (p *FFMPEGDeviceProvider) Acquire(ctx context.Context, c ports.CaptureConstraints) (ports.CaptureDevice, error) {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}

	// downmixed to mono whatever the device channel count
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.InputFormat,
		"-i", c.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(c.SampleRate),
		"-f", "f32le",
		"-",
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedAPI, err)
		}
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", domain.ErrPermissionDenied, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%w: capture exited before it started: %v: %s", domain.ErrPermissionDenied, err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, fmt.Errorf("%w: capture exited before it started", domain.ErrPermissionDenied)
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	device := &ffmpegDevice{
		rate:    c.SampleRate,
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		samples: make(chan []float32, 64),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	device.enabled.Store(true)
	go device.readLoop()

	p.logger.Info("microphone acquired",
		zap.String("format", c.InputFormat),
		zap.String("device", c.InputDevice),
		zap.Int("sample_rate", c.SampleRate))
	return device, nil
}

type ffmpegDevice struct {
	rate    int
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	enabled atomic.Bool

	process *os.Process
	waitErr <-chan error

	samples chan []float32
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func (d *ffmpegDevice) SampleRate() int {
	return d.rate
}

func (d *ffmpegDevice) Samples() <-chan []float32 {
	return d.samples
}

func (d *ffmpegDevice) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

func (d *ffmpegDevice) Enabled() bool {
	return d.enabled.Load()
}

func (d *ffmpegDevice) readLoop() {
	defer close(d.done)
	defer close(d.samples)

	buf := make([]byte, RenderQuantum*4)
	for {
		if _, err := io.ReadFull(d.stdout, buf); err != nil {
			return
		}
		block := decodeBlock(buf, d.enabled.Load())
		select {
		case d.samples <- block:
		case <-d.stop:
			return
		}
	}
}

// decodeBlock converts little-endian float32 samples. A disabled track yields silence.
func decodeBlock(buf []byte, enabled bool) []float32 {
	block := make([]float32, len(buf)/4)
	if !enabled {
		return block
	}
	for i := range block {
		block[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return block
}

func (d *ffmpegDevice) Stop() error {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.process != nil {
			_ = d.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-d.waitErr:
			if ok {
				d.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if d.process != nil {
				_ = d.process.Kill()
			}
			err, ok := <-d.waitErr
			if ok {
				d.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := d.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if d.stopErr == nil {
				d.stopErr = closeErr
			}
		}
		<-d.done

		if d.stopErr != nil && d.stderr != nil && d.stderr.Len() > 0 {
			d.stopErr = fmt.Errorf("%w: %s", d.stopErr, stringsTrimSpaceSafe(d.stderr.String()))
		}
	})

	return d.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
