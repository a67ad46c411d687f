package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

const defaultRecorderMimeType = "audio/ogg;codecs=opus"

// FFMPEGRecorderFactory encodes capture blocks into an opus container with ffmpeg and
// emits whatever was produced every timeslice.
type FFMPEGRecorderFactory struct {
	command string
	logger  *zap.Logger
}

func NewFFMPEGRecorderFactory(command string, logger *zap.Logger) *FFMPEGRecorderFactory {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGRecorderFactory{command: command, logger: logger}
}

// Available reports whether the encoder binary can be found.
func (f *FFMPEGRecorderFactory) Available() bool {
	_, err := exec.LookPath(f.command)
	return err == nil
}

func (f *FFMPEGRecorderFactory) IsTypeSupported(mimeType string) bool {
	_, ok := containerFormat(mimeType)
	return ok
}

// containerFormat maps a mime type onto an ffmpeg muxer. Only opus is encoded.
func containerFormat(mimeType string) (string, bool) {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(mimeType, " ", "")), ";")
	var format string
	switch parts[0] {
	case "audio/ogg":
		format = "ogg"
	case "audio/webm":
		format = "webm"
	default:
		return "", false
	}
	for _, param := range parts[1:] {
		if codecs, ok := strings.CutPrefix(param, "codecs="); ok && strings.Trim(codecs, `"`) != "opus" {
			return "", false
		}
	}
	return format, true
}

func (f *FFMPEGRecorderFactory) Start(ctx context.Context, device ports.CaptureDevice, opts ports.RecorderOptions) (ports.FrameProducer, error) {
	if opts.MimeType == "" {
		opts.MimeType = defaultRecorderMimeType
	}
	format, ok := containerFormat(opts.MimeType)
	if !ok {
		return nil, fmt.Errorf("%w: recorder cannot produce %q", domain.ErrUnsupportedAPI, opts.MimeType)
	}
	if opts.Timeslice <= 0 {
		opts.Timeslice = time.Second
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "f32le",
		"-ar", strconv.Itoa(device.SampleRate()),
		"-ac", "1",
		"-i", "pipe:0",
		"-c:a", "libopus",
		"-flush_packets", "1",
		"-f", format,
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, f.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start recorder: %v", domain.ErrUnsupportedAPI, err)
	}

	r := &ffmpegRecorder{
		cmd:    cmd,
		stderr: &stderr,
		frames: make(chan []byte, 8),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: f.logger,
	}
	go r.feed(stdin, device.Samples())
	go r.run(stdout, opts.Timeslice)

	f.logger.Info("container recorder started",
		zap.String("mime_type", opts.MimeType),
		zap.Duration("timeslice", opts.Timeslice))
	return r, nil
}

type ffmpegRecorder struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	logger *zap.Logger

	frames chan []byte
	stop   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending bytes.Buffer

	stopOnce sync.Once
	waitErr  error
}

func (r *ffmpegRecorder) Mode() domain.EncodingMode {
	return domain.EncodingFallbackContainer
}

func (r *ffmpegRecorder) Frames() <-chan []byte {
	return r.frames
}

// Stop ends the input, which makes the encoder flush its final chunk and exit.
func (r *ffmpegRecorder) Stop() error {
	r.stopOnce.Do(func() {
		close(r.stop)
		select {
		case <-r.done:
		case <-time.After(1200 * time.Millisecond):
			if r.cmd.Process != nil {
				_ = r.cmd.Process.Kill()
			}
			<-r.done
		}
	})

	if err := normalizeStopErr(r.waitErr); err != nil {
		return fmt.Errorf("%w: %s", err, stringsTrimSpaceSafe(r.stderr.String()))
	}
	return nil
}

func (r *ffmpegRecorder) feed(stdin io.WriteCloser, samples <-chan []float32) {
	defer stdin.Close()

	var buf []byte
	for {
		select {
		case <-r.stop:
			return
		case block, ok := <-samples:
			if !ok {
				return
			}
			buf = encodeBlock(buf[:0], block)
			if _, err := stdin.Write(buf); err != nil {
				return
			}
		}
	}
}

func (r *ffmpegRecorder) run(stdout io.Reader, timeslice time.Duration) {
	defer close(r.done)
	defer close(r.frames)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				r.mu.Lock()
				r.pending.Write(buf[:n])
				r.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-readDone:
			r.waitErr = r.cmd.Wait()
			r.flush()
			return
		}
	}
}

// flush emits the bytes gathered since the last timeslice. Empty slices are skipped.
func (r *ffmpegRecorder) flush() {
	r.mu.Lock()
	if r.pending.Len() == 0 {
		r.mu.Unlock()
		return
	}
	chunk := append([]byte(nil), r.pending.Bytes()...)
	r.pending.Reset()
	r.mu.Unlock()

	r.frames <- chunk
}

func encodeBlock(dst []byte, block []float32) []byte {
	for _, sample := range block {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(sample))
	}
	return dst
}
