package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

const playSlice = 40 * time.Millisecond

// PipeSink streams PCM into one long-lived player process, aplay by default.
// Consecutive chunks are scheduled back to back on a playhead so there is no gap
// between them.
type PipeSink struct {
	command string
	rate    int
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	waitErr  chan error
	playhead time.Time
	closed   bool
}

func NewPipeSink(command string, rate int, logger *zap.Logger) *PipeSink {
	if command == "" {
		command = "aplay"
	}
	if rate <= 0 {
		rate = 24000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipeSink{command: command, rate: rate, logger: logger, now: time.Now}
}

// Play writes audio to the player and returns when its scheduled end time passes.
// Cancelling ctx kills the player, so audio it has already buffered is dropped too.
func (s *PipeSink) Play(ctx context.Context, audio ports.DecodedAudio) error {
	if audio.SampleRate != s.rate {
		return fmt.Errorf("sink plays %d Hz, got %d Hz", s.rate, audio.SampleRate)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("audio sink is closed")
	}
	if err := s.ensureStartedLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	cmd, stdin := s.cmd, s.stdin
	start := s.now()
	if s.playhead.After(start) {
		start = s.playhead
	}
	end := start.Add(audio.Duration())
	s.playhead = end
	s.mu.Unlock()

	stopAbort := context.AfterFunc(ctx, func() { s.abort(cmd) })
	defer stopAbort()

	slice := s.sliceBytes()
	for off := 0; off < len(audio.PCM); off += slice {
		if err := ctx.Err(); err != nil {
			s.abort(cmd)
			return err
		}
		if _, err := stdin.Write(audio.PCM[off:min(off+slice, len(audio.PCM))]); err != nil {
			s.abort(cmd)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to write to player: %w", err)
		}
	}

	timer := time.NewTimer(end.Sub(s.now()))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		s.abort(cmd)
		return ctx.Err()
	}
}

// sliceBytes is the size of one write to the player, playSlice worth of samples.
func (s *PipeSink) sliceBytes() int {
	n := int(int64(s.rate) * int64(playSlice) / int64(time.Second) * 2)
	if n < 2 {
		return 2
	}
	return n
}

// abort kills cmd if it is still the current player.
func (s *PipeSink) abort(cmd *exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd == nil || s.cmd != cmd {
		return
	}
	_ = cmd.Process.Kill()
	s.resetLocked()
	s.logger.Debug("audio player aborted", zap.String("command", s.command))
}

// Close stops the player process.
func (s *PipeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.stopLocked()
}

func (s *PipeSink) ensureStartedLocked() error {
	if s.cmd != nil {
		select {
		case <-s.waitErr:
			s.resetLocked()
		default:
			return nil
		}
	}

	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(s.rate), "-c", "1"}
	cmd := exec.Command(s.command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create player stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	s.cmd = cmd
	s.stdin = stdin
	s.waitErr = waitErr
	s.playhead = time.Time{}
	s.logger.Debug("audio player started", zap.String("command", s.command), zap.Int("sample_rate", s.rate))
	return nil
}

func (s *PipeSink) resetLocked() {
	_ = s.stopLocked()
}

func (s *PipeSink) stopLocked() error {
	if s.cmd == nil {
		return nil
	}
	_ = s.stdin.Close()

	var err error
	select {
	case waitErr, ok := <-s.waitErr:
		if ok {
			err = normalizeStopErr(waitErr)
		}
	case <-time.After(1200 * time.Millisecond):
		_ = s.cmd.Process.Kill()
		if waitErr, ok := <-s.waitErr; ok {
			err = normalizeStopErr(waitErr)
		}
	}

	s.cmd = nil
	s.stdin = nil
	s.waitErr = nil
	return err
}
