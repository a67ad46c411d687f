package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/encoder"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/metrics"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/playback"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/transport"
)

var (
	ErrSessionActive = errors.New("a conversation is already active")
	ErrSessionClosed = errors.New("conversation was closed before it started")
)

// Config controls capture and transport behavior.
type Config struct {
	Constraints ports.CaptureConstraints
	Transport   transport.Config
}

// Dependencies are the collaborators of a SessionController. Cue, Metrics and Logger
// are optional.
type Dependencies struct {
	Devices  ports.DeviceProvider
	Dialer   ports.Dialer
	Encoders *encoder.Selector
	Decoder  ports.AudioDecoder
	Sink     ports.AudioSink
	Cue      ports.CuePlayer
	Status   ports.StatusSink
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// SessionController owns the conversation lifecycle: microphone, transport, playback
// and the user-visible status. At most one conversation is live at a time.
type SessionController struct {
	deps Dependencies
	cfg  Config

	mu      sync.Mutex
	current *captureSession

	statusMu sync.Mutex
	status   domain.Status
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionController{
		deps:   deps,
		cfg:    cfg,
		status: domain.Status{State: domain.StatusIdle},
	}
}

// Open requests the microphone and starts streaming. It blocks until permission is
// resolved; the connection is established in the background.
func (c *SessionController) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return ErrSessionActive
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	sess := &captureSession{
		id:           uuid.NewString(),
		ctx:          sessionCtx,
		cancel:       cancel,
		startedAt:    time.Now().UTC(),
		conversation: domain.StatusListening,
	}
	c.current = sess
	c.mu.Unlock()

	logger := c.deps.Logger.With(zap.String("session_id", sess.id))
	c.transition(sess, func() {
		c.setStatusLocked(sess, domain.StatusWaitingPermission, MessageWaitingPermission)
	})

	device, err := c.deps.Devices.Acquire(sessionCtx, c.cfg.Constraints)
	if err != nil {
		if sessionCtx.Err() != nil {
			return ErrSessionClosed
		}
		logger.Warn("microphone unavailable", zap.Error(err))
		c.failSession(sess, err)
		return err
	}
	if !sess.setDevice(device) {
		_ = device.Stop()
		return ErrSessionClosed
	}
	device.SetEnabled(true)

	c.transition(sess, func() {
		c.setStatusLocked(sess, domain.StatusConnecting, MessageConnecting)
	})

	queue := playback.NewQueue(c.deps.Decoder, c.deps.Sink, logger, c.deps.Metrics,
		playback.WithOnChunkStart(func() { c.chunkStarted(sess) }),
		playback.WithOnIdle(func() { c.playbackIdle(sess) }))
	tr := transport.NewSession(c.deps.Dialer, c.deps.Encoders, device, sessionListener{c: c, sess: sess},
		c.deps.Metrics, logger, c.cfg.Transport)
	if !sess.setPipeline(tr, queue) {
		queue.Stop()
		return ErrSessionClosed
	}
	if sessionCtx.Err() != nil {
		return ErrSessionClosed
	}

	logger.Info("conversation opened")
	tr.Start(sessionCtx)
	return nil
}

// Close ends the conversation in any state, including while permission is pending.
// Calling it without a live conversation does nothing; in particular a conversation
// that already failed keeps its error status rather than showing ended.
func (c *SessionController) Close() {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.mu.Unlock()

	if sess == nil {
		return
	}

	c.transition(sess, func() {
		c.finishLocked(sess, domain.StatusEnded, MessageEnded, outcomeClosed)
	})
	c.release(sess)
}

// ToggleMute flips the microphone track and returns the new mute state. Without a
// device it does nothing. The connection is never touched.
func (c *SessionController) ToggleMute() bool {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	if sess == nil {
		return false
	}
	device := sess.getDevice()
	if device == nil {
		return false
	}

	muted := false
	c.transition(sess, func() {
		sess.muted = !sess.muted
		muted = sess.muted
		device.SetEnabled(!sess.muted)

		switch {
		case sess.muted:
			c.setStatusLocked(sess, domain.StatusMuted, MessageMuted)
		case sess.transportOpen:
			c.setStatusLocked(sess, sess.conversation, conversationMessage(sess.conversation))
		default:
			c.setStatusLocked(sess, domain.StatusConnecting, MessageConnecting)
		}
	})
	return muted
}

// Status returns the latest status.
func (c *SessionController) Status() domain.Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *SessionController) connectionOpened(sess *captureSession, mode domain.EncodingMode) {
	c.transition(sess, func() {
		sess.transportOpen = true
		sess.mode = mode
		sess.conversation = domain.StatusListening
		sess.pendingListening = false
		c.applyConversationLocked(sess)
	})
}

func (c *SessionController) controlReceived(sess *captureSession, event domain.ControlEvent) {
	switch event.Action {
	case domain.ActionPlayThinkingAudio:
		c.transition(sess, func() {
			sess.conversation = domain.StatusThinking
			sess.pendingListening = false
			c.applyConversationLocked(sess)
		})
		c.playCue(sess)
	case domain.ActionEndOfAIAudio:
		queue := sess.getQueue()
		c.transition(sess, func() {
			if queue != nil && queue.Playing() {
				sess.pendingListening = true
				return
			}
			sess.conversation = domain.StatusListening
			c.applyConversationLocked(sess)
		})
	}
}

func (c *SessionController) chunkStarted(sess *captureSession) {
	c.transition(sess, func() {
		sess.conversation = domain.StatusSpeaking
		c.applyConversationLocked(sess)
	})
}

func (c *SessionController) playbackIdle(sess *captureSession) {
	queue := sess.getQueue()
	c.transition(sess, func() {
		if queue != nil && queue.Playing() {
			return
		}
		// a chunk that arrives after end_of_ai_audio still hands the turn back
		if !sess.pendingListening && sess.conversation != domain.StatusSpeaking {
			return
		}
		sess.pendingListening = false
		sess.conversation = domain.StatusListening
		c.applyConversationLocked(sess)
	})
}

func (c *SessionController) playCue(sess *captureSession) {
	if c.deps.Cue == nil {
		return
	}
	go func() {
		if err := c.deps.Cue.PlayCue(sess.ctx); err != nil && sess.ctx.Err() == nil {
			c.deps.Logger.Debug("thinking cue failed", zap.String("session_id", sess.id), zap.Error(err))
		}
	}()
}

// failSession reports err once and tears the conversation down. It may run on a
// transport goroutine, so the release happens asynchronously.
func (c *SessionController) failSession(sess *captureSession, err error) {
	c.endSession(sess, domain.StatusError, errorMessage(err), string(domain.KindOf(err)))
}

func (c *SessionController) endSession(sess *captureSession, state domain.StatusState, message, outcome string) {
	c.mu.Lock()
	if c.current == sess {
		c.current = nil
	}
	c.mu.Unlock()

	c.transition(sess, func() {
		c.finishLocked(sess, state, message, outcome)
	})
	go c.release(sess)
}

func (c *SessionController) release(sess *captureSession) {
	sess.releaseOnce.Do(func() {
		sess.cancel()

		sess.mu.Lock()
		sess.released = true
		tr, queue, device := sess.transport, sess.queue, sess.device
		sess.mu.Unlock()

		if tr != nil {
			tr.Close()
		}
		if queue != nil {
			queue.Stop()
		}
		if device != nil {
			if err := device.Stop(); err != nil {
				c.deps.Logger.Warn("failed to stop microphone", zap.String("session_id", sess.id), zap.Error(err))
			}
		}
		c.deps.Logger.Info("conversation released", zap.String("session_id", sess.id))
	})
}

// transition runs fn under the status lock unless sess has already finished.
func (c *SessionController) transition(sess *captureSession, fn func()) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if sess.finished {
		return
	}
	fn()
}

func (c *SessionController) applyConversationLocked(sess *captureSession) {
	switch {
	case sess.muted:
		c.setStatusLocked(sess, domain.StatusMuted, MessageMuted)
	case sess.transportOpen:
		c.setStatusLocked(sess, sess.conversation, conversationMessage(sess.conversation))
	}
}

func (c *SessionController) finishLocked(sess *captureSession, state domain.StatusState, message, outcome string) {
	c.setStatusLocked(sess, state, message)
	sess.finished = true
	c.deps.Metrics.SessionFinished(outcome)
}

func (c *SessionController) setStatusLocked(sess *captureSession, state domain.StatusState, message string) {
	terminal := state == domain.StatusEnded || state == domain.StatusError
	next := domain.Status{
		State:     state,
		Message:   message,
		SessionID: sess.id,
		Muted:     sess.muted && !terminal,
		Active:    !terminal,
		Mode:      sess.mode,
		StartedAt: sess.startedAt,
	}
	if next == c.status {
		return
	}
	c.status = next
	c.deps.Metrics.StatusChanged(state)
	if c.deps.Status != nil {
		c.deps.Status.StatusChanged(next)
	}
}
