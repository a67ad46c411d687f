package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/playback"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/transport"
)

// Status texts shown to the user.
const (
	MessageWaitingPermission = "Requesting microphone permission…"
	MessageConnecting        = "Microphone connected. Connecting to server..."
	MessageListening         = "Listening… you can start speaking"
	MessageThinking          = "Thinking…"
	MessageSpeaking          = "Speaking…"
	MessageMuted             = "Muted"
	MessageEnded             = "Conversation ended"
	MessagePermissionDenied  = "Microphone access denied. Please enable it in your settings."
	MessageUnsupported       = "Audio recording is not supported on this device."
	MessageConnectionFailed  = "Connection to server failed."
)

// Session outcomes recorded in metrics.
const (
	outcomeClosed       = "closed"
	outcomeServerClosed = "server_closed"
)

func conversationMessage(state domain.StatusState) string {
	switch state {
	case domain.StatusThinking:
		return MessageThinking
	case domain.StatusSpeaking:
		return MessageSpeaking
	default:
		return MessageListening
	}
}

func errorMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.ErrorKindPermissionDenied:
		return MessagePermissionDenied
	case domain.ErrorKindUnsupportedAPI:
		return MessageUnsupported
	default:
		return MessageConnectionFailed
	}
}

// captureSession is the single live conversation owned by the controller.
type captureSession struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time

	mu        sync.Mutex
	device    ports.CaptureDevice
	transport *transport.Session
	queue     *playback.Queue
	released  bool

	releaseOnce sync.Once

	// guarded by SessionController.statusMu
	muted            bool
	transportOpen    bool
	conversation     domain.StatusState
	pendingListening bool
	mode             domain.EncodingMode
	finished         bool
}

func (s *captureSession) setDevice(device ports.CaptureDevice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.device = device
	return true
}

func (s *captureSession) setPipeline(tr *transport.Session, queue *playback.Queue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.transport = tr
	s.queue = queue
	return true
}

func (s *captureSession) getDevice() ports.CaptureDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *captureSession) getQueue() *playback.Queue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue
}

// sessionListener routes transport events to the controller, tagged with the session
// they belong to so late events from a replaced session are dropped.
type sessionListener struct {
	c    *SessionController
	sess *captureSession
}

func (l sessionListener) ConnectionOpened(mode domain.EncodingMode) {
	l.c.connectionOpened(l.sess, mode)
}

func (l sessionListener) ConnectionClosed() {
	l.c.endSession(l.sess, domain.StatusEnded, MessageEnded, outcomeServerClosed)
}

func (l sessionListener) ConnectionFailed(err error) {
	l.c.failSession(l.sess, err)
}

func (l sessionListener) ControlReceived(event domain.ControlEvent) {
	l.c.controlReceived(l.sess, event)
}

func (l sessionListener) AudioReceived(chunk []byte) {
	if queue := l.sess.getQueue(); queue != nil {
		queue.Enqueue(chunk)
	}
}
