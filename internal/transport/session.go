// Package transport owns the duplex connection of one capture session: it binds an
// encoding path to each connection, streams frames out and demultiplexes server
// messages.
package transport

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/encoder"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/metrics"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// Listener receives session events. Callbacks run on session goroutines and must not
// call back into Close.
type Listener interface {
	ConnectionOpened(mode domain.EncodingMode)
	// ConnectionClosed reports a close initiated by the server.
	ConnectionClosed()
	// ConnectionFailed is called at most once, and never after a local Close.
	ConnectionFailed(err error)
	ControlReceived(event domain.ControlEvent)
	AudioReceived(chunk []byte)
}

// Config for one session.
type Config struct {
	URL string
	// AudioReply enables processing of server messages. When false, inbound
	// messages are read and discarded.
	AudioReply bool
}

// Session keeps at most one connection open at a time.
type Session struct {
	dialer   ports.Dialer
	selector *encoder.Selector
	device   ports.CaptureDevice
	listener Listener
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	failOnce  sync.Once

	mu      sync.Mutex
	conn    ports.Connection
	mode    domain.EncodingMode
	started bool
	closed  bool
}

func NewSession(
	dialer ports.Dialer,
	selector *encoder.Selector,
	device ports.CaptureDevice,
	listener Listener,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		dialer:   dialer,
		selector: selector,
		device:   device,
		listener: listener,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Start dials in the background. Only the first call has an effect.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.started = true
		closed := s.closed
		s.mu.Unlock()

		if closed {
			s.cancel()
			close(s.done)
			return
		}
		go s.run()
	})
}

// Close stops the encoder, closes the connection and waits for the session goroutines.
// It never reports to the listener. Safe to call more than once and before Start.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		started := s.started
		conn := s.conn
		cancel := s.cancel
		s.mu.Unlock()

		if !started {
			return
		}
		cancel()
		if conn != nil {
			_ = conn.Close()
		}
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Done is closed once the session has fully stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State of the current connection. Before the first connection opens, and between a
// fallback close and the next dial, the session is connecting.
func (s *Session) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.conn != nil:
		return s.conn.State()
	case s.closed:
		return domain.ConnClosed
	default:
		select {
		case <-s.done:
			return domain.ConnClosed
		default:
			return domain.ConnConnecting
		}
	}
}

// Mode is the encoding mode of the current connection, empty before one is bound.
func (s *Session) Mode() domain.EncodingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) run() {
	defer close(s.done)

	path := s.selector.Preferred()
	for {
		conn, err := s.dialer.Dial(s.ctx, s.cfg.URL)
		if err != nil {
			if s.ctx.Err() == nil {
				s.fail(err)
			}
			return
		}
		if !s.attach(conn) {
			_ = conn.Close()
			return
		}

		producer, err := s.selector.Start(s.ctx, path, s.device)
		if err != nil {
			s.detach()
			_ = conn.Close()
			if s.ctx.Err() != nil {
				return
			}
			if path.Mode == domain.EncodingWorkletPCM && errors.Is(err, domain.ErrEncoderInit) {
				s.logger.Warn("pcm encoder unavailable, reconnecting with container recorder", zap.Error(err))
				s.metrics.EncoderFellBack()
				path = s.selector.Fallback()
				continue
			}
			s.fail(err)
			return
		}

		s.mu.Lock()
		s.mode = path.Mode
		s.mu.Unlock()
		s.logger.Info("transport open", zap.String("mode", string(path.Mode)))
		s.listener.ConnectionOpened(path.Mode)

		err = s.serve(conn, producer, path.Mode)
		s.detach()
		switch {
		case s.ctx.Err() != nil:
		case err != nil:
			s.fail(err)
		default:
			s.logger.Info("server closed the connection")
			s.listener.ConnectionClosed()
		}
		return
	}
}

// serve runs one bound connection until it closes from either side.
func (s *Session) serve(conn ports.Connection, producer ports.FrameProducer, mode domain.EncodingMode) error {
	pumpDone := make(chan struct{})
	go pumpFrames(producer, conn, mode, s.metrics, pumpDone)

	inboundDone := make(chan struct{})
	go forwardInbound(conn, s.handleInbound, inboundDone)

	closed := make(chan struct{})
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-closed:
		}
	}()

	err := conn.Wait()
	close(closed)

	if stopErr := producer.Stop(); stopErr != nil {
		s.logger.Debug("frame producer stop failed", zap.Error(stopErr))
	}
	<-pumpDone
	<-inboundDone
	return err
}

func (s *Session) handleInbound(msg domain.InboundMessage) {
	s.metrics.Inbound(msg.Kind)
	if !s.cfg.AudioReply {
		return
	}

	switch msg.Kind {
	case domain.MessageText:
		event, ok := decodeControl(msg.Payload)
		if !ok {
			s.logger.Debug("ignoring unrecognized text message", zap.Int("bytes", len(msg.Payload)))
			return
		}
		s.metrics.Control(event.Action)
		s.listener.ControlReceived(event)
	case domain.MessageBinary:
		s.listener.AudioReceived(msg.Payload)
	}
}

func (s *Session) attach(conn ports.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *Session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
}

func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		s.logger.Warn("transport failed", zap.Error(err))
		s.listener.ConnectionFailed(err)
	})
}
