// Package wsconn implements ports.Dialer over gorilla/websocket.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadLimit        = 8 << 20
	closeGrace              = time.Second
	writeWait               = 10 * time.Second
)

// ErrClosed is returned when sending on a connection that is closing or closed.
var ErrClosed = errors.New("websocket connection is closed")

// Config controls the websocket client.
type Config struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

// Dialer opens websocket connections to the voice service.
type Dialer struct {
	cfg    Config
	logger *zap.Logger
}

func NewDialer(cfg Config, logger *zap.Logger) *Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{cfg: cfg, logger: logger}
}

func (d *Dialer) Dial(ctx context.Context, rawURL string) (ports.Connection, error) {
	wsURL, err := ResolveURL(rawURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, d.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrConnectionFailure, wsURL, err)
	}
	conn.SetReadLimit(d.cfg.ReadLimit)

	c := &connection{
		conn:     conn,
		logger:   d.logger.With(zap.String("url", wsURL)),
		messages: make(chan domain.InboundMessage, 64),
		outbound: make(chan []byte, 32),
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		state:    domain.ConnOpen,
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		c.wg.Wait()
		c.setState(domain.ConnClosed)
		close(c.messages)
		close(c.done)
		_ = conn.Close()
	}()

	c.logger.Debug("websocket connected")
	return c, nil
}

type connection struct {
	conn   *websocket.Conn
	logger *zap.Logger

	messages chan domain.InboundMessage
	outbound chan []byte
	stop     chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	stateMu sync.Mutex
	state   domain.ConnState

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	sendMu     sync.RWMutex
	sendClosed bool
}

// SendBinary queues one binary message. The payload is not copied; callers hand over
// immutable frames.
func (c *connection) SendBinary(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return ErrClosed
	}

	select {
	case c.outbound <- payload:
		return nil
	case <-c.stop:
		return ErrClosed
	case <-c.readDone:
		if err := c.waitErr(); err != nil {
			return err
		}
		return ErrClosed
	}
}

func (c *connection) Messages() <-chan domain.InboundMessage {
	return c.messages
}

func (c *connection) State() domain.ConnState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *connection) Wait() error {
	<-c.done
	return c.waitErr()
}

// Close sends a normal close frame and waits for the peer to acknowledge it, forcing
// the socket shut after a short grace period. Senders blocked on a stalled peer are
// released first.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		if c.State() == domain.ConnOpen {
			c.setState(domain.ConnClosing)
		}
		close(c.stop)

		c.sendMu.Lock()
		c.sendClosed = true
		close(c.outbound)
		c.sendMu.Unlock()
	})

	select {
	case <-c.done:
	case <-time.After(closeGrace):
		_ = c.conn.Close()
		<-c.done
	}
	return c.waitErr()
}

func (c *connection) setState(state domain.ConnState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

func (c *connection) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *connection) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-c.stop:
		// errors after a local close are the socket being torn down
		return
	default:
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", domain.ErrConnectionFailure, err)
	}
}

func (c *connection) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case payload, ok := <-c.outbound:
			if !ok {
				c.writeClose()
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				c.setErr(fmt.Errorf("write: %w", err))
				_ = c.conn.Close()
				return
			}
		case <-c.readDone:
			return
		}
	}
}

func (c *connection) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
		_ = c.conn.Close()
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(closeGrace))
}

func (c *connection) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() == domain.ConnOpen {
				c.setState(domain.ConnClosing)
			}
			c.setErr(fmt.Errorf("read: %w", err))
			return
		}

		var kind domain.MessageKind
		switch messageType {
		case websocket.TextMessage:
			kind = domain.MessageText
		case websocket.BinaryMessage:
			kind = domain.MessageBinary
		default:
			continue
		}

		select {
		case c.messages <- domain.InboundMessage{Kind: kind, Payload: payload}:
		case <-c.stop:
			return
		}
	}
}

// ResolveURL normalizes a server address into a websocket URL. http and https map to
// ws and wss, and an empty path becomes /ws.
func ResolveURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: server url is empty", domain.ErrConnectionFailure)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid server url: %v", domain.ErrConnectionFailure, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported url scheme %q", domain.ErrConnectionFailure, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: server url %q has no host", domain.ErrConnectionFailure, raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
