package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
	sendBuffer     = 64
)

var ErrUnknownPeer = errors.New("unknown peer")

// Received records one client message seen by the server.
type Received struct {
	PeerID string
	Kind   domain.MessageKind
	Size   int
	Text   string
	At     time.Time
}

type outbound struct {
	messageType int
	payload     []byte
}

type peer struct {
	id   string
	conn *websocket.Conn
	send chan outbound
	done chan struct{}
}

// Server is a local stand-in for the voice service. It accepts websocket clients
// on /ws, logs what they stream, and lets callers push audio and control
// messages back.
type Server struct {
	echo     *echo.Echo
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	peers     map[string]*peer
	received  []Received
	connected chan string
}

func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:   echo.New(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		peers:     make(map[string]*peer),
		connected: make(chan string, 16),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())

	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"peers":  len(s.Peers()),
		})
	})
	s.echo.GET("/ws", s.handleWebSocket)

	return s
}

// Handler exposes the routes for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("dev server listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every client with a normal closure and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, id := range s.Peers() {
		_ = s.Disconnect(id)
	}
	return s.echo.Shutdown(ctx)
}

// Peers returns the ids of connected clients.
func (s *Server) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}

// Received returns a copy of every message recorded so far.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.received...)
}

// WaitForPeer blocks until a client connects.
func (s *Server) WaitForPeer(ctx context.Context) (string, error) {
	select {
	case id := <-s.connected:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Send pushes a binary audio chunk to one client.
func (s *Server) Send(peerID string, payload []byte) error {
	return s.enqueue(peerID, outbound{messageType: websocket.BinaryMessage, payload: payload})
}

// SendControl pushes a {"action": ...} text message to one client.
func (s *Server) SendControl(peerID string, action domain.ControlAction) error {
	payload, err := json.Marshal(domain.ControlEvent{Action: action})
	if err != nil {
		return err
	}
	return s.enqueue(peerID, outbound{messageType: websocket.TextMessage, payload: payload})
}

// Disconnect sends a normal close frame to one client.
func (s *Server) Disconnect(peerID string) error {
	p, ok := s.peer(peerID)
	if !ok {
		return ErrUnknownPeer
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server closed")
	if err := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		_ = p.conn.Close()
		return err
	}
	return nil
}

func (s *Server) peer(id string) (*peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	return p, ok
}

func (s *Server) enqueue(peerID string, msg outbound) error {
	p, ok := s.peer(peerID)
	if !ok {
		return ErrUnknownPeer
	}
	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrUnknownPeer
	default:
		return fmt.Errorf("peer %s send buffer full", peerID)
	}
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	p := &peer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.peers[p.id] = p
	s.mu.Unlock()
	s.logger.Info("websocket connection established", zap.String("peer", p.id))

	select {
	case s.connected <- p.id:
	default:
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(p)
	}()

	s.readPump(p)

	close(p.done)
	<-writerDone
	_ = conn.Close()

	s.mu.Lock()
	delete(s.peers, p.id)
	s.mu.Unlock()
	s.logger.Info("websocket connection closed", zap.String("peer", p.id))
	return nil
}

func (s *Server) readPump(p *peer) {
	p.conn.SetReadLimit(maxMessageSize)
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("websocket client disconnected", zap.String("peer", p.id))
			} else {
				s.logger.Warn("websocket read failed", zap.String("peer", p.id), zap.Error(err))
			}
			return
		}

		entry := Received{PeerID: p.id, Size: len(data), At: time.Now()}
		switch messageType {
		case websocket.BinaryMessage:
			entry.Kind = domain.MessageBinary
			s.logger.Info("received audio data chunk", zap.String("peer", p.id), zap.Int("size", len(data)))
		case websocket.TextMessage:
			entry.Kind = domain.MessageText
			entry.Text = string(data)
			s.logger.Info("received text message", zap.String("peer", p.id), zap.String("text", entry.Text))
		default:
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, entry)
		s.mu.Unlock()
	}
}

func (s *Server) writePump(p *peer) {
	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(msg.messageType, msg.payload); err != nil {
				s.logger.Warn("websocket write failed", zap.String("peer", p.id), zap.Error(err))
				_ = p.conn.Close()
				return
			}
		case <-p.done:
			return
		}
	}
}
