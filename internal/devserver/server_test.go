package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/providers/wsconn"
)

func startServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(nil)
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)
	return srv, httpServer
}

func TestHealthz(t *testing.T) {
	_, httpServer := startServer(t)

	resp, err := http.Get(httpServer.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestClientStreamIsRecorded(t *testing.T) {
	srv, httpServer := startServer(t)

	conn, err := wsconn.NewDialer(wsconn.Config{}, nil).Dial(context.Background(), httpServer.URL)
	require.NoError(t, err)
	defer conn.Close()

	frame := make([]byte, domain.FrameBytes)
	require.NoError(t, conn.SendBinary(frame))
	require.NoError(t, conn.SendBinary(frame[:100]))

	require.Eventually(t, func() bool { return len(srv.Received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	got := srv.Received()
	assert.Equal(t, domain.MessageBinary, got[0].Kind)
	assert.Equal(t, domain.FrameBytes, got[0].Size)
	assert.Equal(t, 100, got[1].Size)
	assert.Equal(t, got[0].PeerID, got[1].PeerID)
}

func TestServerPushesControlAndAudio(t *testing.T) {
	srv, httpServer := startServer(t)

	conn, err := wsconn.NewDialer(wsconn.Config{}, nil).Dial(context.Background(), httpServer.URL)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peerID, err := srv.WaitForPeer(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{peerID}, srv.Peers())

	require.NoError(t, srv.SendControl(peerID, domain.ActionPlayThinkingAudio))
	require.NoError(t, srv.Send(peerID, []byte("RIFF")))

	first := receive(t, conn.Messages())
	assert.Equal(t, domain.MessageText, first.Kind)
	var event domain.ControlEvent
	require.NoError(t, json.Unmarshal(first.Payload, &event))
	assert.Equal(t, domain.ActionPlayThinkingAudio, event.Action)

	second := receive(t, conn.Messages())
	assert.Equal(t, domain.MessageBinary, second.Kind)
	assert.Equal(t, []byte("RIFF"), second.Payload)
}

func TestDisconnectIsNormalClosure(t *testing.T) {
	srv, httpServer := startServer(t)

	conn, err := wsconn.NewDialer(wsconn.Config{}, nil).Dial(context.Background(), httpServer.URL)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peerID, err := srv.WaitForPeer(ctx)
	require.NoError(t, err)

	require.NoError(t, srv.Disconnect(peerID))

	waitErr := make(chan error, 1)
	go func() { waitErr <- conn.Wait() }()
	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close")
	}

	require.Eventually(t, func() bool { return len(srv.Peers()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, srv.Send(peerID, []byte{1}), ErrUnknownPeer)
}

func receive(t *testing.T, messages <-chan domain.InboundMessage) domain.InboundMessage {
	t.Helper()
	select {
	case msg, ok := <-messages:
		require.True(t, ok, "messages closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return domain.InboundMessage{}
	}
}
