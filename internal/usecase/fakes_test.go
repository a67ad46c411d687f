package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

type fakeDevices struct {
	rate  int
	err   error
	block chan struct{}

	mu       sync.Mutex
	devices  []*fakeDevice
	acquires int
}

func (f *fakeDevices) Acquire(ctx context.Context, _ ports.CaptureConstraints) (ports.CaptureDevice, error) {
	f.mu.Lock()
	f.acquires++
	err := f.err
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	device := &fakeDevice{rate: f.rate, samples: make(chan []float32, 512)}
	f.mu.Lock()
	f.devices = append(f.devices, device)
	f.mu.Unlock()
	return device, nil
}

func (f *fakeDevices) lastDevice() *fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.devices) == 0 {
		return &fakeDevice{}
	}
	return f.devices[len(f.devices)-1]
}

func (f *fakeDevices) acquireCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires
}

type fakeDevice struct {
	rate    int
	samples chan []float32

	mu      sync.Mutex
	enabled bool
	stops   int
}

func (d *fakeDevice) SampleRate() int           { return d.rate }
func (d *fakeDevice) Samples() <-chan []float32 { return d.samples }

func (d *fakeDevice) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

func (d *fakeDevice) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return nil
}

func (d *fakeDevice) stopCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (ports.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn := &fakeConn{
		inbound: make(chan domain.InboundMessage, 16),
		done:    make(chan struct{}),
		state:   domain.ConnOpen,
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeConn struct {
	inbound chan domain.InboundMessage
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	state  domain.ConnState
	sent   [][]byte
	err    error
	closes int
}

func (c *fakeConn) SendBinary(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ConnOpen {
		return errors.New("closed")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Messages() <-chan domain.InboundMessage { return c.inbound }

func (c *fakeConn) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) Wait() error {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

func (c *fakeConn) fail(err error) {
	c.finish(err)
}

func (c *fakeConn) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.state = domain.ConnClosed
		c.mu.Unlock()
		close(c.inbound)
		close(c.done)
	})
}

func (c *fakeConn) sendText(payload string) {
	c.inbound <- domain.InboundMessage{Kind: domain.MessageText, Payload: []byte(payload)}
}

func (c *fakeConn) sendBinary(payload []byte) {
	c.inbound <- domain.InboundMessage{Kind: domain.MessageBinary, Payload: payload}
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeRecorder struct {
	unavailable bool

	mu   sync.Mutex
	opts ports.RecorderOptions
}

func (r *fakeRecorder) Available() bool             { return !r.unavailable }
func (r *fakeRecorder) IsTypeSupported(string) bool { return true }

func (r *fakeRecorder) Start(_ context.Context, _ ports.CaptureDevice, opts ports.RecorderOptions) (ports.FrameProducer, error) {
	r.mu.Lock()
	r.opts = opts
	r.mu.Unlock()
	return &fakeProducer{frames: make(chan []byte)}, nil
}

func (r *fakeRecorder) options() ports.RecorderOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

type fakeProducer struct {
	frames chan []byte
	once   sync.Once
}

func (p *fakeProducer) Mode() domain.EncodingMode { return domain.EncodingFallbackContainer }
func (p *fakeProducer) Frames() <-chan []byte     { return p.frames }

func (p *fakeProducer) Stop() error {
	p.once.Do(func() { close(p.frames) })
	return nil
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(_ context.Context, chunk []byte) (ports.DecodedAudio, error) {
	return ports.DecodedAudio{PCM: chunk, SampleRate: 24000}, nil
}

// fakeSink blocks every Play on gate when it is set.
type fakeSink struct {
	gate chan struct{}

	mu     sync.Mutex
	played int
}

func (s *fakeSink) Play(ctx context.Context, _ ports.DecodedAudio) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	return nil
}

type fakeCue struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeCue) PlayCue(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func (c *fakeCue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeStatusSink struct {
	mu       sync.Mutex
	statuses []domain.Status
}

func (s *fakeStatusSink) StatusChanged(status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *fakeStatusSink) snapshotStates() []domain.StatusState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]domain.StatusState, 0, len(s.statuses))
	for _, status := range s.statuses {
		states = append(states, status.State)
	}
	return states
}
