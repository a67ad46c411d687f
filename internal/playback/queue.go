// Package playback plays server audio chunks one after another, in arrival order.
package playback

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/metrics"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// Option configures a Queue.
type Option func(*Queue)

// WithOnChunkStart registers a hook called right before each decoded chunk starts
// playing.
func WithOnChunkStart(fn func()) Option {
	return func(q *Queue) { q.onChunkStart = fn }
}

// WithOnIdle registers a hook called when the queue drains after a busy period.
// It is not called after Stop.
func WithOnIdle(fn func()) Option {
	return func(q *Queue) { q.onIdle = fn }
}

// Queue is a FIFO of opaque audio chunks. At most one chunk plays at a time and each
// chunk is decoded only when it reaches the head.
type Queue struct {
	decoder ports.AudioDecoder
	sink    ports.AudioSink
	logger  *zap.Logger
	metrics *metrics.Metrics

	onChunkStart func()
	onIdle       func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	chunks  [][]byte
	playing bool
	stopped bool
	idle    chan struct{}
}

func NewQueue(decoder ports.AudioDecoder, sink ports.AudioSink, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	q := &Queue{
		decoder: decoder,
		sink:    sink,
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		idle:    idle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends chunk and starts playback when nothing is playing. Chunks enqueued
// after Stop are discarded.
func (q *Queue) Enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.chunks = append(q.chunks, chunk)
	if q.playing {
		return
	}
	q.playing = true
	q.idle = make(chan struct{})
	q.wg.Add(1)
	go q.playNext()
}

// Playing reports whether a busy period is in progress.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Len is the number of chunks waiting behind the current one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// WaitIdle blocks until the current busy period ends.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop discards pending chunks, interrupts the current one and waits for the playback
// goroutine to exit. Safe to call more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.chunks = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) playNext() {
	defer q.wg.Done()

	for {
		chunk, ok := q.next()
		if !ok {
			return
		}

		audio, err := q.decoder.Decode(q.ctx, chunk)
		if err != nil {
			if q.ctx.Err() != nil {
				continue
			}
			q.metrics.DecodeFailed()
			q.logger.Warn("skipping undecodable audio chunk",
				zap.Int("bytes", len(chunk)),
				zap.String("kind", string(domain.KindOf(err))),
				zap.Error(err))
			continue
		}

		if q.onChunkStart != nil {
			q.onChunkStart()
		}
		if err := q.sink.Play(q.ctx, audio); err != nil {
			if q.ctx.Err() == nil {
				q.logger.Warn("audio chunk playback failed", zap.Error(err))
			}
			continue
		}
		q.metrics.ChunkPlayed()
	}
}

// next pops the head. When the queue is empty it ends the busy period and fires the
// idle hook outside the lock.
func (q *Queue) next() ([]byte, bool) {
	q.mu.Lock()
	if len(q.chunks) > 0 && !q.stopped {
		chunk := q.chunks[0]
		q.chunks[0] = nil
		q.chunks = q.chunks[1:]
		q.mu.Unlock()
		return chunk, true
	}

	q.playing = false
	close(q.idle)
	stopped := q.stopped
	q.mu.Unlock()

	if !stopped && q.onIdle != nil {
		q.onIdle()
	}
	return nil, false
}
