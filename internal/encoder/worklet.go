package encoder

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

const defaultPortBuffer = 256

// WorkletHost runs the Downsampler on a dedicated goroutine per device, the Go
// counterpart of an audio worklet. Frames cross to the consumer over a buffered
// channel only.
type WorkletHost struct {
	enabled    bool
	portBuffer int
	logger     *zap.Logger
}

func NewWorkletHost(enabled bool, portBuffer int, logger *zap.Logger) *WorkletHost {
	if portBuffer <= 0 {
		portBuffer = defaultPortBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkletHost{enabled: enabled, portBuffer: portBuffer, logger: logger}
}

func (h *WorkletHost) Available() bool {
	return h.enabled
}

// Install loads the encoder for device. It fails with domain.ErrEncoderInit when the
// host is disabled or the device rate cannot be decimated to 16 kHz.
func (h *WorkletHost) Install(ctx context.Context, device ports.CaptureDevice) (ports.FrameProducer, error) {
	if !h.enabled {
		return nil, domain.ErrEncoderInit
	}
	downsampler, err := NewDownsampler(device.SampleRate())
	if err != nil {
		return nil, err
	}

	node := &workletNode{
		downsampler: downsampler,
		port:        make(chan []byte, h.portBuffer),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      h.logger,
	}
	go node.run(ctx, device.Samples())
	return node, nil
}

type workletNode struct {
	downsampler *Downsampler
	port        chan []byte
	stop        chan struct{}
	done        chan struct{}
	logger      *zap.Logger

	stopOnce sync.Once
	dropped  atomic.Int64
}

func (n *workletNode) Mode() domain.EncodingMode {
	return domain.EncodingWorkletPCM
}

func (n *workletNode) Frames() <-chan []byte {
	return n.port
}

func (n *workletNode) Stop() error {
	n.stopOnce.Do(func() {
		close(n.stop)
	})
	<-n.done
	return nil
}

func (n *workletNode) run(ctx context.Context, samples <-chan []float32) {
	defer func() {
		close(n.port)
		close(n.done)
		if dropped := n.dropped.Load(); dropped > 0 {
			n.logger.Debug("worklet port overflowed", zap.Int64("dropped_frames", dropped))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case block, ok := <-samples:
			if !ok {
				return
			}
			for _, frame := range n.downsampler.Process(block) {
				n.post(frame)
			}
		}
	}
}

// post never blocks the processing goroutine.
func (n *workletNode) post(frame []byte) {
	select {
	case n.port <- frame:
	default:
		n.dropped.Add(1)
	}
}
