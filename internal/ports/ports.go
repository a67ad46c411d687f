package ports

import (
	"context"
	"time"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

// CaptureConstraints describes how the microphone should be opened. Only audio is
// ever requested.
type CaptureConstraints struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureDevice is a live microphone track.
type CaptureDevice interface {
	// SampleRate is the native rate of the blocks delivered by Samples.
	SampleRate() int
	// Samples delivers mono float32 blocks in [-1, 1]. A disabled track yields silence.
	Samples() <-chan []float32
	SetEnabled(enabled bool)
	Enabled() bool
	Stop() error
}

// DeviceProvider grants microphone access. Acquire fails with domain.ErrPermissionDenied
// or domain.ErrUnsupportedAPI.
type DeviceProvider interface {
	Acquire(ctx context.Context, constraints CaptureConstraints) (CaptureDevice, error)
}

// FrameProducer is one encoding path bound to a device. Frames are immutable.
type FrameProducer interface {
	Mode() domain.EncodingMode
	Frames() <-chan []byte
	Stop() error
}

// PCMEncoderHost is the low-latency processing host the downsampling encoder runs in.
type PCMEncoderHost interface {
	Available() bool
	Install(ctx context.Context, device CaptureDevice) (FrameProducer, error)
}

// RecorderOptions configures a chunked container recorder.
type RecorderOptions struct {
	MimeType  string
	Timeslice time.Duration
}

// MediaRecorderFactory creates chunked container recorders.
type MediaRecorderFactory interface {
	Available() bool
	IsTypeSupported(mimeType string) bool
	Start(ctx context.Context, device CaptureDevice, opts RecorderOptions) (FrameProducer, error)
}

// Connection is an open duplex binary-capable connection.
type Connection interface {
	SendBinary(payload []byte) error
	Messages() <-chan domain.InboundMessage
	State() domain.ConnState
	// Wait blocks until the connection is closed and returns the first non-normal error.
	Wait() error
	Close() error
}

// Dialer opens connections to the voice service.
type Dialer interface {
	Dial(ctx context.Context, url string) (Connection, error)
}

// DecodedAudio is mono PCM16LE ready for output.
type DecodedAudio struct {
	PCM        []byte
	SampleRate int
}

// Duration of the decoded audio.
func (a DecodedAudio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	samples := len(a.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(a.SampleRate)
}

// AudioDecoder turns an opaque playback chunk into PCM.
type AudioDecoder interface {
	Decode(ctx context.Context, chunk []byte) (DecodedAudio, error)
}

// AudioSink plays decoded audio. Play returns once the audio has finished playing.
type AudioSink interface {
	Play(ctx context.Context, audio DecodedAudio) error
}

// CuePlayer plays the local "thinking" cue.
type CuePlayer interface {
	PlayCue(ctx context.Context) error
}

// StatusSink receives every status transition.
type StatusSink interface {
	StatusChanged(status domain.Status)
}
