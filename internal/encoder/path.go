package encoder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// Recorder timeslices. A connection that fell back from the pcm path flushes faster
// than one that started on the recorder.
const (
	FallbackTimeslice = 250 * time.Millisecond
	DirectTimeslice   = 1000 * time.Millisecond
)

// DefaultMimePreferences is the ordered container preference of the recorder path.
var DefaultMimePreferences = []string{
	"audio/ogg;codecs=opus",
	"audio/webm;codecs=opus",
}

// Path is the encoding variant fixed for the lifetime of one connection.
type Path struct {
	Mode      domain.EncodingMode
	Timeslice time.Duration
}

// Selector resolves and starts encoding paths in preference order.
type Selector struct {
	pcm       ports.PCMEncoderHost
	recorder  ports.MediaRecorderFactory
	mimeTypes []string
	logger    *zap.Logger
}

func NewSelector(pcm ports.PCMEncoderHost, recorder ports.MediaRecorderFactory, mimeTypes []string, logger *zap.Logger) *Selector {
	if len(mimeTypes) == 0 {
		mimeTypes = DefaultMimePreferences
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{pcm: pcm, recorder: recorder, mimeTypes: mimeTypes, logger: logger}
}

// Preferred is the first path to try for a new capture session.
func (s *Selector) Preferred() Path {
	if s.pcm != nil && s.pcm.Available() {
		return Path{Mode: domain.EncodingWorkletPCM}
	}
	return Path{Mode: domain.EncodingFallbackContainer, Timeslice: DirectTimeslice}
}

// Fallback is the path used after the pcm path failed to install.
func (s *Selector) Fallback() Path {
	return Path{Mode: domain.EncodingFallbackContainer, Timeslice: FallbackTimeslice}
}

// Start binds path to device.
func (s *Selector) Start(ctx context.Context, path Path, device ports.CaptureDevice) (ports.FrameProducer, error) {
	switch path.Mode {
	case domain.EncodingWorkletPCM:
		if s.pcm == nil {
			return nil, domain.ErrEncoderInit
		}
		producer, err := s.pcm.Install(ctx, device)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEncoderInit, err)
		}
		return producer, nil
	case domain.EncodingFallbackContainer:
		if s.recorder == nil || !s.recorder.Available() {
			return nil, fmt.Errorf("%w: media recorder is not available", domain.ErrUnsupportedAPI)
		}
		mimeType := SelectMimeType(s.recorder, s.mimeTypes)
		s.logger.Info("starting container recorder",
			zap.String("mime_type", mimeType),
			zap.Duration("timeslice", path.Timeslice))
		return s.recorder.Start(ctx, device, ports.RecorderOptions{MimeType: mimeType, Timeslice: path.Timeslice})
	default:
		return nil, fmt.Errorf("unknown encoding mode %q", path.Mode)
	}
}

// SelectMimeType returns the first supported type, or "" to let the recorder pick
// its default container.
func SelectMimeType(recorder ports.MediaRecorderFactory, preferences []string) string {
	for _, mimeType := range preferences {
		if recorder.IsTypeSupported(mimeType) {
			return mimeType
		}
	}
	return ""
}
