package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

// Metrics contains the Prometheus collectors of the voice client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesSent        *prometheus.CounterVec
	FramesDropped     prometheus.Counter
	InboundMessages   *prometheus.CounterVec
	ControlEvents     *prometheus.CounterVec
	ChunksPlayed      prometheus.Counter
	DecodeFailures    prometheus.Counter
	EncoderFallbacks  prometheus.Counter
	Sessions          *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
}

// New creates and registers all collectors on reg. A nil reg gets a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receptionist_frames_sent_total",
			Help: "Outbound audio frames or chunks written to the connection",
		}, []string{"mode"}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "receptionist_frames_dropped_total",
			Help: "Outbound audio frames dropped because the connection was not open",
		}),
		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receptionist_inbound_messages_total",
			Help: "Messages received from the voice service",
		}, []string{"kind"}),
		ControlEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receptionist_control_events_total",
			Help: "Recognized control events received from the voice service",
		}, []string{"action"}),
		ChunksPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "receptionist_playback_chunks_played_total",
			Help: "Synthesized audio chunks played to completion",
		}),
		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "receptionist_playback_decode_failures_total",
			Help: "Synthesized audio chunks skipped because decoding failed",
		}),
		EncoderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "receptionist_encoder_fallbacks_total",
			Help: "Connections re-opened on the container recorder path after a pcm install failure",
		}),
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receptionist_sessions_total",
			Help: "Capture sessions by outcome",
		}, []string{"outcome"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "receptionist_status_transitions_total",
			Help: "Status transitions published to the status sink",
		}, []string{"state"}),
	}
}

func (m *Metrics) FrameSent(mode domain.EncodingMode) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

func (m *Metrics) Inbound(kind domain.MessageKind) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Control(action domain.ControlAction) {
	if m == nil {
		return
	}
	m.ControlEvents.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) ChunkPlayed() {
	if m == nil {
		return
	}
	m.ChunksPlayed.Inc()
}

func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

func (m *Metrics) EncoderFellBack() {
	if m == nil {
		return
	}
	m.EncoderFallbacks.Inc()
}

func (m *Metrics) SessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StatusChanged(state domain.StatusState) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(string(state)).Inc()
}

// Serve exposes gatherer on addr/metrics in the background. The returned server is
// shut down by the caller.
func Serve(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return server
}
