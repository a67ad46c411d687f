package bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/audio"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/config"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/encoder"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/logging"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/metrics"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/providers/wsconn"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/transport"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry

	sink          *audio.PipeSink
	metricsServer *http.Server
}

// Build wires all backend dependencies for the current runtime.
func Build(status ports.StatusSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return Services{}, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	selector := encoder.NewSelector(
		encoder.NewWorkletHost(cfg.Encoder.WorkletEnabled, cfg.Encoder.PortBuffer, logger.Named("worklet")),
		audio.NewFFMPEGRecorderFactory(cfg.Encoder.RecorderCommand, logger.Named("recorder")),
		cfg.Encoder.MimeTypes,
		logger.Named("encoder"),
	)
	sink := audio.NewPipeSink(cfg.Playback.Command, cfg.Playback.SampleRate, logger.Named("sink"))

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Devices: audio.NewFFMPEGDeviceProvider(cfg.Audio.FFMPEGCommand, logger.Named("capture")),
			Dialer: wsconn.NewDialer(wsconn.Config{
				HandshakeTimeout: cfg.Server.HandshakeTimeout,
			}, logger.Named("wsconn")),
			Encoders: selector,
			Decoder:  audio.NewDecoder(cfg.Playback.DecoderCommand, cfg.Playback.SampleRate, logger.Named("decoder")),
			Sink:     sink,
			Cue:      audio.NewCommandCuePlayer(cfg.Playback.CueCommand, cfg.Playback.ThinkingCue),
			Status:   status,
			Metrics:  m,
			Logger:   logger.Named("controller"),
		},
		usecase.Config{
			Constraints: ports.CaptureConstraints{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Transport: transport.Config{
				URL:        cfg.Server.URL,
				AudioReply: cfg.Playback.AudioReply,
			},
		},
	)

	services := Services{
		Controller: controller,
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		sink:       sink,
	}
	if cfg.Metrics.Addr != "" {
		services.metricsServer = metrics.Serve(cfg.Metrics.Addr, registry, logger.Named("metrics"))
	}

	logger.Info("voice client ready",
		zap.String("server", cfg.Server.URL),
		zap.Bool("worklet", cfg.Encoder.WorkletEnabled),
		zap.Bool("audio_reply", cfg.Playback.AudioReply),
	)
	return services, nil
}

// Close ends any live conversation and releases process-wide resources.
func (s Services) Close(ctx context.Context) error {
	var errs []error
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.sink != nil {
		errs = append(errs, s.sink.Close())
	}
	if s.metricsServer != nil {
		errs = append(errs, s.metricsServer.Shutdown(ctx))
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
	return errors.Join(errs...)
}
