package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"RECEPTIONIST_ENV_FILE", "RECEPTIONIST_SERVER_URL", "VOICE_SERVER_URL",
		"RECEPTIONIST_THINKING_CUE", "RECEPTIONIST_RECORDER_MIME_TYPES", "LOG_FILE",
		"RECEPTIONIST_METRICS_ADDR", "LOG_STDERR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.URL != "ws://127.0.0.1:8000/ws" || cfg.Server.HandshakeTimeout != 10*time.Second {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Channels != 1 || cfg.Audio.InputFormat != "pulse" {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if !cfg.Encoder.WorkletEnabled || cfg.Encoder.PortBuffer != 256 {
		t.Fatalf("unexpected encoder config: %+v", cfg.Encoder)
	}
	wantMimes := []string{"audio/ogg;codecs=opus", "audio/webm;codecs=opus"}
	if !reflect.DeepEqual(cfg.Encoder.MimeTypes, wantMimes) {
		t.Fatalf("unexpected mime preferences: %v", cfg.Encoder.MimeTypes)
	}
	if !cfg.Playback.AudioReply || cfg.Playback.SampleRate != 24000 || cfg.Playback.ThinkingCue != "" {
		t.Fatalf("unexpected playback config: %+v", cfg.Playback)
	}
	if !cfg.Logging.Stderr {
		t.Fatalf("expected stderr logging by default")
	}
	if cfg.DevServer.Addr != "127.0.0.1:8000" || cfg.Metrics.Addr != "" {
		t.Fatalf("unexpected addresses: %+v %+v", cfg.DevServer, cfg.Metrics)
	}
}

func TestLoadRespectsOverridesAndFallbacks(t *testing.T) {
	home := t.TempDir()
	cue := filepath.Join(home, ".config", "receptionist", "thinking.mp3")
	if err := os.MkdirAll(filepath.Dir(cue), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(cue, []byte("ID3"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("RECEPTIONIST_ENV_FILE", "")
	t.Setenv("RECEPTIONIST_THINKING_CUE", "")
	t.Setenv("RECEPTIONIST_SERVER_URL", "")
	t.Setenv("VOICE_SERVER_URL", "https://clinic.example.com")
	t.Setenv("RECEPTIONIST_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("RECEPTIONIST_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("RECEPTIONIST_AUDIO_INPUT_DEVICE", "hw:1")
	t.Setenv("RECEPTIONIST_CAPTURE_SAMPLE_RATE", "44100")
	t.Setenv("RECEPTIONIST_WORKLET_ENABLED", "off")
	t.Setenv("RECEPTIONIST_RECORDER_MIME_TYPES", "audio/webm;codecs=opus, audio/ogg;codecs=opus")
	t.Setenv("RECEPTIONIST_AUDIO_REPLY", "false")
	t.Setenv("RECEPTIONIST_HANDSHAKE_TIMEOUT_MS", "2500")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "/tmp/receptionist.log")
	t.Setenv("LOG_STDERR", "no")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.URL != "https://clinic.example.com" || cfg.Server.HandshakeTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Audio.FFMPEGCommand != "my-ffmpeg" || cfg.Encoder.RecorderCommand != "my-ffmpeg" || cfg.Playback.DecoderCommand != "my-ffmpeg" {
		t.Fatalf("expected ffmpeg command to propagate: %+v %+v %+v", cfg.Audio, cfg.Encoder, cfg.Playback)
	}
	if cfg.Audio.InputFormat != "alsa" || cfg.Audio.InputDevice != "hw:1" || cfg.Audio.SampleRate != 44100 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Encoder.WorkletEnabled {
		t.Fatalf("expected worklet disabled")
	}
	if len(cfg.Encoder.MimeTypes) != 2 || cfg.Encoder.MimeTypes[0] != "audio/webm;codecs=opus" {
		t.Fatalf("unexpected mime preferences: %v", cfg.Encoder.MimeTypes)
	}
	if cfg.Playback.AudioReply {
		t.Fatalf("expected audio reply disabled")
	}
	if cfg.Playback.ThinkingCue != cue {
		t.Fatalf("expected cue from home config, got %q", cfg.Playback.ThinkingCue)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.File != "/tmp/receptionist.log" || cfg.Logging.Stderr {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RECEPTIONIST_ENV_FILE", "")
	t.Setenv("RECEPTIONIST_CAPTURE_SAMPLE_RATE", "8000")
	t.Setenv("RECEPTIONIST_CHANNELS", "-1")
	t.Setenv("RECEPTIONIST_WORKLET_PORT_BUFFER", "bad")
	t.Setenv("RECEPTIONIST_PLAYBACK_SAMPLE_RATE", "0")
	t.Setenv("RECEPTIONIST_HANDSHAKE_TIMEOUT_MS", "-5")
	t.Setenv("RECEPTIONIST_AUDIO_REPLY", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 48000 {
		t.Fatalf("expected default capture rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected default channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Encoder.PortBuffer != 256 {
		t.Fatalf("expected default port buffer, got %d", cfg.Encoder.PortBuffer)
	}
	if cfg.Playback.SampleRate != 24000 {
		t.Fatalf("expected default playback rate, got %d", cfg.Playback.SampleRate)
	}
	if cfg.Server.HandshakeTimeout != 10*time.Second {
		t.Fatalf("expected default handshake timeout, got %s", cfg.Server.HandshakeTimeout)
	}
	if !cfg.Playback.AudioReply {
		t.Fatalf("expected default audio reply true")
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "receptionist.env")
	contents := "RECEPTIONIST_DEVSERVER_ADDR=0.0.0.0:9000\nRECEPTIONIST_PLAYBACK_COMMAND=paplay\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", dir)
	t.Setenv("RECEPTIONIST_ENV_FILE", envFile)
	t.Setenv("RECEPTIONIST_DEVSERVER_ADDR", "")
	if err := os.Unsetenv("RECEPTIONIST_DEVSERVER_ADDR"); err != nil {
		t.Fatalf("unsetenv failed: %v", err)
	}
	// already-set variables are not overridden by the file
	t.Setenv("RECEPTIONIST_PLAYBACK_COMMAND", "pw-play")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DevServer.Addr != "0.0.0.0:9000" {
		t.Fatalf("expected env file value, got %q", cfg.DevServer.Addr)
	}
	if cfg.Playback.Command != "pw-play" {
		t.Fatalf("expected environment to win, got %q", cfg.Playback.Command)
	}
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RECEPTIONIST_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
