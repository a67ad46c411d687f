package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the voice client.
type Config struct {
	Server    ServerConfig
	Audio     AudioConfig
	Encoder   EncoderConfig
	Playback  PlaybackConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	DevServer DevServerConfig
}

type ServerConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

type AudioConfig struct {
	FFMPEGCommand string
	InputFormat   string
	InputDevice   string
	SampleRate    int
	Channels      int
}

type EncoderConfig struct {
	WorkletEnabled  bool
	PortBuffer      int
	MimeTypes       []string
	RecorderCommand string
}

type PlaybackConfig struct {
	AudioReply     bool
	Command        string
	SampleRate     int
	DecoderCommand string
	ThinkingCue    string
	CueCommand     string
}

type LoggingConfig struct {
	Level       string
	Development bool
	Stderr      bool
	File        string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

type MetricsConfig struct {
	Addr string
}

type DevServerConfig struct {
	Addr string
}

// Load reads an optional .env file and resolves configuration from environment
// variables and sensible defaults. Variables already set in the environment win over
// the file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	ffmpeg := envOrDefault("RECEPTIONIST_FFMPEG_COMMAND", "ffmpeg")
	cfg := Config{
		Server: ServerConfig{
			URL: firstNonEmpty(
				os.Getenv("RECEPTIONIST_SERVER_URL"),
				os.Getenv("VOICE_SERVER_URL"),
				"ws://127.0.0.1:8000/ws",
			),
			HandshakeTimeout: time.Duration(envOrDefaultInt("RECEPTIONIST_HANDSHAKE_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			FFMPEGCommand: ffmpeg,
			InputFormat:   envOrDefault("RECEPTIONIST_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:   envOrDefault("RECEPTIONIST_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:    envOrDefaultInt("RECEPTIONIST_CAPTURE_SAMPLE_RATE", 48000),
			Channels:      envOrDefaultInt("RECEPTIONIST_CHANNELS", 1),
		},
		Encoder: EncoderConfig{
			WorkletEnabled:  envOrDefaultBool("RECEPTIONIST_WORKLET_ENABLED", true),
			PortBuffer:      envOrDefaultInt("RECEPTIONIST_WORKLET_PORT_BUFFER", 256),
			MimeTypes:       envOrDefaultList("RECEPTIONIST_RECORDER_MIME_TYPES", []string{"audio/ogg;codecs=opus", "audio/webm;codecs=opus"}),
			RecorderCommand: envOrDefault("RECEPTIONIST_RECORDER_COMMAND", ffmpeg),
		},
		Playback: PlaybackConfig{
			AudioReply:     envOrDefaultBool("RECEPTIONIST_AUDIO_REPLY", true),
			Command:        envOrDefault("RECEPTIONIST_PLAYBACK_COMMAND", "aplay"),
			SampleRate:     envOrDefaultInt("RECEPTIONIST_PLAYBACK_SAMPLE_RATE", 24000),
			DecoderCommand: envOrDefault("RECEPTIONIST_DECODER_COMMAND", ffmpeg),
			ThinkingCue: firstExisting(
				os.Getenv("RECEPTIONIST_THINKING_CUE"),
				filepath.Join(home, ".config", "receptionist", "thinking.mp3"),
				filepath.Join("assets", "thinking.mp3"),
			),
			CueCommand: envOrDefault("RECEPTIONIST_CUE_COMMAND", "ffplay"),
		},
		Logging: LoggingConfig{
			Level:       envOrDefault("LOG_LEVEL", "info"),
			Development: envOrDefaultBool("LOG_DEVELOPMENT", false),
			Stderr:      envOrDefaultBool("LOG_STDERR", true),
			File:        strings.TrimSpace(os.Getenv("LOG_FILE")),
			MaxSizeMB:   envOrDefaultInt("LOG_MAX_SIZE_MB", 20),
			MaxBackups:  envOrDefaultInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays:  envOrDefaultInt("LOG_MAX_AGE_DAYS", 14),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(os.Getenv("RECEPTIONIST_METRICS_ADDR")),
		},
		DevServer: DevServerConfig{
			Addr: envOrDefault("RECEPTIONIST_DEVSERVER_ADDR", "127.0.0.1:8000"),
		},
	}

	if cfg.Server.HandshakeTimeout <= 0 {
		cfg.Server.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Audio.SampleRate < 16000 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Encoder.PortBuffer <= 0 {
		cfg.Encoder.PortBuffer = 256
	}
	if cfg.Playback.SampleRate <= 0 {
		cfg.Playback.SampleRate = 24000
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 20
	}

	return cfg, nil
}

// loadEnvFile loads RECEPTIONIST_ENV_FILE, or .env when present. An explicitly named
// file must exist.
func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv("RECEPTIONIST_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// firstExisting returns the first path that exists, or "" when none does.
func firstExisting(paths ...string) string {
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultList splits a comma separated value. Mime types carry their own
// semicolons, so only commas separate entries.
func envOrDefaultList(key string, fallback []string) []string {
	var values []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return append([]string(nil), fallback...)
	}
	return values
}
