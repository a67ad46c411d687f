package domain

import "time"

// Wire format of the preferred capture path.
const (
	TargetSampleRate = 16000
	FrameSamples     = 320
	FrameBytes       = FrameSamples * 2
	FrameDuration    = 20 * time.Millisecond
)

// StatusState is the user-visible conversation state.
type StatusState string

const (
	StatusIdle              StatusState = "idle"
	StatusWaitingPermission StatusState = "waiting-for-permission"
	StatusConnecting        StatusState = "connecting"
	StatusListening         StatusState = "listening"
	StatusThinking          StatusState = "thinking"
	StatusSpeaking          StatusState = "speaking"
	StatusMuted             StatusState = "muted"
	StatusError             StatusState = "error"
	StatusEnded             StatusState = "ended"
)

// Status summarizes the current session for status indicators.
type Status struct {
	State     StatusState  `json:"state"`
	Message   string       `json:"message,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Muted     bool         `json:"muted"`
	Active    bool         `json:"active"`
	Mode      EncodingMode `json:"mode,omitempty"`
	StartedAt time.Time    `json:"startedAt,omitempty"`
}

// EncodingMode identifies how outbound audio is encoded for one connection.
type EncodingMode string

const (
	EncodingWorkletPCM        EncodingMode = "worklet-pcm"
	EncodingFallbackContainer EncodingMode = "fallback-container"
)

// ConnState mirrors the lifecycle of the duplex connection.
type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosing    ConnState = "closing"
	ConnClosed     ConnState = "closed"
)

// MessageKind distinguishes inbound textual control messages from binary audio.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageBinary MessageKind = "binary"
)

// InboundMessage is one server-to-client message.
type InboundMessage struct {
	Kind    MessageKind
	Payload []byte
}

// ControlAction names a server-driven event.
type ControlAction string

const (
	ActionPlayThinkingAudio ControlAction = "play_thinking_audio"
	ActionEndOfAIAudio      ControlAction = "end_of_ai_audio"
)

// ControlEvent is the textual payload sent by the voice service. Fields other than
// action are ignored.
type ControlEvent struct {
	Action ControlAction `json:"action"`
}

// Known reports whether the action is one the client reacts to.
func (e ControlEvent) Known() bool {
	switch e.Action {
	case ActionPlayThinkingAudio, ActionEndOfAIAudio:
		return true
	default:
		return false
	}
}
