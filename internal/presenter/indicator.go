package presenter

import "github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"

// Indicator describes how a status dot is drawn in any front end.
type Indicator struct {
	State domain.StatusState `json:"state"`
	Label string             `json:"label"`
	Class string             `json:"class"`
	Color string             `json:"color"`
}

type palette struct {
	class string
	color string
}

var gray = palette{class: "bg-gray-400", color: "#9CA3AF"}

var palettes = map[domain.StatusState]palette{
	domain.StatusWaitingPermission: {class: "bg-yellow-400", color: "#FACC15"},
	domain.StatusConnecting:        {class: "bg-blue-400", color: "#60A5FA"},
	domain.StatusListening:         {class: "bg-green-500", color: "#22C55E"},
	domain.StatusThinking:          {class: "bg-purple-400", color: "#C084FC"},
	domain.StatusSpeaking:          {class: "bg-indigo-500", color: "#6366F1"},
	domain.StatusMuted:             gray,
	domain.StatusError:             {class: "bg-red-500", color: "#EF4444"},
	domain.StatusEnded:             gray,
}

// For returns the indicator for a status. Unknown states render gray.
func For(status domain.Status) Indicator {
	p, ok := palettes[status.State]
	if !ok {
		p = gray
	}
	label := status.Message
	if label == "" {
		label = defaultLabel(status.State)
	}
	return Indicator{
		State: status.State,
		Label: label,
		Class: "inline-flex h-3 w-3 rounded-full " + p.class,
		Color: p.color,
	}
}

func defaultLabel(state domain.StatusState) string {
	switch state {
	case domain.StatusIdle, "":
		return "Ready"
	case domain.StatusWaitingPermission:
		return "Waiting for microphone"
	case domain.StatusConnecting:
		return "Connecting"
	case domain.StatusListening:
		return "Listening"
	case domain.StatusThinking:
		return "Thinking"
	case domain.StatusSpeaking:
		return "Speaking"
	case domain.StatusMuted:
		return "Muted"
	case domain.StatusError:
		return "Error"
	case domain.StatusEnded:
		return "Conversation ended"
	default:
		return string(state)
	}
}
