package transport

import (
	"encoding/json"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/metrics"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/ports"
)

// pumpFrames sends every produced frame while the connection is open and drops it
// otherwise. It returns when the producer closes its frame channel.
func pumpFrames(
	producer ports.FrameProducer,
	conn ports.Connection,
	mode domain.EncodingMode,
	m *metrics.Metrics,
	done chan struct{},
) {
	defer close(done)

	for frame := range producer.Frames() {
		if conn.State() != domain.ConnOpen {
			m.FrameDropped()
			continue
		}
		if err := conn.SendBinary(frame); err != nil {
			m.FrameDropped()
			continue
		}
		m.FrameSent(mode)
	}
}

// forwardInbound hands server messages to handle in arrival order.
func forwardInbound(conn ports.Connection, handle func(domain.InboundMessage), done chan struct{}) {
	defer close(done)

	for msg := range conn.Messages() {
		handle(msg)
	}
}

func decodeControl(payload []byte) (domain.ControlEvent, bool) {
	var event domain.ControlEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.ControlEvent{}, false
	}
	return event, event.Known()
}
