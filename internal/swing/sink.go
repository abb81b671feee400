package swing

import (
	"github.com/rs/zerolog"

	"swing-trigger/internal/events"
)

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Transition(Transition) {}
func (NopSink) Snapshot([]Snapshot)   {}

// LogSink writes transitions and heartbeats as structured log lines and fans
// them out on the event bus when one is set.
type LogSink struct {
	Log zerolog.Logger
	Bus *events.Bus
}

func (s LogSink) Transition(tr Transition) {
	s.Log.Info().
		Str("symbol", tr.Key.Symbol).
		Float64("threshold", tr.Key.Threshold).
		Float64("from", tr.From).
		Float64("to", tr.To).
		Str("direction", tr.Direction.String()).
		Msg("swing")
	if s.Bus != nil {
		s.Bus.Publish(events.EventSwingTransition, tr)
	}
}

func (s LogSink) Snapshot(snaps []Snapshot) {
	for _, sn := range snaps {
		s.Log.Info().
			Str("symbol", sn.Key.Symbol).
			Float64("price", sn.Price).
			Float64("low", sn.Low).
			Float64("high", sn.High).
			Float64("threshold", sn.Key.Threshold).
			Str("direction", sn.Direction.String()).
			Msg("heartbeat")
	}
	if s.Bus != nil {
		s.Bus.Publish(events.EventHeartbeat, snaps)
	}
}
