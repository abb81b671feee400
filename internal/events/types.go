package events

// Event enumerates the topics published during a run.
type Event string

const (
	EventRunStarted      Event = "run.started"
	EventRunFinished     Event = "run.finished"
	EventSwingTransition Event = "swing.transition"
	EventHeartbeat       Event = "swing.heartbeat"
	EventOverrideSet     Event = "control.override"
	EventKill            Event = "control.kill"
	EventAccountSkipped  Event = "account.skipped"
	EventOrderSubmitted  Event = "order.submitted"
	EventOrderRejected   Event = "order.rejected"
)

// All lists every topic, in publish order of a typical run.
var All = []Event{
	EventRunStarted,
	EventSwingTransition,
	EventHeartbeat,
	EventOverrideSet,
	EventKill,
	EventAccountSkipped,
	EventOrderSubmitted,
	EventOrderRejected,
	EventRunFinished,
}

// Envelope tags a payload with its topic for subscribers of several topics.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}
