package engine

import "time"

// Phase is where a run currently is.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseSubscribing Phase = "SUBSCRIBING"
	PhaseTracking    Phase = "TRACKING"
	PhaseSubmitting  Phase = "SUBMITTING"
	PhaseDone        Phase = "DONE"
)

// Outcome is what happened to one account.
type Outcome string

const (
	OutcomeSubmitted  Outcome = "SUBMITTED"
	OutcomeSkipped    Outcome = "SKIPPED"
	OutcomeFailed     Outcome = "FAILED"
	OutcomeNotReached Outcome = "NOT_REACHED" // kill or shutdown came first
)

// Status is the live view served to the control surface.
type Status struct {
	RunID     string    `json:"run_id"`
	Mode      string    `json:"mode"`
	Phase     Phase     `json:"phase"`
	Target    time.Time `json:"target"`
	Remaining string    `json:"remaining"`
	Override  string    `json:"override,omitempty"`
	Killed    bool      `json:"killed"`
	Accounts  int       `json:"accounts"`
	Keys      int       `json:"keys"`
	Submitted int       `json:"submitted"`
}

// AccountResult records one account's fate.
type AccountResult struct {
	Account      string  `json:"account"`
	Symbol       string  `json:"symbol"`
	Qty          int     `json:"qty"`
	Swing        float64 `json:"swing"`
	Direction    string  `json:"direction"`
	Side         string  `json:"side,omitempty"`
	Entry        float64 `json:"entry,omitempty"`
	ContractID   string  `json:"contract_id,omitempty"`
	FirstOrderID int64   `json:"first_order_id,omitempty"`
	Outcome      Outcome `json:"outcome"`
	Error        string  `json:"error,omitempty"`
}

// Report summarises a finished run.
type Report struct {
	RunID      string             `json:"run_id"`
	Mode       string             `json:"mode"`
	Target     time.Time          `json:"target"`
	Killed     bool               `json:"killed"`
	Override   string             `json:"override,omitempty"`
	Dropped    []string           `json:"dropped,omitempty"`
	Directions map[string]string  `json:"directions"`
	Prices     map[string]float64 `json:"prices"`
	Accounts   []AccountResult    `json:"accounts"`
}

// Count returns how many accounts ended with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, a := range r.Accounts {
		if a.Outcome == o {
			n++
		}
	}
	return n
}
