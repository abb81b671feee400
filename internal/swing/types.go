// Package swing tracks rolling price extremes per (symbol, threshold) pair and
// flags a direction whenever price moves the threshold away from an extreme.
package swing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction is the last swing seen for a key.
type Direction int

const (
	None Direction = iota
	Up
	Down
)

var ErrInvalidDirection = errors.New("direction must be UP or DOWN")

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "NONE"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDirection accepts UP or DOWN in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP":
		return Up, nil
	case "DOWN":
		return Down, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// ComboKey identifies one market-data stream and one swing state. Accounts
// trading the same symbol with the same threshold share a key.
type ComboKey struct {
	Symbol    string
	Threshold float64
}

func (k ComboKey) String() string {
	return fmt.Sprintf("%s@%g", k.Symbol, k.Threshold)
}

// Transition is emitted when a key flips direction. From is the extreme the
// move was measured against, captured before the reset.
type Transition struct {
	Key       ComboKey
	Direction Direction
	From      float64
	To        float64
	At        time.Time
}

// Snapshot is a heartbeat view of one key.
type Snapshot struct {
	Key       ComboKey
	Price     float64
	Low       float64
	High      float64
	Direction Direction
	At        time.Time
}

// Result is what the tracker hands back once its loop ends.
type Result struct {
	Directions map[ComboKey]Direction
	Prices     map[ComboKey]float64
}
