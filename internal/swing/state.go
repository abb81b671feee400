package swing

// State holds the rolling extremes of one key. After every Update
// Low <= Last <= High, and right after a flip Low == High == Last.
type State struct {
	Low       float64
	High      float64
	Last      float64
	Direction Direction
}

// NewState seeds a key with its first observed price.
func NewState(p float64) State {
	return State{Low: p, High: p, Last: p, Direction: None}
}

// Update applies price p. When the move from an extreme reaches threshold it
// reports the new direction together with the extreme before reset.
//
// Comparisons are exact; a move that misses the threshold by a float rounding
// error does not trigger.
func (s *State) Update(p, threshold float64) (flipped bool, from float64) {
	s.Last = p
	switch {
	case p-s.Low >= threshold:
		from = s.Low
		s.Direction = Up
		s.Low, s.High = p, p
		return true, from
	case p-s.High <= -threshold:
		from = s.High
		s.Direction = Down
		s.Low, s.High = p, p
		return true, from
	}
	if p < s.Low {
		s.Low = p
	}
	if p > s.High {
		s.High = p
	}
	return false, 0
}
