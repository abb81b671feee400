package control

import (
	"errors"
	"testing"

	"swing-trigger/internal/events"
	"swing-trigger/internal/logging"
	"swing-trigger/internal/swing"
)

func TestRelayApply(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantErr  error
		wantDir  swing.Direction
		wantKill bool
	}{
		{"override up", `{"type":"OVERRIDE","direction":"UP","from":"desk"}`, nil, swing.Up, false},
		{"override lower case", `{"type":"override","direction":"down"}`, nil, swing.Down, false},
		{"kill", `{"type":"KILL"}`, nil, swing.None, true},
		{"cancel kills", `{"type":"CANCEL"}`, nil, swing.None, true},
		{"bad direction", `{"type":"OVERRIDE","direction":"FLAT"}`, swing.ErrInvalidDirection, swing.None, false},
		{"unknown type", `{"type":"PAUSE"}`, ErrUnknownSignal, swing.None, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := NewSignals()
			r := NewRelay(nil, "", signals, nil, logging.Nop())
			err := r.Apply([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Apply err=%v, expected %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			dir, _ := signals.Override.Get()
			if dir != tt.wantDir {
				t.Fatalf("override=%v, expected %v", dir, tt.wantDir)
			}
			if signals.Kill.Killed() != tt.wantKill {
				t.Fatalf("killed=%v, expected %v", signals.Kill.Killed(), tt.wantKill)
			}
		})
	}
}

func TestRelayApplyMalformed(t *testing.T) {
	r := NewRelay(nil, "", NewSignals(), nil, logging.Nop())
	if err := r.Apply([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRelayPublishesOnce(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventKill, 4)
	defer unsub()

	r := NewRelay(nil, "", NewSignals(), bus, logging.Nop())
	for i := 0; i < 3; i++ {
		if err := r.Apply([]byte(`{"type":"KILL","from":"ops"}`)); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := len(ch); got != 1 {
		t.Fatalf("expected one kill event, got %d", got)
	}
}
