package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"swing-trigger/internal/events"
	"swing-trigger/internal/swing"
)

// DefaultChannel is the pub/sub channel remote operators publish on.
const DefaultChannel = "swing:control"

// Remote signal types.
const (
	SignalOverride = "OVERRIDE"
	SignalKill     = "KILL"
	SignalCancel   = "CANCEL" // same as KILL
)

var ErrUnknownSignal = errors.New("unknown control signal")

// Message is the wire format on the control channel.
type Message struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
	From      string `json:"from,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Relay applies control messages from a Redis channel to the run's signals,
// so an operator on another host can steer the run.
type Relay struct {
	client  *redis.Client
	channel string
	signals *Signals
	bus     *events.Bus // optional
	log     zerolog.Logger
}

// NewRelay creates a relay on channel, DefaultChannel when empty.
func NewRelay(client *redis.Client, channel string, signals *Signals, bus *events.Bus, log zerolog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, signals: signals, bus: bus, log: log}
}

// Run subscribes and applies messages until ctx ends. Malformed messages are
// logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Msg("control relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("control channel closed")
			}
			if err := r.Apply([]byte(msg.Payload)); err != nil {
				r.log.Warn().Err(err).Str("payload", msg.Payload).Msg("control message ignored")
			}
		}
	}
}

// Apply decodes one message and sets the matching signal.
func (r *Relay) Apply(payload []byte) error {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return fmt.Errorf("decode control message: %w", err)
	}
	operator := "remote"
	if m.From != "" {
		operator = "remote:" + m.From
	}

	switch strings.ToUpper(strings.TrimSpace(m.Type)) {
	case SignalOverride:
		dir, err := swing.ParseDirection(m.Direction)
		if err != nil {
			return err
		}
		if err := r.signals.Override.Set(dir); err != nil {
			return err
		}
		r.log.Warn().Str("direction", dir.String()).Str("operator", operator).Msg("override set")
		r.publish(events.EventOverrideSet, map[string]string{"direction": dir.String(), "operator": operator})
	case SignalKill, SignalCancel:
		if r.signals.Kill.Kill() {
			r.log.Warn().Str("operator", operator).Msg("kill requested")
			r.publish(events.EventKill, map[string]string{"operator": operator})
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, m.Type)
	}
	return nil
}

func (r *Relay) publish(e events.Event, payload any) {
	if r.bus != nil {
		r.bus.Publish(e, payload)
	}
}

// Send publishes m on channel, DefaultChannel when empty.
func Send(ctx context.Context, client *redis.Client, channel string, m Message) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}
