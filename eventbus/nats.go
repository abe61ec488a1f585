package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/seb7887/uibus/idgen"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const _defaultSubjectPrefix = "uibus"

// natsConn is the part of *nats.Conn the relay uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Decoder turns a relayed JSON payload back into the value local handlers expect.
type Decoder func(data []byte) (any, error)

// DecodeAs returns a Decoder producing a T.
func DecodeAs[T any]() Decoder {
	return func(data []byte) (any, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

type envelope struct {
	Origin    string          `json:"origin"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type relayedKey struct{}

// NatsRelay mirrors selected event types between a local Bus and NATS
// subjects named <prefix>.<eventType>. Events it ingests are not forwarded
// back out, and it ignores its own messages.
type NatsRelay struct {
	bus      *Bus
	conn     natsConn
	owner    *Owner
	origin   string
	prefix   string
	decoders map[string]Decoder
	logger   *zap.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

type RelayOption func(*NatsRelay)

func WithSubjectPrefix(prefix string) RelayOption {
	return func(r *NatsRelay) {
		r.prefix = prefix
	}
}

// WithDecoder registers how to decode payloads ingested for eventType.
// Without one, handlers receive a json.RawMessage.
func WithDecoder(eventType string, d Decoder) RelayOption {
	return func(r *NatsRelay) {
		r.decoders[eventType] = d
	}
}

func WithRelayLogger(l *zap.Logger) RelayOption {
	return func(r *NatsRelay) {
		if l != nil {
			r.logger = l.Named("natsrelay")
		}
	}
}

// NewNatsRelay creates a relay between bus and an established NATS connection.
func NewNatsRelay(bus *Bus, conn *nats.Conn, opts ...RelayOption) *NatsRelay {
	return newNatsRelay(bus, conn, opts...)
}

func newNatsRelay(bus *Bus, conn natsConn, opts ...RelayOption) *NatsRelay {
	r := &NatsRelay{
		bus:      bus,
		conn:     conn,
		owner:    NewOwner("natsrelay"),
		origin:   idgen.NewUUID(),
		prefix:   _defaultSubjectPrefix,
		decoders: make(map[string]Decoder),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConnectNats dials url and returns a relay owning the connection.
func ConnectNats(bus *Bus, url string, opts ...RelayOption) (*NatsRelay, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("uibus-relay"))
	if err != nil {
		return nil, nil, fmt.Errorf("eventbus: connect nats: %w", err)
	}
	return NewNatsRelay(bus, nc, opts...), nc, nil
}

func (r *NatsRelay) subject(eventType string) string {
	return r.prefix + "." + eventType
}

// Forward publishes every local event of the given types to NATS.
func (r *NatsRelay) Forward(eventTypes ...string) {
	for _, eventType := range eventTypes {
		eventType := eventType
		r.bus.SubscribeFunc(eventType, r.owner, func(ctx context.Context, msg any) {
			if ctx.Value(relayedKey{}) != nil {
				return
			}
			if err := r.send(eventType, msg); err != nil {
				r.logger.Warn("forward failed",
					zap.String("event_type", eventType),
					zap.Error(err),
				)
			}
		})
	}
}

func (r *NatsRelay) send(eventType string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	data, err := json.Marshal(envelope{
		Origin:    r.origin,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return r.conn.Publish(r.subject(eventType), data)
}

// Ingest subscribes to the NATS subjects of the given types and republishes
// their messages on the local bus.
func (r *NatsRelay) Ingest(eventTypes ...string) error {
	for _, eventType := range eventTypes {
		eventType := eventType
		sub, err := r.conn.Subscribe(r.subject(eventType), func(m *nats.Msg) {
			r.receive(eventType, m)
		})
		if err != nil {
			return fmt.Errorf("eventbus: subscribe %s: %w", r.subject(eventType), err)
		}
		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()
	}
	return nil
}

// receive republishes m under the event type its subject was subscribed
// for. Envelopes naming another event type are dropped.
func (r *NatsRelay) receive(eventType string, m *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		r.logger.Warn("dropping undecodable message",
			zap.String("subject", m.Subject),
			zap.Error(err),
		)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.EventType != eventType {
		r.logger.Warn("dropping message for another event type",
			zap.String("subject", m.Subject),
			zap.String("event_type", env.EventType),
		)
		return
	}

	var payload any = env.Payload
	if d, ok := r.decoders[eventType]; ok {
		v, err := d(env.Payload)
		if err != nil {
			r.logger.Warn("dropping undecodable payload",
				zap.String("event_type", eventType),
				zap.Error(err),
			)
			return
		}
		payload = v
	}

	ctx := context.WithValue(context.Background(), relayedKey{}, env.Origin)
	r.bus.Publish(ctx, eventType, payload)
}

// Close drops the relay's local subscriptions and its NATS subscriptions.
// The NATS connection itself is left to the caller.
func (r *NatsRelay) Close() error {
	r.bus.UnsubscribeAll(r.owner)

	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	var err error
	for _, s := range subs {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Unsubscribe())
	}
	return err
}
