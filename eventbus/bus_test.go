package eventbus_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/httpx/httpxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type call struct {
	name    string
	payload any
}

type recorder struct {
	calls []call
}

func (r *recorder) handler(name string) eventbus.ReceiverFunc {
	return func(_ context.Context, msg any) {
		r.calls = append(r.calls, call{name: name, payload: msg})
	}
}

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := eventbus.New()
	rec := &recorder{}
	a := eventbus.NewOwner("a")
	b := eventbus.NewOwner("b")

	bus.Subscribe("X", a, rec.handler("h1"))
	bus.Subscribe("X", b, rec.handler("h2"))
	bus.Subscribe("Y", a, rec.handler("other"))

	bus.Publish(context.Background(), "X", 42)
	assert.Equal(t, []call{{"h1", 42}, {"h2", 42}}, rec.calls)

	rec.calls = nil
	bus.UnsubscribeAll(a)
	bus.Publish(context.Background(), "X", 7)
	assert.Equal(t, []call{{"h2", 7}}, rec.calls)
}

func TestBus_DuplicateSubscriptionFiresTwice(t *testing.T) {
	bus := eventbus.New()
	owner := eventbus.NewOwner("dup")

	count := 0
	h := eventbus.ReceiverFunc(func(context.Context, any) { count++ })
	bus.Subscribe("X", owner, h)
	bus.Subscribe("X", owner, h)

	bus.Publish(context.Background(), "X", nil)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, bus.Subscriptions("X"))
}

func TestBus_UnsubscribeAll(t *testing.T) {
	tests := []struct {
		name      string
		remove    string
		times     int
		wantTypes []string
		wantX     []string
	}{
		{"removes only the owner", "a", 1, []string{"X", "Z"}, []string{"b1", "b2"}},
		{"is idempotent", "a", 2, []string{"X", "Z"}, []string{"b1", "b2"}},
		{"unknown owner is a no-op", "nobody", 1, []string{"X", "Y", "Z"}, []string{"a1", "b1", "a2", "b2"}},
		{"drops emptied event types", "b", 1, []string{"X", "Y"}, []string{"a1", "a2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus := eventbus.New()
			rec := &recorder{}
			owners := map[string]*eventbus.Owner{
				"a":      eventbus.NewOwner("a"),
				"b":      eventbus.NewOwner("b"),
				"nobody": eventbus.NewOwner("nobody"),
			}

			bus.Subscribe("X", owners["a"], rec.handler("a1"))
			bus.Subscribe("X", owners["b"], rec.handler("b1"))
			bus.Subscribe("X", owners["a"], rec.handler("a2"))
			bus.Subscribe("X", owners["b"], rec.handler("b2"))
			bus.Subscribe("Y", owners["a"], rec.handler("y"))
			bus.Subscribe("Z", owners["b"], rec.handler("z"))

			for i := 0; i < tc.times; i++ {
				bus.UnsubscribeAll(owners[tc.remove])
			}

			assert.Equal(t, tc.wantTypes, bus.EventTypes())

			bus.Publish(context.Background(), "X", nil)
			var got []string
			for _, c := range rec.calls {
				got = append(got, c.name)
			}
			assert.Equal(t, tc.wantX, got)
		})
	}
}

func TestBus_OwnersComparedByIdentity(t *testing.T) {
	bus := eventbus.New()
	first := eventbus.NewOwner("same")
	second := eventbus.NewOwner("same")

	var got []string
	bus.SubscribeFunc("X", first, func(context.Context, any) { got = append(got, "first") })
	bus.SubscribeFunc("X", second, func(context.Context, any) { got = append(got, "second") })

	bus.UnsubscribeAll(first)
	bus.Publish(context.Background(), "X", nil)

	assert.Equal(t, []string{"second"}, got)
}

func TestBus_HandlerSeesItsOwner(t *testing.T) {
	bus := eventbus.New()
	owner := eventbus.NewOwner("me")

	var seen *eventbus.Owner
	bus.SubscribeFunc("X", owner, func(ctx context.Context, _ any) {
		seen, _ = eventbus.OwnerFromContext(ctx)
	})
	bus.Publish(context.Background(), "X", nil)

	assert.Same(t, owner, seen)
}

func TestBus_LastUnsubscribeYieldsUndelivered(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := prometheus.NewRegistry()
	bus := eventbus.New(
		eventbus.WithLogger(zap.New(core)),
		eventbus.WithMetrics(eventbus.NewMetrics(reg)),
	)
	owner := eventbus.NewOwner("only")

	bus.SubscribeFunc("X", owner, func(context.Context, any) {})
	bus.Publish(context.Background(), "X", "live")
	bus.UnsubscribeAll(owner)

	assert.False(t, bus.HasSubscribers("X"))
	assert.Empty(t, bus.EventTypes())

	bus.Publish(context.Background(), "X", "gone")

	dead := logs.FilterMessage("X (dead)").All()
	require.Len(t, dead, 1)
	assert.Equal(t, "gone", dead[0].ContextMap()["payload"])
	assert.Equal(t, false, dead[0].ContextMap()["delivered"])

	live := logs.FilterMessage("X").All()
	require.Len(t, live, 1)
	assert.Equal(t, "live", live[0].ContextMap()["payload"])

	httpxtest.AssertMetricValueWithLabels(t, reg, "eventbus_publishes_total",
		map[string]string{"event_type": "X", "delivered": "false"}, 1)
	httpxtest.AssertMetricValueWithLabels(t, reg, "eventbus_publishes_total",
		map[string]string{"event_type": "X", "delivered": "true"}, 1)
	httpxtest.AssertMetricValueWithLabels(t, reg, "eventbus_subscriptions", nil, 0)
}

func TestBus_SelfUnsubscribeDuringDispatch(t *testing.T) {
	bus := eventbus.New()
	a := eventbus.NewOwner("a")
	b := eventbus.NewOwner("b")
	c := eventbus.NewOwner("c")

	var got []string
	bus.SubscribeFunc("X", a, func(context.Context, any) {
		got = append(got, "a")
		bus.UnsubscribeAll(a)
		bus.UnsubscribeAll(b)
	})
	bus.SubscribeFunc("X", b, func(context.Context, any) { got = append(got, "b") })
	bus.SubscribeFunc("X", c, func(context.Context, any) { got = append(got, "c") })

	bus.Publish(context.Background(), "X", nil)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got = nil
	bus.Publish(context.Background(), "X", nil)
	assert.Equal(t, []string{"c"}, got)
}

func TestBus_SubscribeDuringDispatchAffectsNextPublishOnly(t *testing.T) {
	bus := eventbus.New()
	owner := eventbus.NewOwner("o")

	late := 0
	bus.SubscribeFunc("X", owner, func(context.Context, any) {
		bus.SubscribeFunc("X", owner, func(context.Context, any) { late++ })
	})

	bus.Publish(context.Background(), "X", nil)
	assert.Equal(t, 0, late)

	bus.Publish(context.Background(), "X", nil)
	assert.Equal(t, 1, late)
}

func TestBus_ReentrantPublish(t *testing.T) {
	bus := eventbus.New()
	owner := eventbus.NewOwner("o")

	var got []string
	bus.SubscribeFunc("outer", owner, func(ctx context.Context, _ any) {
		got = append(got, "outer")
		bus.Publish(ctx, "inner", nil)
		got = append(got, "outer-done")
	})
	bus.SubscribeFunc("inner", owner, func(context.Context, any) { got = append(got, "inner") })

	bus.Publish(context.Background(), "outer", nil)
	assert.Equal(t, []string{"outer", "inner", "outer-done"}, got)
}

func TestBus_HandlerPanicPropagatesByDefault(t *testing.T) {
	bus := eventbus.New()
	owner := eventbus.NewOwner("o")

	ran := false
	bus.SubscribeFunc("X", owner, func(context.Context, any) { panic("boom") })
	bus.SubscribeFunc("X", owner, func(context.Context, any) { ran = true })

	assert.PanicsWithValue(t, "boom", func() {
		bus.Publish(context.Background(), "X", nil)
	})
	assert.False(t, ran)

	// the registry is still usable afterwards
	assert.Equal(t, 2, bus.Subscriptions("X"))
}

func TestBus_WithRecoverContinuesDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	core, logs := observer.New(zap.ErrorLevel)
	bus := eventbus.New(
		eventbus.WithRecover(),
		eventbus.WithLogger(zap.New(core)),
		eventbus.WithMetrics(eventbus.NewMetrics(reg)),
	)
	owner := eventbus.NewOwner("o")

	ran := false
	bus.SubscribeFunc("X", owner, func(context.Context, any) { panic("boom") })
	bus.SubscribeFunc("X", owner, func(context.Context, any) { ran = true })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), "X", nil)
	})
	assert.True(t, ran)
	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
	httpxtest.AssertMetricValueWithLabels(t, reg, "eventbus_handler_panics_total",
		map[string]string{"event_type": "X"}, 1)
}

func TestBus_NilHandlerIgnored(t *testing.T) {
	bus := eventbus.New()
	bus.Subscribe("X", eventbus.NewOwner("o"), nil)
	bus.SubscribeFunc("X", eventbus.NewOwner("o"), nil)

	assert.False(t, bus.HasSubscribers("X"))
}
