package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNats struct {
	mu        sync.Mutex
	published []*nats.Msg
	handlers  map[string]nats.MsgHandler
	failSub   bool
}

func newFakeNats() *fakeNats {
	return &fakeNats{handlers: make(map[string]nats.MsgHandler)}
}

func (f *fakeNats) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, &nats.Msg{Subject: subj, Data: data})
	return nil
}

func (f *fakeNats) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if f.failSub {
		return nil, errors.New("no route")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subj] = cb
	return nil, nil
}

func (f *fakeNats) deliver(subj string, data []byte) {
	f.mu.Lock()
	cb := f.handlers[subj]
	f.mu.Unlock()
	cb(&nats.Msg{Subject: subj, Data: data})
}

type versionInfo struct {
	Version string `json:"version"`
}

func TestNatsRelay_Forward(t *testing.T) {
	bus := New()
	conn := newFakeNats()
	relay := newNatsRelay(bus, conn, WithSubjectPrefix("app"))

	relay.Forward("AppInfo.Version.Received")
	bus.Publish(context.Background(), "AppInfo.Version.Received", versionInfo{Version: "1.2"})
	bus.Publish(context.Background(), "Other", "ignored")

	require.Len(t, conn.published, 1)
	msg := conn.published[0]
	assert.Equal(t, "app.AppInfo.Version.Received", msg.Subject)

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, relay.origin, env.Origin)
	assert.Equal(t, "AppInfo.Version.Received", env.EventType)
	assert.JSONEq(t, `{"version":"1.2"}`, string(env.Payload))

	require.NoError(t, relay.Close())
	assert.False(t, bus.HasSubscribers("AppInfo.Version.Received"))
}

func TestNatsRelay_Ingest(t *testing.T) {
	bus := New()
	conn := newFakeNats()
	relay := newNatsRelay(bus, conn, WithDecoder("V", DecodeAs[versionInfo]()))
	relay.Forward("V")
	require.NoError(t, relay.Ingest("V", "Raw"))

	var got []any
	bus.SubscribeFunc("V", NewOwner("ui"), func(_ context.Context, msg any) { got = append(got, msg) })
	bus.SubscribeFunc("Raw", NewOwner("ui"), func(_ context.Context, msg any) { got = append(got, msg) })

	remote, _ := json.Marshal(envelope{Origin: "elsewhere", EventType: "V", Payload: json.RawMessage(`{"version":"9"}`)})
	conn.deliver("uibus.V", remote)

	raw, _ := json.Marshal(envelope{Origin: "elsewhere", EventType: "Raw", Payload: json.RawMessage(`[1,2]`)})
	conn.deliver("uibus.Raw", raw)

	own, _ := json.Marshal(envelope{Origin: relay.origin, EventType: "V", Payload: json.RawMessage(`{"version":"echo"}`)})
	conn.deliver("uibus.V", own)

	conn.deliver("uibus.V", []byte("not json"))

	require.Len(t, got, 2)
	assert.Equal(t, versionInfo{Version: "9"}, got[0])
	assert.JSONEq(t, `[1,2]`, string(got[1].(json.RawMessage)))

	// ingested events are not echoed back out
	assert.Empty(t, conn.published)
}

func TestNatsRelay_IngestKeepsSubjectEventType(t *testing.T) {
	bus := New()
	conn := newFakeNats()
	relay := newNatsRelay(bus, conn)
	require.NoError(t, relay.Ingest("AppInfo.Version.Received"))

	var signedOut, versions int
	bus.SubscribeFunc("GoogleAuth.SignedOut", NewOwner("session"), func(context.Context, any) { signedOut++ })
	bus.SubscribeFunc("AppInfo.Version.Received", NewOwner("ui"), func(context.Context, any) { versions++ })

	spoofed, _ := json.Marshal(envelope{Origin: "elsewhere", EventType: "GoogleAuth.SignedOut", Payload: json.RawMessage(`null`)})
	conn.deliver("uibus.AppInfo.Version.Received", spoofed)

	assert.Zero(t, signedOut)
	assert.Zero(t, versions)

	genuine, _ := json.Marshal(envelope{Origin: "elsewhere", EventType: "AppInfo.Version.Received", Payload: json.RawMessage(`{}`)})
	conn.deliver("uibus.AppInfo.Version.Received", genuine)
	assert.Equal(t, 1, versions)
}

func TestNatsRelay_IngestSubscribeError(t *testing.T) {
	conn := newFakeNats()
	conn.failSub = true
	relay := newNatsRelay(New(), conn)

	err := relay.Ingest("V")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uibus.V")
}

func TestNatsRelay_RoundTripWithServer(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skip("NATS not available for testing:", err)
	}
	defer nc.Close()

	local, remote := New(), New()
	out := NewNatsRelay(local, nc, WithSubjectPrefix("uibus-test"))
	in := NewNatsRelay(remote, nc, WithSubjectPrefix("uibus-test"), WithDecoder("V", DecodeAs[versionInfo]()))
	defer out.Close()
	defer in.Close()

	out.Forward("V")
	require.NoError(t, in.Ingest("V"))
	require.NoError(t, nc.Flush())

	received := make(chan any, 1)
	remote.SubscribeFunc("V", NewOwner("ui"), func(_ context.Context, msg any) { received <- msg })

	local.Publish(context.Background(), "V", versionInfo{Version: "3"})

	select {
	case msg := <-received:
		assert.Equal(t, versionInfo{Version: "3"}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("relayed event not received")
	}
}
