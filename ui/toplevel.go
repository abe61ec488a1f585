package ui

import (
	"context"
	"sync"

	"github.com/seb7887/uibus/eventbus"
	"go.uber.org/zap"
)

// TopLevel keeps the state the root view renders from. It only changes in
// response to bus events.
type TopLevel struct {
	bus    Bus
	owner  *eventbus.Owner
	logger *zap.Logger

	mu          sync.Mutex
	googleUser  *GoogleUser
	adminUser   *AdminUser
	versionInfo *VersionInfo
	versionErr  *AjaxError
	onRender    func(string)
}

// NewTopLevel calls onRender, when not nil, with the new rendering after every
// state change that alters it.
func NewTopLevel(bus Bus, onRender func(view string), opts ...Option) *TopLevel {
	o := newOptions(opts)
	return &TopLevel{
		bus:      bus,
		owner:    eventbus.NewOwner("top-level"),
		logger:   o.logger.Named("toplevel"),
		onRender: onRender,
	}
}

func (t *TopLevel) Mount() {
	t.bus.Subscribe(EventSignedIn, t.owner, eventbus.ReceiverFunc(t.signedIn))
	t.bus.Subscribe(EventSignedOut, t.owner, eventbus.ReceiverFunc(t.signedOut))
	t.bus.Subscribe(EventTokenExchanged, t.owner, eventbus.ReceiverFunc(t.tokenExchanged))
	t.bus.Subscribe(EventVersionReceived, t.owner, eventbus.ReceiverFunc(t.versionReceived))
	t.bus.Subscribe(EventVersionError, t.owner, eventbus.ReceiverFunc(t.versionError))
}

func (t *TopLevel) Unmount() {
	t.bus.UnsubscribeAll(t.owner)
}

func (t *TopLevel) Owner() *eventbus.Owner {
	return t.owner
}

// Render describes the current version state. It is empty until a version
// poll has settled.
func (t *TopLevel) Render() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renderLocked()
}

func (t *TopLevel) renderLocked() string {
	switch {
	case t.versionErr != nil:
		return "App version unavailable"
	case t.versionInfo == nil:
		return ""
	case t.versionInfo.Version != "":
		return "App version is " + t.versionInfo.Version
	default:
		return "App is unversioned"
	}
}

func (t *TopLevel) GoogleUser() (GoogleUser, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.googleUser == nil {
		return GoogleUser{}, false
	}
	return *t.googleUser, true
}

func (t *TopLevel) AdminUser() (AdminUser, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.adminUser == nil {
		return AdminUser{}, false
	}
	return *t.adminUser, true
}

// update applies fn under the lock and reports a changed rendering.
func (t *TopLevel) update(fn func()) {
	t.mu.Lock()
	before := t.renderLocked()
	fn()
	after := t.renderLocked()
	t.mu.Unlock()

	if before != after && t.onRender != nil {
		t.onRender(after)
	}
}

func (t *TopLevel) signedIn(_ context.Context, msg any) {
	user, ok := payloadAs[GoogleUser](msg)
	if !ok {
		t.logger.Warn("unexpected payload", zap.String("event_type", EventSignedIn), zap.Any("payload", msg))
		return
	}
	t.update(func() { t.googleUser = &user })
}

func (t *TopLevel) signedOut(context.Context, any) {
	t.update(func() {
		t.googleUser = nil
		t.adminUser = nil
	})
}

func (t *TopLevel) tokenExchanged(_ context.Context, msg any) {
	admin, ok := payloadAs[AdminUser](msg)
	if !ok {
		t.logger.Warn("unexpected payload", zap.String("event_type", EventTokenExchanged), zap.Any("payload", msg))
		return
	}
	t.update(func() { t.adminUser = &admin })
}

func (t *TopLevel) versionReceived(_ context.Context, msg any) {
	info, ok := payloadAs[VersionInfo](msg)
	if !ok {
		t.logger.Warn("unexpected payload", zap.String("event_type", EventVersionReceived), zap.Any("payload", msg))
		return
	}
	t.update(func() {
		t.versionInfo = &info
		t.versionErr = nil
	})
}

func (t *TopLevel) versionError(_ context.Context, msg any) {
	e, _ := payloadAs[AjaxError](msg)
	t.update(func() { t.versionErr = &e })
}
