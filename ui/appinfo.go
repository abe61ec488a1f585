package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/seb7887/uibus/eventbus"
	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/inflight"
	"go.uber.org/zap"
)

const (
	VersionPath = "/_api/info/version"

	DefaultPollInterval = time.Minute
)

// AppInfoPoller fetches the application version periodically and publishes
// the outcome: EventVersionReceived with a VersionInfo, or EventVersionError
// with an AjaxError.
type AppInfoPoller struct {
	bus      Bus
	owner    *eventbus.Owner
	registry *inflight.Registry
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
	ongoing bool
	timer   *time.Timer
}

// NewAppInfoPoller polls every interval, DefaultPollInterval when not positive.
func NewAppInfoPoller(bus Bus, issuer inflight.Issuer, creds inflight.CredentialSource, interval time.Duration, opts ...Option) *AppInfoPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	o := newOptions(opts)
	owner := eventbus.NewOwner("app-info")

	return &AppInfoPoller{
		bus:      bus,
		owner:    owner,
		registry: inflight.New(owner, issuer, creds, o.registryOptions()...),
		interval: interval,
		logger:   o.logger.Named("appinfo"),
	}
}

// Init schedules the first poll right away.
func (p *AppInfoPoller) Init(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctx = ctx
	p.running = true
	p.rescheduleLocked(0)
}

// Refresh polls now unless a poll is in flight or the poller is stopped.
func (p *AppInfoPoller) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ongoing && p.running {
		p.rescheduleLocked(0)
	}
}

// Destroy stops polling and aborts the request in flight, if any.
func (p *AppInfoPoller) Destroy() {
	p.bus.UnsubscribeAll(p.owner)

	p.mu.Lock()
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	p.registry.Abort()
}

func (p *AppInfoPoller) Owner() *eventbus.Owner {
	return p.owner
}

func (p *AppInfoPoller) rescheduleLocked(delay time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(delay, p.poll)
}

func (p *AppInfoPoller) poll() {
	p.mu.Lock()
	if !p.running || p.ongoing {
		p.mu.Unlock()
		return
	}
	p.ongoing = true
	ctx := p.ctx
	p.mu.Unlock()

	err := p.registry.Begin(ctx, &inflight.Request{
		Method:  http.MethodGet,
		Target:  VersionPath,
		Headers: httpx.Headers{"Accept": "application/json"},
		Success: func(res *httpx.Result) {
			if !p.isRunning() {
				return
			}
			var info VersionInfo
			if err := json.Unmarshal(res.Body, &info); err != nil {
				p.logger.Warn("undecodable version info", zap.Error(err))
				p.bus.Publish(ctx, EventVersionError, AjaxError{
					Status:     httpx.StatusError,
					StatusCode: res.StatusCode,
					Message:    err.Error(),
				})
				return
			}
			p.bus.Publish(ctx, EventVersionReceived, info)
		},
		Error: func(res *httpx.Result) {
			if res.Status == httpx.StatusAbort || !p.isRunning() {
				return
			}
			p.bus.Publish(ctx, EventVersionError, ajaxError(res))
		},
		Complete: []httpx.ResultFunc{p.completed},
	})
	if err != nil {
		p.logger.Error("cannot poll version", zap.Error(err))
		p.completed(nil)
	}
}

func (p *AppInfoPoller) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AppInfoPoller) completed(*httpx.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ongoing = false
	if p.running {
		p.rescheduleLocked(p.interval)
	}
}
