// Package browser talks to a Chromium browser over the DevTools protocol. It
// answers tab and window queries, activates tabs, and turns target lifecycle
// notifications into tab events.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/jonboulle/clockwork"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	eventBufSize        = 64
)

// Client implements types.TabSurface against one browser.
type Client struct {
	cdp      *cdpConn
	registry *Registry
	clock    clockwork.Clock
	poll     time.Duration
}

var _ types.TabSurface = (*Client)(nil)

type Option func(*Client)

// WithPollInterval sets how often /json/list is polled for activations.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

func WithClock(clock clockwork.Clock) Option { return func(c *Client) { c.clock = clock } }

// NewClient returns a client for the DevTools HTTP endpoint at httpBase,
// e.g. "http://127.0.0.1:9222". Connect must be called before use.
func NewClient(httpBase string, opts ...Option) *Client {
	c := &Client{
		cdp:      newCDPConn(httpBase),
		registry: NewRegistry(),
		clock:    clockwork.NewRealClock(),
		poll:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.cdp.connect(ctx); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "connect to browser", err)
	}
	return nil
}

func (c *Client) Close() {
	c.cdp.close()
}

func (c *Client) Registry() *Registry { return c.registry }

// GetTab returns the current snapshot of a tab.
func (c *Client) GetTab(ctx context.Context, id int64) (types.Tab, error) {
	targetID, ok := c.registry.Lookup(id)
	if !ok {
		return types.Tab{}, types.NewError(types.CodeTabNotFound, fmt.Sprintf("tab %d", id), nil)
	}

	var info struct {
		TargetInfo target.Info `json:"targetInfo"`
	}
	err := c.cdp.call(ctx, "Target.getTargetInfo", map[string]any{"targetId": targetID}, &info)
	if err != nil {
		return types.Tab{}, classify(err, types.CodeTabNotFound, fmt.Sprintf("tab %d", id))
	}

	var win struct {
		WindowID cdpbrowser.WindowID `json:"windowId"`
	}
	err = c.cdp.call(ctx, "Browser.getWindowForTarget", map[string]any{"targetId": targetID}, &win)
	if err != nil {
		return types.Tab{}, classify(err, types.CodeTabNotFound, fmt.Sprintf("window of tab %d", id))
	}

	return types.Tab{
		ID:       id,
		WindowID: int64(win.WindowID),
		Title:    info.TargetInfo.Title,
		URL:      info.TargetInfo.URL,
	}, nil
}

// ActivateTab makes the tab the active tab of its window.
func (c *Client) ActivateTab(ctx context.Context, id int64) error {
	targetID, ok := c.registry.Lookup(id)
	if !ok {
		return types.NewError(types.CodeTabNotFound, fmt.Sprintf("tab %d", id), nil)
	}
	if err := c.cdp.call(ctx, "Target.activateTarget", map[string]any{"targetId": targetID}, nil); err != nil {
		return classify(err, types.CodeTabNotFound, fmt.Sprintf("activate tab %d", id))
	}
	return nil
}

// FocusWindow brings a window back from the minimized state. Chromium raises
// the window of an activated target itself.
func (c *Client) FocusWindow(ctx context.Context, windowID int64) error {
	var resp struct {
		Bounds cdpbrowser.Bounds `json:"bounds"`
	}
	err := c.cdp.call(ctx, "Browser.getWindowBounds", map[string]any{"windowId": windowID}, &resp)
	if err != nil {
		return classify(err, types.CodeWindowNotFound, fmt.Sprintf("window %d", windowID))
	}
	if resp.Bounds.WindowState != cdpbrowser.WindowStateMinimized {
		return nil
	}

	params := map[string]any{
		"windowId": windowID,
		"bounds":   map[string]any{"windowState": cdpbrowser.WindowStateNormal},
	}
	if err := c.cdp.call(ctx, "Browser.setWindowBounds", params, nil); err != nil {
		return classify(err, types.CodeWindowNotFound, fmt.Sprintf("restore window %d", windowID))
	}
	return nil
}

// Watch streams tab events until ctx ends or the browser connection is
// lost; the channel is closed either way. Removals and page info changes
// come from target discovery; activations are detected by polling the
// target list, whose first page is the most recently activated one.
// CDP reports no load status for targets, so every page info change is
// delivered as a completed update.
func (c *Client) Watch(ctx context.Context) (<-chan types.TabEvent, error) {
	w := &watcher{ctx: ctx, out: make(chan types.TabEvent, eventBufSize)}

	offDestroyed := c.cdp.on("Target.targetDestroyed", func(params json.RawMessage) {
		var ev target.EventTargetDestroyed
		if err := json.Unmarshal(params, &ev); err != nil {
			return
		}
		id, ok := c.registry.Known(ev.TargetID)
		if !ok {
			return
		}
		c.registry.Forget(ev.TargetID)
		w.emit(types.TabEvent{Kind: types.EventRemoved, TabID: id})
	})
	offChanged := c.cdp.on("Target.targetInfoChanged", func(params json.RawMessage) {
		var ev target.EventTargetInfoChanged
		if err := json.Unmarshal(params, &ev); err != nil || ev.TargetInfo == nil {
			return
		}
		if ev.TargetInfo.Type != "page" {
			return
		}
		id := c.registry.ID(ev.TargetInfo.TargetID)
		w.emit(types.TabEvent{
			Kind:   types.EventUpdated,
			TabID:  id,
			Change: types.ChangeInfo{Status: types.StatusComplete},
			Tab:    types.Tab{ID: id, Title: ev.TargetInfo.Title, URL: ev.TargetInfo.URL},
		})
	})

	if err := c.cdp.call(ctx, "Target.setDiscoverTargets", map[string]any{"discover": true}, nil); err != nil {
		offDestroyed()
		offChanged()
		return nil, classify(err, types.CodeCDPUnavailable, "discover targets")
	}

	lost := c.cdp.disconnected()
	go func() {
		defer w.close()
		defer offChanged()
		defer offDestroyed()
		c.pollActivations(ctx, w, lost)
	}()
	return w.out, nil
}

func (c *Client) pollActivations(ctx context.Context, w *watcher, lost <-chan struct{}) {
	ticker := c.clock.NewTicker(c.poll)
	defer ticker.Stop()

	var front target.ID
	check := func() {
		pages, err := c.cdp.listPages(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("target list poll failed", "error", err)
			}
			return
		}
		for _, p := range pages {
			c.registry.ID(p.TargetID)
		}
		if len(pages) == 0 || pages[0].TargetID == front {
			return
		}
		front = pages[0].TargetID
		w.emit(types.TabEvent{Kind: types.EventActivated, TabID: c.registry.ID(front)})
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-lost:
			slog.Warn("browser connection lost, stopping tab watch")
			return
		case <-ticker.Chan():
			check()
		}
	}
}

type watcher struct {
	ctx    context.Context
	mu     sync.RWMutex
	closed bool
	out    chan types.TabEvent
}

func (w *watcher) emit(evt types.TabEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.out <- evt:
	case <-w.ctx.Done():
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	close(w.out)
}

// classify maps a browser-reported failure to code and anything else to
// CodeCDPUnavailable.
func classify(err error, code, msg string) error {
	var perr *protocolError
	if errors.As(err, &perr) {
		return types.NewError(code, msg, err)
	}
	return types.NewError(types.CodeCDPUnavailable, msg, err)
}
