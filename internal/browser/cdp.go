package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var errNotConnected = errors.New("cdp: not connected")

// protocolError is an error object returned by the browser for a command.
// Transport failures are never protocolErrors.
type protocolError struct {
	Method  string
	Code    int64
	Message string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("cdp: %s: %s (%d)", e.Method, e.Message, e.Code)
}

// cdpConn is a browser-level CDP connection speaking raw JSON over a
// WebSocket. It only issues Target and Browser domain commands, so no page
// sessions are attached.
type cdpConn struct {
	httpBase string
	client   *http.Client

	mu   sync.Mutex
	conn net.Conn
	lost chan struct{} // closed when the read loop of conn exits
	seq  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan json.RawMessage

	eventMu  sync.RWMutex
	handlers map[string][]eventHandler
}

type eventHandler struct {
	id int64
	fn func(params json.RawMessage)
}

func newCDPConn(httpBase string) *cdpConn {
	return &cdpConn{
		httpBase: strings.TrimRight(httpBase, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		pending:  make(map[int64]chan json.RawMessage),
		handlers: make(map[string][]eventHandler),
	}
}

func (c *cdpConn) connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	wsURL, err := c.browserWSURL(ctx)
	if err != nil {
		return fmt.Errorf("cdp: browser ws url: %w", err)
	}
	slog.Debug("cdp connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("cdp: dial: %w", err)
	}
	c.conn = conn
	c.lost = make(chan struct{})
	go c.readLoop(conn, c.lost)
	return nil
}

// disconnected is closed once the current connection is gone. Without a
// connection it is already closed.
func (c *cdpConn) disconnected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.lost == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.lost
}

func (c *cdpConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *cdpConn) readLoop(conn net.Conn, lost chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		c.failPending()
		close(lost)
	}()

	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("cdp read loop exit", "error", err)
			return
		}

		var msg struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		switch {
		case msg.ID > 0:
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
			if ok {
				ch <- json.RawMessage(data)
			}
		case msg.Method != "":
			c.dispatch(msg.Method, msg.Params)
		}
	}
}

func (c *cdpConn) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends method and decodes the "result" object into out, which may be
// nil.
func (c *cdpConn) call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	id := c.seq.Add(1)
	data, err := json.Marshal(struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params any    `json:"params,omitempty"`
	}{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("cdp: marshal %s: %w", method, err)
	}

	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.mu.Lock()
	err = wsutil.WriteClientText(conn, data)
	c.mu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("cdp: send %s: %w", method, err)
	}

	var raw json.RawMessage
	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("cdp: %s: connection closed", method)
		}
		raw = resp
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int64  `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("cdp: unmarshal %s: %w", method, err)
	}
	if envelope.Error != nil {
		return &protocolError{Method: method, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("cdp: decode %s result: %w", method, err)
	}
	return nil
}

func (c *cdpConn) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// on registers fn for a CDP event method and returns its unregister func.
func (c *cdpConn) on(method string, fn func(params json.RawMessage)) func() {
	id := c.seq.Add(1)
	c.eventMu.Lock()
	c.handlers[method] = append(c.handlers[method], eventHandler{id: id, fn: fn})
	c.eventMu.Unlock()
	return func() {
		c.eventMu.Lock()
		defer c.eventMu.Unlock()
		hs := c.handlers[method]
		for i, h := range hs {
			if h.id == id {
				c.handlers[method] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
	}
}

func (c *cdpConn) dispatch(method string, params json.RawMessage) {
	c.eventMu.RLock()
	hs := make([]eventHandler, len(c.handlers[method]))
	copy(hs, c.handlers[method])
	c.eventMu.RUnlock()
	for _, h := range hs {
		h.fn(params)
	}
}

// listPages fetches page targets from /json/list in the order the browser
// reports them, which is most recently activated first.
func (c *cdpConn) listPages(ctx context.Context) ([]target.Info, error) {
	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := c.getJSON(ctx, "/json/list", &entries); err != nil {
		return nil, err
	}
	out := make([]target.Info, 0, len(entries))
	for _, e := range entries {
		if e.Type != "page" {
			continue
		}
		out = append(out, target.Info{TargetID: target.ID(e.ID), Type: e.Type, Title: e.Title, URL: e.URL})
	}
	return out, nil
}

func (c *cdpConn) browserWSURL(ctx context.Context) (string, error) {
	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := c.getJSON(ctx, "/json/version", &info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

func (c *cdpConn) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cdp: %s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
