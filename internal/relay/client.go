package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/hopchess/internal/apiclient"
	"github.com/park285/hopchess/internal/obslog"
	"github.com/park285/hopchess/internal/protocol"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type MessageCallback func(env protocol.Envelope)

type StateCallback func(state State)

// HeaderProvider injects handshake headers.
type HeaderProvider func() map[string]string

var ErrNotConnected = errors.New("relay not connected")

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Client is a reconnecting relay connection for one player process.
type Client struct {
	wsURL string

	conn   *websocket.Conn
	connM  sync.RWMutex
	state  State
	stateM sync.RWMutex

	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewClient(wsURL string, maxReconnectAttempts int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

// SetPingInterval overrides the keepalive period; call before Connect.
func (c *Client) SetPingInterval(d time.Duration) {
	if d > 0 {
		c.pingInterval = d
	}
}

// SetHeaderProvider allows injecting headers into the WS handshake.
func (c *Client) SetHeaderProvider(h HeaderProvider) { c.headerProvider = h }

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) Connect(ctx context.Context) error {
	switch c.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := c.dial(dialCtx)
	if err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, c.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.buildHeaders(),
	})
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(conn)
	go c.pingLoop(conn)
}

// Send writes env as one JSON frame.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) error {
	c.connM.RLock()
	conn := c.conn
	c.connM.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, conn, env)
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, data, err := conn.Read(c.rootCtx)
		if err != nil {
			if c.isStopping() {
				return
			}
			obslog.L().Warn("relay_client_read_error", zap.Error(err))
			c.dropConn(conn, websocket.StatusGoingAway, "reconnect")
			return
		}
		env, err := protocol.Parse(data)
		if err != nil {
			obslog.L().Warn("relay_client_bad_frame", zap.Error(err))
			continue
		}

		c.cbM.RLock()
		callbacks := make([]callbackEntry, len(c.msgCbs))
		copy(callbacks, c.msgCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(env)
			}
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if c.isStopping() {
					return
				}
				c.dropConn(conn, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// dropConn closes conn if it is still current and starts reconnecting.
func (c *Client) dropConn(conn *websocket.Conn, code websocket.StatusCode, reason string) {
	c.connM.Lock()
	if c.conn != conn {
		c.connM.Unlock()
		return
	}
	c.conn = nil
	c.connM.Unlock()
	_ = conn.Close(code, reason)
	c.setState(StateDisconnected)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 || c.isStopping() {
		return
	}
	c.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(apiclient.BackoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(c.rootCtx, 10*time.Second)
			conn, err := c.dial(dialCtx)
			cancel()
			if err != nil {
				obslog.L().Debug("relay_client_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			c.attach(conn)
			return
		}
		c.setState(StateFailed)
	}()
}

func (c *Client) OnMessage(cb MessageCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.msgCbs = append(c.msgCbs, callbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

func (c *Client) RemoveMessageCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.msgCbs {
		if cb.id == id {
			c.msgCbs = append(c.msgCbs[:i], c.msgCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextCbID++
	c.stateCbs = append(c.stateCbs, stateCallbackEntry{id: c.nextCbID, callback: cb})
	return c.nextCbID
}

// Inbound forwards every frame to a buffered channel for player.Session.Run.
// Frames are dropped when the channel is full. The channel closes with Close.
func (c *Client) Inbound(buf int) <-chan protocol.Envelope {
	ch := make(chan protocol.Envelope, buf)
	var mu sync.Mutex
	closed := false
	c.OnMessage(func(env protocol.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- env:
		default:
			obslog.L().Warn("relay_client_inbound_full", zap.String("type", string(env.Type)))
		}
	})
	go func() {
		<-c.stopCh
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

func (c *Client) setState(state State) {
	c.stateM.Lock()
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) current() *websocket.Conn {
	c.connM.RLock()
	defer c.connM.RUnlock()
	return c.conn
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) buildHeaders() http.Header {
	hdr := http.Header{}
	if c.headerProvider == nil {
		return hdr
	}
	for k, v := range c.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
