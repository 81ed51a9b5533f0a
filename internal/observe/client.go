package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/pkg/arenadto"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type MessageHandler func(arenadto.FeedMessage)

// Client follows a remote observer feed and reconnects with backoff when the
// connection drops.
type Client struct {
	url                  string
	maxReconnectAttempts int

	mu      sync.Mutex
	conn    *websocket.Conn
	state   ConnState
	onMsg   MessageHandler
	onState func(ConnState)

	rootCtx  context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewClient(url string, maxReconnectAttempts int) *Client {
	return &Client{url: url, maxReconnectAttempts: maxReconnectAttempts}
}

// OnMessage sets the handler for feed messages. Call before Connect.
func (c *Client) OnMessage(h MessageHandler) { c.onMsg = h }

// OnStateChange sets the connection state callback. Call before Connect.
func (c *Client) OnStateChange(fn func(ConnState)) { c.onState = fn }

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the feed once; later drops are retried in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.rootCtx, c.cancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(StateFailed)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)

	c.wg.Add(1)
	go c.listen(conn)
	return nil
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var msg arenadto.FeedMessage
		if err := wsjson.Read(c.rootCtx, conn, &msg); err != nil {
			_ = conn.Close(websocket.StatusGoingAway, "read failed")
			if c.rootCtx.Err() != nil {
				return
			}
			c.setState(StateDisconnected)
			c.reconnect()
			return
		}
		if h := c.onMsg; h != nil {
			h(msg)
		}
	}
}

func (c *Client) reconnect() {
	if c.maxReconnectAttempts <= 0 {
		c.setState(StateFailed)
		return
	}
	c.setState(StateReconnecting)
	for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
		t := time.NewTimer(backoffDuration(attempt))
		select {
		case <-c.rootCtx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if err := c.dial(c.rootCtx); err == nil {
			return
		}
	}
	c.setState(StateFailed)
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Close ends the connection and waits for the reader to exit.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "close")
		}
		c.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.setState(StateDisconnected)
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("feed client close timed out"), ctx.Err())
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}
