package observe

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/pkg/arenadto"
)

// Hub serves the observer feed: a snapshot on connect, then every arena
// event as JSON. A client that cannot keep up loses events rather than
// slowing the game.
type Hub struct {
	bus      *arena.Bus
	snapshot func() arena.Snapshot
	logger   *zap.Logger

	buffer       int
	writeTimeout time.Duration
	pingInterval time.Duration
	clients      atomic.Int64
}

func NewHub(bus *arena.Bus, snapshot func() arena.Snapshot, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bus:          bus,
		snapshot:     snapshot,
		logger:       logger,
		buffer:       64,
		writeTimeout: 5 * time.Second,
		pingInterval: 30 * time.Second,
	}
}

// Clients reports the number of connected observers.
func (h *Hub) Clients() int64 { return h.clients.Load() }

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("observe_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "feed closed")

	h.clients.Add(1)
	defer h.clients.Add(-1)

	events, unsubscribe := h.bus.Subscribe(h.buffer)
	defer unsubscribe()

	// observers never send; CloseRead handles control frames and ends ctx
	// when the peer goes away
	ctx := conn.CloseRead(r.Context())

	if h.snapshot != nil {
		snap := h.snapshot().DTO()
		if err := h.write(ctx, conn, arenadto.FeedMessage{Type: arenadto.FeedSnapshot, Snapshot: &snap}); err != nil {
			return
		}
	}

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "arena shutting down")
				return
			}
			dto := ev.DTO()
			if err := h.write(ctx, conn, arenadto.FeedMessage{Type: arenadto.FeedEvent, Event: &dto}); err != nil {
				h.logger.Debug("observe_write_failed", zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg arenadto.FeedMessage) error {
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, msg)
}
