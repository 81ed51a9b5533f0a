package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/pkg/arenadto"
)

const (
	snapshotKey   = "arena:snapshot"
	eventsChannel = "arena:events"
)

// LiveStore mirrors the arena into Redis: the latest snapshot under a TTL key
// and every event on a pub/sub channel for observers in other processes.
type LiveStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLiveStore connects to redisURL (redis:// or rediss://).
func NewLiveStore(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*LiveStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for live store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewLiveStoreFromClient(rdb, ttl, logger), nil
}

func NewLiveStoreFromClient(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *LiveStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveStore{rdb: rdb, ttl: ttl, logger: logger}
}

func (s *LiveStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// SaveSnapshot stores snap; a zero TTL keeps it without expiry.
func (s *LiveStore) SaveSnapshot(ctx context.Context, snap arenadto.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, snapshotKey, raw, s.ttl).Err()
}

// LoadSnapshot returns nil when no snapshot is stored.
func (s *LiveStore) LoadSnapshot(ctx context.Context) (*arenadto.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap arenadto.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *LiveStore) PublishEvent(ctx context.Context, ev arenadto.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, eventsChannel, raw).Err()
}

// SubscribeEvents relays published events until ctx ends. The returned
// channel is closed afterwards.
func (s *LiveStore) SubscribeEvents(ctx context.Context) (<-chan arenadto.Event, error) {
	sub := s.rdb.Subscribe(ctx, eventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", eventsChannel, err)
	}
	out := make(chan arenadto.Event, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev arenadto.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("live_event_decode_failed", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Follow reports the stored snapshot, when there is one, then every published
// event until ctx ends. Messages have the same shape as the websocket feed.
func (s *LiveStore) Follow(ctx context.Context, fn func(arenadto.FeedMessage)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 왜: 스냅샷 조회 전에 구독해야 그 사이 이벤트가 빠지지 않음
	events, err := s.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		fn(arenadto.FeedMessage{Type: arenadto.FeedSnapshot, Snapshot: snap})
	}
	for ev := range events {
		ev := ev
		fn(arenadto.FeedMessage{Type: arenadto.FeedEvent, Event: &ev})
	}
	return ctx.Err()
}

// Mirror forwards arena events to Redis until events is closed or ctx ends.
// The snapshot is refreshed on every event. Redis failures are logged only.
func (s *LiveStore) Mirror(ctx context.Context, events <-chan arena.Event, snapshot func() arena.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := s.PublishEvent(opCtx, ev.DTO()); err != nil {
				s.logger.Warn("live_publish_failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
			}
			if snapshot != nil {
				if err := s.SaveSnapshot(opCtx, snapshot().DTO()); err != nil {
					s.logger.Warn("live_snapshot_failed", zap.Error(err))
				}
			}
			cancel()
		}
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
