package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/chess-arena/internal/observe"
	"github.com/park285/chess-arena/internal/store"
	"github.com/park285/chess-arena/pkg/arenadto"
)

// Follows a running arena. With REDIS_URL set it reads the Redis mirror,
// otherwise the websocket feed at ARENA_WS_URL.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if redisURL := strings.TrimSpace(os.Getenv("REDIS_URL")); redisURL != "" {
		followRedis(ctx, redisURL)
		return
	}
	followFeed(ctx)
}

func followRedis(ctx context.Context, redisURL string) {
	live, err := store.NewLiveStore(ctx, redisURL, 0, nil)
	if err != nil {
		log.Fatalf("redis connect error: %v", err)
	}
	defer live.Close()

	if err := live.Follow(ctx, printMessage); err != nil && ctx.Err() == nil {
		log.Fatalf("redis follow error: %v", err)
	}
}

func followFeed(ctx context.Context) {
	url := os.Getenv("ARENA_WS_URL")
	if url == "" {
		url = "ws://localhost:8081/ws"
	}

	client := observe.NewClient(url, 5)
	client.OnStateChange(func(s observe.ConnState) {
		log.Printf("feed state: %s", s)
	})
	client.OnMessage(printMessage)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := client.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("feed connect error: %v", err)
	}
	cancel()

	<-ctx.Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	_ = client.Close(closeCtx)
}

func printMessage(m arenadto.FeedMessage) {
	switch {
	case m.Snapshot != nil:
		s := m.Snapshot
		fmt.Printf("[%s] %s  %s vs %s  ply %d\n", s.State, s.Status, s.WhiteModel, s.BlackModel, len(s.MovesUCI))
		fmt.Print(s.Board)
	case m.Event != nil && m.Event.Text != "":
		fmt.Println(m.Event.Text)
	}
}
