package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/chess-arena/internal/app"
	appcfg "github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/llm"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stores are not needed to check the backend
	cfg.DatabaseURL, cfg.RedisURL = "", ""

	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer a.Close(context.Background())

	if !a.Provider.HasCredential() {
		log.Fatalf("%s: no API key configured", cfg.Provider)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Provider.Ping(ctx); err != nil {
		log.Printf("ping error: %v", err)
		var se *llm.StatusError
		if errors.As(err, &se) && se.Hint() != "" {
			log.Printf("hint: %s", se.Hint())
		}
		os.Exit(1)
	}
	log.Printf("%s connection ok", cfg.Provider)

	models, err := a.Provider.ListModels(ctx)
	if err != nil {
		log.Printf("models error: %v", err)
		os.Exit(1)
	}
	free := 0
	for _, m := range models {
		if m.Free {
			free++
			fmt.Printf("free  %s\n", m.ID)
		}
	}
	log.Printf("%d models, %d free", len(models), free)

	for _, model := range []string{cfg.WhiteModel, cfg.BlackModel} {
		reply, err := a.Provider.Complete(ctx, llm.Request{
			Model:     model,
			Prompt:    "Reply with the UCI move e2e4 and nothing else.",
			MaxTokens: 20,
		})
		if err != nil {
			log.Printf("%s: %v", model, err)
			continue
		}
		log.Printf("%s replied %q", model, reply)
	}
}
