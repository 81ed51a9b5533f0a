package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/app"
	"github.com/park285/chess-arena/internal/arena"
	appcfg "github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/console"
	"github.com/park285/chess-arena/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logOpts := obslog.OptionsFromEnv()
	logOpts.ConsoleWriter = os.Stderr
	if os.Getenv("LOG_LEVEL") == "" {
		logOpts.Level = "warn"
	}
	if err := obslog.Init(logOpts); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("arena init error: %v", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "arena> ",
		HistoryFile:     ".arena_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		log.Fatalf("readline error: %v", err)
	}
	defer rl.Close()

	registry := console.NewRegistry(a, rl.Stdout())
	items := make([]readline.PrefixCompleterInterface, 0)
	for _, name := range registry.Names() {
		items = append(items, readline.PcItem(name))
	}
	cfgRL := rl.Config.Clone()
	cfgRL.AutoComplete = readline.NewPrefixCompleter(items...)
	rl.SetConfig(cfgRL)

	events, unsubscribe := a.Controller.Bus().Subscribe(256)
	go printEvents(rl, events)

	fmt.Fprintf(rl.Stdout(), "AI Chess Arena\n")
	fmt.Fprintf(rl.Stdout(), "White: %s  Black: %s  Delay: %s\n", cfg.WhiteModel, cfg.BlackModel, a.Controller.Pace())
	if !a.Provider.HasCredential() {
		fmt.Fprintf(rl.Stdout(), "No API key configured. Use 'key <api-key>' then 'save'.\n")
	}
	fmt.Fprintf(rl.Stdout(), "Type 'help' for commands\n\n")

	for {
		rl.SetPrompt(prompt(a.Controller.State()))
		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err == readline.ErrInterrupt {
			if a.Controller.State() == arena.Running {
				a.Controller.Stop()
				continue
			}
			break
		}
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			break
		}
		registry.Execute(line)
	}

	unsubscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Warn("arena_close_failed", zap.Error(err))
	}
}

func prompt(s arena.State) string {
	if s == arena.Idle {
		return "arena> "
	}
	return fmt.Sprintf("arena[%s]> ", s)
}

func printEvents(rl *readline.Instance, events <-chan arena.Event) {
	for ev := range events {
		switch ev.Kind {
		case arena.EventState:
			rl.SetPrompt(prompt(ev.State))
			rl.Refresh()
			continue
		case arena.EventStatus:
			continue
		}
		if ev.Text != "" {
			fmt.Fprintln(rl.Stdout(), ev.Text)
		}
	}
}
