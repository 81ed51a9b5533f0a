// Package console implements the operator commands of the interactive arena.
package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-arena/internal/app"
	"github.com/park285/chess-arena/internal/config"
)

const requestTimeout = 15 * time.Second

// Command is one console verb.
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(args []string) error
}

// Registry dispatches console lines to commands.
type Registry struct {
	app      *app.App
	out      io.Writer
	commands map[string]*Command
}

func NewRegistry(a *app.App, out io.Writer) *Registry {
	r := &Registry{app: a, out: out, commands: make(map[string]*Command)}
	r.registerGameCommands()
	r.registerBackendCommands()
	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help",
		Handler:     r.helpHandler,
	})
	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Names lists the full command names, for completion.
func (r *Registry) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			names = append(names, cmd.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Execute runs one line. Errors are printed, never returned.
func (r *Registry) Execute(line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}
	cmd, ok := r.commands[strings.ToLower(parts[0])]
	if !ok {
		r.printf("Unknown command: %s (type 'help')\n", parts[0])
		return
	}
	if err := cmd.Handler(parts[1:]); err != nil {
		r.printf("Error: %v\n", err)
	}
}

func (r *Registry) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Registry) helpHandler(args []string) error {
	seen := make(map[string]bool)
	names := r.Names()
	r.printf("Commands:\n")
	for _, name := range names {
		cmd := r.commands[name]
		if seen[cmd.Name] {
			continue
		}
		seen[cmd.Name] = true
		r.printf("  %-28s %s\n", cmd.Usage, cmd.Description)
	}
	r.printf("  %-28s %s\n", "quit", "Stop the game and exit")
	return nil
}

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "start",
		ShortName:   "s",
		Description: "Start or resume a game",
		Usage:       "start [white] [black]",
		Handler:     r.startHandler,
	})
	r.Register(&Command{
		Name:        "stop",
		Description: "Stop the running game",
		Usage:       "stop",
		Handler: func([]string) error {
			r.app.Controller.Stop()
			return nil
		},
	})
	r.Register(&Command{
		Name:        "reset",
		Description: "Stop and return to the initial position",
		Usage:       "reset",
		Handler: func([]string) error {
			r.app.Controller.Reset()
			return nil
		},
	})
	r.Register(&Command{
		Name:        "pace",
		Description: "Set the delay between moves (seconds or duration)",
		Usage:       "pace <delay>",
		Handler:     r.paceHandler,
	})
	r.Register(&Command{
		Name:        "status",
		ShortName:   "st",
		Description: "Show game status",
		Usage:       "status",
		Handler:     r.statusHandler,
	})
	r.Register(&Command{
		Name:        "board",
		ShortName:   "b",
		Description: "Print the board",
		Usage:       "board",
		Handler: func([]string) error {
			r.printf("%s", r.app.Controller.Snapshot().Board)
			return nil
		},
	})
	r.Register(&Command{
		Name:        "pgn",
		Description: "Print the game as PGN",
		Usage:       "pgn",
		Handler: func([]string) error {
			r.printf("%s\n", r.app.Controller.PGN())
			return nil
		},
	})
	r.Register(&Command{
		Name:        "games",
		Description: "List archived games",
		Usage:       "games [limit]",
		Handler:     r.gamesHandler,
	})
	r.Register(&Command{
		Name:        "records",
		Description: "Show per-model results",
		Usage:       "records",
		Handler:     r.recordsHandler,
	})
}

func (r *Registry) registerBackendCommands() {
	r.Register(&Command{
		Name:        "models",
		Description: "List free models",
		Usage:       "models",
		Handler:     r.modelsHandler,
	})
	r.Register(&Command{
		Name:        "ping",
		Description: "Test the API connection",
		Usage:       "ping",
		Handler:     r.pingHandler,
	})
	r.Register(&Command{
		Name:        "key",
		Description: "Set the API key",
		Usage:       "key <api-key>",
		Handler:     r.keyHandler,
	})
	r.Register(&Command{
		Name:        "save",
		Description: "Save API key, models and delay",
		Usage:       "save",
		Handler: func([]string) error {
			snap := r.app.Controller.Snapshot()
			if err := r.app.SaveSettings(snap.White, snap.Black); err != nil {
				return err
			}
			r.printf("Settings saved to %s\n", r.app.Config.SettingsPath)
			return nil
		},
	})
}

func (r *Registry) startHandler(args []string) error {
	white, black := r.app.Config.WhiteModel, r.app.Config.BlackModel
	if len(args) >= 1 {
		white = args[0]
	}
	if len(args) >= 2 {
		black = args[1]
	}
	return r.app.Controller.Start(white, black, -1)
}

func (r *Registry) paceHandler(args []string) error {
	if len(args) != 1 {
		r.printf("Move delay: %s\n", r.app.Controller.Pace())
		return nil
	}
	d, ok := config.ParseDelay(args[0])
	if !ok {
		return fmt.Errorf("invalid delay %q", args[0])
	}
	if err := r.app.Controller.SetPace(d); err != nil {
		return err
	}
	r.printf("Move delay: %s\n", d)
	return nil
}

func (r *Registry) statusHandler([]string) error {
	snap := r.app.Controller.Snapshot()
	r.printf("State:   %s\n", snap.State)
	r.printf("Status:  %s\n", snap.Status)
	if snap.GameID != "" {
		r.printf("Game:    %s\n", snap.GameID)
	}
	if snap.White != "" {
		r.printf("White:   %s\n", snap.White)
		r.printf("Black:   %s\n", snap.Black)
	}
	r.printf("Turn:    %s\n", snap.Turn.Title())
	r.printf("Ply:     %d\n", len(snap.Moves))
	r.printf("Delay:   %s\n", snap.Pace)
	if snap.Opening != "" {
		r.printf("Opening: %s\n", snap.Opening)
	}
	if snap.ResultCode != "" && snap.Result != "*" {
		r.printf("Result:  %s (%s)\n", snap.Result, snap.ResultText)
	}
	if snap.LastError != "" {
		r.printf("Error:   %s\n", snap.LastError)
	}
	r.printf("FEN:     %s\n", snap.FEN)
	return nil
}

func (r *Registry) gamesHandler(args []string) error {
	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	games, err := r.app.Archive.RecentGames(ctx, limit)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		r.printf("No archived games\n")
		return nil
	}
	for _, g := range games {
		r.printf("%s  %-7s  %s vs %s  (%d plies, %s)\n",
			g.EndedAt.Local().Format("2006-01-02 15:04"), g.Result, g.WhiteModel, g.BlackModel, len(g.MovesUCI), g.ResultText)
	}
	return nil
}

func (r *Registry) recordsHandler([]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	recs, err := r.app.Archive.ModelRecords(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		r.printf("No archived games\n")
		return nil
	}
	for _, rec := range recs {
		r.printf("%-40s  %3d games  +%d -%d =%d  fallbacks %d\n",
			rec.Model, rec.Games, rec.Wins, rec.Losses, rec.Draws, rec.Fallbacks)
	}
	return nil
}

func (r *Registry) modelsHandler([]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	free, err := r.app.Provider.FreeModels(ctx)
	if err != nil {
		r.printf("Could not fetch models: %v\n", err)
	}
	if len(free) == 0 {
		r.printf("Default models:\n")
		free = config.DefaultModels
	} else {
		r.printf("Free models:\n")
	}
	for _, m := range free {
		r.printf("  %s\n", m)
	}
	return nil
}

func (r *Registry) pingHandler([]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := r.app.Provider.Ping(ctx); err != nil {
		return fmt.Errorf("API connection failed: %w", err)
	}
	r.printf("API connection successful\n")
	return nil
}

func (r *Registry) keyHandler(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: key <api-key>")
	}
	if err := r.app.SetAPIKey(args[0]); err != nil {
		return err
	}
	r.printf("API key set\n")
	return nil
}
