package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/resolver"
)

var (
	ErrMissingCredential = errors.New("api credential is not configured")
	ErrMissingModel      = errors.New("both models must be selected")
	ErrAlreadyRunning    = errors.New("game is already running")
	ErrGameFinished      = errors.New("game is over, reset the board first")
	ErrLoopBusy          = errors.New("previous game loop is still finishing")
	ErrInvalidPace       = errors.New("move delay must not be negative")
)

const archiveTimeout = 10 * time.Second

// MoveResolver picks the move for the side to move.
type MoveResolver interface {
	Resolve(ctx context.Context, req resolver.Request) resolver.Outcome
}

// Credentials reports whether the completion backend has an API key.
type Credentials interface {
	HasCredential() bool
}

// Archiver stores finished games.
type Archiver interface {
	SaveGame(ctx context.Context, game *domain.ArenaGame) error
}

// Controller runs one game at a time between two models. Control methods
// never block on the game loop.
type Controller struct {
	board    *chess.Board
	resolver MoveResolver
	creds    Credentials
	bus      *Bus
	run      RunState
	catalog  *msgcat.Catalog
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	gameID    string
	white     string
	black     string
	startedAt time.Time
	status    string
	result    chess.Result
	lastErr   string
	opening   string
	fallbacks map[chess.Color]int
}

type Option func(*Controller)

func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

func WithCatalog(cat *msgcat.Catalog) Option {
	return func(c *Controller) {
		if cat != nil {
			c.catalog = cat
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithBus(b *Bus) Option {
	return func(c *Controller) {
		if b != nil {
			c.bus = b
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(board *chess.Board, res MoveResolver, creds Credentials, opts ...Option) *Controller {
	c := &Controller{
		board:     board,
		resolver:  res,
		creds:     creds,
		bus:       NewBus(),
		logger:    zap.NewNop(),
		now:       time.Now,
		fallbacks: make(map[chess.Color]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil {
		c.catalog = msgcat.MustDefault()
	}
	c.run.SetPace(2 * time.Second)
	c.status = c.catalog.Line("status.ready", nil)
	return c
}

func (c *Controller) Bus() *Bus { return c.bus }

func (c *Controller) State() State { return c.run.State() }

func (c *Controller) Pace() time.Duration { return c.run.Pace() }

// SetPace changes the delay between moves. A running loop picks it up at its
// next sleep.
func (c *Controller) SetPace(d time.Duration) error {
	if d < 0 {
		return ErrInvalidPace
	}
	c.run.SetPace(d)
	return nil
}

// Start begins or resumes a game and returns immediately. A negative pace
// keeps the current one.
func (c *Controller) Start(white, black string, pace time.Duration) error {
	white, black = strings.TrimSpace(white), strings.TrimSpace(black)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.creds == nil || !c.creds.HasCredential() {
		return ErrMissingCredential
	}
	if white == "" || black == "" {
		return ErrMissingModel
	}
	switch c.run.State() {
	case Running:
		return ErrAlreadyRunning
	case GameOver:
		return ErrGameFinished
	}
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return ErrLoopBusy
		}
	}

	resumed := c.gameID != "" && !c.board.AtStart()
	if !resumed {
		c.gameID = uuid.NewString()
		c.startedAt = c.now()
		c.result = chess.InProgress
		c.opening = ""
		c.fallbacks = make(map[chess.Color]int)
	}
	c.white, c.black = white, black
	if pace >= 0 {
		c.run.SetPace(pace)
	}
	c.lastErr = ""

	ctx, cancel := context.WithCancel(context.Background())
	c.gen++
	c.cancel = cancel
	c.done = make(chan struct{})
	c.run.set(Running)

	if resumed {
		c.logLocked("game.resumed", nil)
	} else {
		c.logLocked("game.started", nil)
	}
	c.logLocked("game.white", map[string]any{"Model": white})
	c.logLocked("game.black", map[string]any{"Model": black})
	c.stateLocked()
	c.logger.Info("arena_started",
		zap.String("game_id", c.gameID),
		zap.String("white", white),
		zap.String("black", black),
		zap.Bool("resumed", resumed),
		zap.Duration("pace", c.run.Pace()),
	)

	go c.loop(ctx, c.gen, c.done)
	return nil
}

// Stop halts the loop. A move being resolved is discarded and a pacing sleep
// ends at once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.run.State() != Running {
		return
	}
	c.run.set(Stopped)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.status = c.catalog.Line("status.stopped", nil)
	c.logLocked("game.stopped", nil)
	c.stateLocked()
	c.logger.Info("arena_stopped", zap.String("game_id", c.gameID), zap.Int("ply", len(c.board.Moves())))
}

// Reset stops any game, clears the record and returns to the initial position.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	c.board.Reset()
	c.gameID = ""
	c.result = chess.InProgress
	c.opening = ""
	c.lastErr = ""
	c.fallbacks = make(map[chess.Color]int)
	c.run.set(Idle)
	c.status = c.catalog.Line("status.ready", nil)
	c.logLocked("game.reset", nil)
	c.stateLocked()
}

// Wait blocks until the current loop goroutine has exited or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the game and waits for the loop to exit.
func (c *Controller) Close(ctx context.Context) error {
	c.Stop()
	return c.Wait(ctx)
}

func (c *Controller) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		finished, record := c.turn(ctx, gen)
		if record != nil {
			c.archive(record)
		}
		if finished {
			return
		}
		if !c.pause(ctx) {
			return
		}
	}
}

// pause sleeps for the current pace; false means the loop was stopped.
func (c *Controller) pause(ctx context.Context) bool {
	d := c.run.Pace()
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type turnPlan struct {
	pos   chess.Position
	side  chess.Color
	model string
}

func (c *Controller) turn(ctx context.Context, gen uint64) (finished bool, record *domain.ArenaGame) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("arena_turn_panic", zap.Any("panic", r))
			finished, record = true, c.fail(gen, fmt.Errorf("internal error: %v", r))
		}
	}()

	plan, ok, rec := c.prepare(gen)
	if !ok {
		return true, rec
	}
	// 락 밖에서 호출. Stop/Reset 후 도착한 응답은 commit에서 세대 비교로 버림.
	out := c.resolver.Resolve(ctx, resolver.Request{
		Model:      plan.model,
		Position:   plan.pos.FEN,
		LegalMoves: plan.pos.LegalMoves,
		Side:       plan.side,
	})
	return c.commit(gen, plan, out)
}

func (c *Controller) prepare(gen uint64) (turnPlan, bool, *domain.ArenaGame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(gen) {
		return turnPlan{}, false, nil
	}
	if res := c.board.Result(); res.Terminal() {
		return turnPlan{}, false, c.finishLocked(res)
	}
	pos := c.board.Position()
	plan := turnPlan{pos: pos, side: pos.Turn, model: c.modelLocked(pos.Turn)}
	c.status = c.catalog.Line("game.thinking", map[string]any{"Player": plan.side.Title(), "Model": plan.model})
	c.publishLocked(Event{Kind: EventStatus, Text: c.status, Side: plan.side, Model: plan.model})
	return plan, true, nil
}

func (c *Controller) commit(gen uint64, plan turnPlan, out resolver.Outcome) (bool, *domain.ArenaGame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(gen) {
		c.logger.Debug("arena_move_discarded", zap.String("model", plan.model), zap.String("move", out.Move.String()))
		return true, nil
	}

	switch out.Kind {
	case resolver.NoLegalMoves:
		c.logLocked("game.no_moves", nil)
		return true, c.finishLocked(c.board.Result())
	case resolver.Fallback:
		reply := out.Reply
		if out.Reply == "" && out.Cause != nil {
			reply = out.Cause.Error()
		}
		c.logLocked("game.failed", map[string]any{"Player": plan.side.Title(), "Reply": reply})
		c.fallbacks[plan.side]++
	}

	next, err := c.board.Apply(plan.pos, out.Move)
	if err != nil {
		return true, c.failLocked(err)
	}

	key := "game.move"
	if out.Kind == resolver.Fallback {
		key = "game.fallback_move"
	}
	line := c.catalog.Line(key, map[string]any{"Ply": next.Ply, "Player": plan.side.Title(), "Move": out.Move.String()})
	prevOpening := c.opening
	code, name := c.board.Opening()
	label := strings.TrimSpace(code + " " + name)
	if label != "" {
		c.opening = label
	}
	c.publishLocked(Event{
		Kind:     EventMove,
		Text:     line,
		Ply:      next.Ply,
		Side:     plan.side,
		Model:    plan.model,
		Move:     out.Move.String(),
		Fallback: out.Kind == resolver.Fallback,
		Reply:    out.Reply,
		FEN:      next.FEN,
		Opening:  c.opening,
	})
	if c.opening != prevOpening {
		c.logLocked("game.opening", map[string]any{"Code": code, "Name": name})
	}
	c.logger.Info("arena_move",
		zap.String("game_id", c.gameID),
		zap.Int("ply", next.Ply),
		zap.String("side", string(plan.side)),
		zap.String("model", plan.model),
		zap.String("move", out.Move.String()),
		zap.String("kind", out.Kind.String()),
		zap.String("stage", string(out.Stage)),
	)

	if next.InCheck {
		c.publishLocked(Event{Kind: EventCheck, Text: c.catalog.Line("game.check", nil), Ply: next.Ply, Side: next.Turn})
	}
	if res := c.board.Result(); res.Terminal() {
		return true, c.finishLocked(res)
	}
	return false, nil
}

func (c *Controller) fail(gen uint64, err error) *domain.ArenaGame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked(gen) {
		return nil
	}
	return c.failLocked(err)
}

func (c *Controller) failLocked(err error) *domain.ArenaGame {
	c.lastErr = err.Error()
	c.publishLocked(Event{Kind: EventError, Text: c.catalog.Line("game.error", map[string]any{"Error": err.Error()})})
	c.logger.Error("arena_turn_failed", zap.String("game_id", c.gameID), zap.Error(err))
	return c.finishLocked(c.board.Result())
}

// finishLocked moves to GameOver and returns the record to archive.
func (c *Controller) finishLocked(res chess.Result) *domain.ArenaGame {
	c.result = res
	c.run.set(GameOver)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if res.Terminal() {
		text := c.catalog.Line("game.over", map[string]any{"Result": res.String()})
		c.status = c.catalog.Line("status.over", map[string]any{"Result": res.String()})
		c.publishLocked(Event{Kind: EventResult, Text: text, Result: res.PGN(), ResultCode: res.Code()})
	} else {
		c.status = c.catalog.Line("status.stopped", nil)
	}
	c.stateLocked()
	c.logger.Info("arena_game_over",
		zap.String("game_id", c.gameID),
		zap.String("result", res.Code()),
		zap.Int("plies", len(c.board.Moves())),
	)
	return c.recordLocked(res)
}

func (c *Controller) recordLocked(res chess.Result) *domain.ArenaGame {
	code, name := c.board.Opening()
	ended := c.now()
	header := chess.PGNHeader{White: c.white, Black: c.black, Date: c.startedAt}
	return &domain.ArenaGame{
		GameUUID:       c.gameID,
		WhiteModel:     c.white,
		BlackModel:     c.black,
		Result:         res.PGN(),
		ResultMethod:   res.Code(),
		ResultText:     res.String(),
		StartFEN:       c.board.StartFEN(),
		FinalFEN:       c.board.Position().FEN,
		MovesUCI:       chess.MoveStrings(c.board.Moves()),
		MovesSAN:       c.board.SAN(),
		PGN:            c.board.PGN(header),
		OpeningECO:     code,
		OpeningName:    name,
		WhiteFallbacks: c.fallbacks[chess.White],
		BlackFallbacks: c.fallbacks[chess.Black],
		StartedAt:      c.startedAt,
		EndedAt:        ended,
		Duration:       ended.Sub(c.startedAt),
	}
}

func (c *Controller) archive(game *domain.ArenaGame) {
	if c.archiver == nil || game == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := c.archiver.SaveGame(ctx, game); err != nil {
		c.logger.Warn("arena_archive_failed", zap.String("game_id", game.GameUUID), zap.Error(err))
	}
}

func (c *Controller) activeLocked(gen uint64) bool {
	return c.gen == gen && c.run.State() == Running
}

func (c *Controller) modelLocked(side chess.Color) string {
	if side == chess.White {
		return c.white
	}
	return c.black
}

func (c *Controller) logLocked(key string, data any) {
	c.publishLocked(Event{Kind: EventLog, Text: c.catalog.Line(key, data)})
}

func (c *Controller) stateLocked() {
	c.publishLocked(Event{Kind: EventState, Text: c.status})
}

func (c *Controller) publishLocked(ev Event) {
	ev.GameID = c.gameID
	ev.At = c.now()
	ev.State = c.run.State()
	c.bus.Publish(ev)
}

// Snapshot is a read-only view of the arena for observers.
type Snapshot struct {
	GameID     string
	State      State
	Status     string
	FEN        string
	Turn       chess.Color
	InCheck    bool
	Moves      []string
	SAN        []string
	White      string
	Black      string
	Pace       time.Duration
	Result     string
	ResultCode string
	ResultText string
	Opening    string
	LastError  string
	StartedAt  time.Time
	Board      string
	Fallbacks  map[chess.Color]int
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := c.board.Position()
	fallbacks := make(map[chess.Color]int, len(c.fallbacks))
	for k, v := range c.fallbacks {
		fallbacks[k] = v
	}
	return Snapshot{
		GameID:     c.gameID,
		State:      c.run.State(),
		Status:     c.status,
		FEN:        pos.FEN,
		Turn:       pos.Turn,
		InCheck:    pos.InCheck,
		Moves:      chess.MoveStrings(c.board.Moves()),
		SAN:        c.board.SAN(),
		White:      c.white,
		Black:      c.black,
		Pace:       c.run.Pace(),
		Result:     c.result.PGN(),
		ResultCode: c.result.Code(),
		ResultText: c.result.String(),
		Opening:    c.opening,
		LastError:  c.lastErr,
		StartedAt:  c.startedAt,
		Board:      c.board.ASCII(),
		Fallbacks:  fallbacks,
	}
}

// PGN renders the current game record.
func (c *Controller) PGN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.PGN(chess.PGNHeader{White: c.white, Black: c.black, Date: c.startedAt})
}
