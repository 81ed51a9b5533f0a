package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/store"
	"github.com/park285/chess-arena/pkg/arenadto"
)

const (
	defaultGamesLimit = 10
	maxGamesLimit     = 100
)

// Arena is the controller surface the API drives.
type Arena interface {
	Start(white, black string, pace time.Duration) error
	Stop()
	Reset()
	SetPace(d time.Duration) error
	State() arena.State
	Snapshot() arena.Snapshot
	PGN() string
}

// Archive reads finished games.
type Archive interface {
	RecentGames(ctx context.Context, limit int) ([]*domain.ArenaGame, error)
	GetGame(ctx context.Context, gameUUID string) (*domain.ArenaGame, error)
	ModelRecords(ctx context.Context) ([]domain.ModelRecord, error)
}

// ModelLister returns the models that cost nothing to call.
type ModelLister interface {
	FreeModels(ctx context.Context) ([]string, error)
}

type Handler struct {
	arena    Arena
	archive  Archive
	models   ModelLister
	defaults []string
	logger   *zap.Logger
}

type Deps struct {
	Arena         Arena
	Archive       Archive
	Models        ModelLister
	DefaultModels []string
	Logger        *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		arena:    d.Arena,
		archive:  d.Archive,
		models:   d.Models,
		defaults: d.DefaultModels,
		logger:   logger,
	}
}

func NewApp(d Deps) *fiber.App {
	h := NewHandler(d)

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          35 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(accessLog(h.logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/health", h.Health)

	api := app.Group("/api/v1")
	api.Use(contentTypeValidator)

	api.Get("/game", h.GetGame)
	api.Post("/game/start", h.StartGame)
	api.Post("/game/stop", h.StopGame)
	api.Post("/game/reset", h.ResetGame)
	api.Put("/game/pace", h.SetPace)
	api.Get("/game/pgn", h.GetPGN)
	api.Get("/games", h.ListGames)
	api.Get("/games/:gameId", h.GetArchivedGame)
	api.Get("/records", h.ListRecords)
	api.Get("/models", h.ListModels)

	return app
}

// accessLog writes one line per request through zap.
func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}

// contentTypeValidator ensures POST and PUT requests carry JSON.
func contentTypeValidator(c *fiber.Ctx) error {
	method := c.Method()
	if method == fiber.MethodPost || method == fiber.MethodPut {
		ct := c.Get(fiber.HeaderContentType)
		if ct != "" && ct != fiber.MIMEApplicationJSON && ct != fiber.MIMEApplicationJSONCharsetUTF8 {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(arenadto.ErrorResponse{
				Error:   "unsupported media type",
				Code:    arenadto.CodeInvalidRequest,
				Details: "Content-Type must be application/json",
			})
		}
	}
	return c.Next()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	resp := arenadto.ErrorResponse{
		Error: "internal server error",
		Code:  arenadto.CodeInternal,
	}

	var re *requestError
	if errors.As(err, &re) {
		return c.Status(fiber.StatusBadRequest).JSON(arenadto.ErrorResponse{
			Error:   re.msg,
			Code:    arenadto.CodeInvalidRequest,
			Details: re.details,
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		resp.Error = fe.Message
		switch code {
		case fiber.StatusNotFound:
			resp.Code = arenadto.CodeNotFound
		case fiber.StatusBadRequest:
			resp.Code = arenadto.CodeInvalidRequest
		}
	}
	return c.Status(code).JSON(resp)
}

// arenaError maps controller errors onto API responses.
func arenaError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, arenadto.CodeInternal
	switch {
	case errors.Is(err, arena.ErrMissingCredential):
		status, code = fiber.StatusBadRequest, arenadto.CodeMissingCredential
	case errors.Is(err, arena.ErrMissingModel):
		status, code = fiber.StatusBadRequest, arenadto.CodeMissingModel
	case errors.Is(err, arena.ErrInvalidPace):
		status, code = fiber.StatusBadRequest, arenadto.CodeInvalidRequest
	case errors.Is(err, arena.ErrAlreadyRunning),
		errors.Is(err, arena.ErrGameFinished),
		errors.Is(err, arena.ErrLoopBusy):
		status, code = fiber.StatusConflict, arenadto.CodeConflict
	case errors.Is(err, store.ErrGameNotFound):
		status, code = fiber.StatusNotFound, arenadto.CodeNotFound
	}
	return c.Status(status).JSON(arenadto.ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(arenadto.HealthResponse{Status: "healthy", State: h.arena.State().String()})
}

func (h *Handler) GetGame(c *fiber.Ctx) error {
	return c.JSON(h.arena.Snapshot().DTO())
}

func (h *Handler) StartGame(c *fiber.Ctx) error {
	var req arenadto.StartRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	pace := time.Duration(-1)
	if req.MoveDelayMS != nil {
		pace = time.Duration(*req.MoveDelayMS) * time.Millisecond
	}
	if err := h.arena.Start(req.WhiteModel, req.BlackModel, pace); err != nil {
		return arenaError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(h.arena.Snapshot().DTO())
}

func (h *Handler) StopGame(c *fiber.Ctx) error {
	h.arena.Stop()
	return c.JSON(h.arena.Snapshot().DTO())
}

func (h *Handler) ResetGame(c *fiber.Ctx) error {
	h.arena.Reset()
	return c.JSON(h.arena.Snapshot().DTO())
}

func (h *Handler) SetPace(c *fiber.Ctx) error {
	var req arenadto.PaceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.arena.SetPace(time.Duration(req.MoveDelayMS) * time.Millisecond); err != nil {
		return arenaError(c, err)
	}
	return c.JSON(h.arena.Snapshot().DTO())
}

func (h *Handler) GetPGN(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/x-chess-pgn; charset=utf-8")
	return c.SendString(h.arena.PGN())
}

func (h *Handler) ListGames(c *fiber.Ctx) error {
	if h.archive == nil {
		return unavailable(c, "game archive is not configured")
	}
	limit := c.QueryInt("limit", defaultGamesLimit)
	if limit <= 0 {
		limit = defaultGamesLimit
	}
	if limit > maxGamesLimit {
		limit = maxGamesLimit
	}
	games, err := h.archive.RecentGames(c.UserContext(), limit)
	if err != nil {
		h.logger.Warn("http_list_games_failed", zap.Error(err))
		return arenaError(c, err)
	}
	out := make([]arenadto.ArchivedGame, 0, len(games))
	for _, g := range games {
		out = append(out, archivedGame(g))
	}
	return c.JSON(out)
}

func (h *Handler) GetArchivedGame(c *fiber.Ctx) error {
	if h.archive == nil {
		return unavailable(c, "game archive is not configured")
	}
	g, err := h.archive.GetGame(c.UserContext(), c.Params("gameId"))
	if err != nil {
		return arenaError(c, err)
	}
	return c.JSON(archivedGame(g))
}

func (h *Handler) ListRecords(c *fiber.Ctx) error {
	if h.archive == nil {
		return unavailable(c, "game archive is not configured")
	}
	recs, err := h.archive.ModelRecords(c.UserContext())
	if err != nil {
		h.logger.Warn("http_model_records_failed", zap.Error(err))
		return arenaError(c, err)
	}
	out := make([]arenadto.ModelRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, arenadto.ModelRecord(r))
	}
	return c.JSON(out)
}

// ListModels returns the free models of the backend, or the built-in list
// when the backend reports none.
func (h *Handler) ListModels(c *fiber.Ctx) error {
	if h.models == nil {
		return c.JSON(arenadto.ModelsResponse{Models: nonNil(h.defaults)})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()
	free, err := h.models.FreeModels(ctx)
	if err != nil {
		h.logger.Warn("http_free_models_failed", zap.Error(err))
		return unavailable(c, err.Error())
	}
	if len(free) == 0 {
		return c.JSON(arenadto.ModelsResponse{Models: nonNil(h.defaults)})
	}
	return c.JSON(arenadto.ModelsResponse{Models: free, Free: true})
}

func unavailable(c *fiber.Ctx, details string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(arenadto.ErrorResponse{
		Error:   "service unavailable",
		Code:    arenadto.CodeUnavailable,
		Details: details,
	})
}

func archivedGame(g *domain.ArenaGame) arenadto.ArchivedGame {
	opening := g.OpeningName
	if g.OpeningECO != "" && g.OpeningName != "" {
		opening = g.OpeningECO + " " + g.OpeningName
	}
	return arenadto.ArchivedGame{
		ID:             g.ID,
		GameID:         g.GameUUID,
		WhiteModel:     g.WhiteModel,
		BlackModel:     g.BlackModel,
		Result:         g.Result,
		ResultMethod:   g.ResultMethod,
		ResultText:     g.ResultText,
		MovesUCI:       nonNil(g.MovesUCI),
		PGN:            g.PGN,
		Opening:        opening,
		WhiteFallbacks: g.WhiteFallbacks,
		BlackFallbacks: g.BlackFallbacks,
		StartedAt:      g.StartedAt,
		EndedAt:        g.EndedAt,
		DurationMS:     g.Duration.Milliseconds(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
