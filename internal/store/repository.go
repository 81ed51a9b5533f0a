package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/park285/chess-arena/internal/domain"
)

var (
	ErrGameNotFound   = errors.New("arena game not found")
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// Repository archives finished games.
type Repository interface {
	SaveGame(ctx context.Context, game *domain.ArenaGame) error
	RecentGames(ctx context.Context, limit int) ([]*domain.ArenaGame, error)
	GetGame(ctx context.Context, gameUUID string) (*domain.ArenaGame, error)
	ModelRecords(ctx context.Context) ([]domain.ModelRecord, error)
	Close() error
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

type sqlRepository struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to DATABASE_URL. postgres:// and postgresql:// use lib/pq;
// sqlite:<path> (or sqlite::memory:) uses go-sqlite3. The schema is created
// when missing.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	raw := strings.TrimSpace(databaseURL)
	var (
		driver, dsn string
		d           dialect
	)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		driver, dsn, d = "postgres", raw, dialectPostgres
	case strings.HasPrefix(raw, "sqlite:"):
		driver, dsn, d = "sqlite3", strings.TrimPrefix(raw, "sqlite:"), dialectSQLite
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == dialectSQLite {
		// one connection keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	r := &sqlRepository{db: db, dialect: d}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *sqlRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *sqlRepository) ensureSchema(ctx context.Context) error {
	idCol, tsType := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	if r.dialect == dialectSQLite {
		idCol, tsType = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS arena_games (
			id ` + idCol + `,
			game_uuid TEXT NOT NULL UNIQUE,
			white_model TEXT NOT NULL,
			black_model TEXT NOT NULL,
			result TEXT NOT NULL,
			result_method TEXT NOT NULL,
			result_text TEXT NOT NULL,
			start_fen TEXT NOT NULL,
			final_fen TEXT NOT NULL,
			moves_uci TEXT NOT NULL,
			moves_san TEXT NOT NULL,
			pgn TEXT NOT NULL,
			opening_eco TEXT NOT NULL DEFAULT '',
			opening_name TEXT NOT NULL DEFAULT '',
			white_fallbacks INTEGER NOT NULL DEFAULT 0,
			black_fallbacks INTEGER NOT NULL DEFAULT 0,
			started_at ` + tsType + ` NOT NULL,
			ended_at ` + tsType + ` NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS arena_games_ended_at_idx ON arena_games (ended_at)`,
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// rebind turns $N placeholders into ?N for SQLite.
func (r *sqlRepository) rebind(q string) string {
	if r.dialect != dialectSQLite {
		return q
	}
	return strings.ReplaceAll(q, "$", "?")
}

// SaveGame upserts by game UUID so a replayed archive call is harmless.
func (r *sqlRepository) SaveGame(ctx context.Context, g *domain.ArenaGame) error {
	if g == nil {
		return errors.New("nil arena game payload")
	}
	movesUCI, err := json.Marshal(nonNil(g.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(g.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	duration := g.Duration.Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO arena_games (
		game_uuid, white_model, black_model,
		result, result_method, result_text,
		start_fen, final_fen, moves_uci, moves_san, pgn,
		opening_eco, opening_name, white_fallbacks, black_fallbacks,
		started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	ON CONFLICT (game_uuid) DO UPDATE SET
		white_model=EXCLUDED.white_model,
		black_model=EXCLUDED.black_model,
		result=EXCLUDED.result,
		result_method=EXCLUDED.result_method,
		result_text=EXCLUDED.result_text,
		final_fen=EXCLUDED.final_fen,
		moves_uci=EXCLUDED.moves_uci,
		moves_san=EXCLUDED.moves_san,
		pgn=EXCLUDED.pgn,
		opening_eco=EXCLUDED.opening_eco,
		opening_name=EXCLUDED.opening_name,
		white_fallbacks=EXCLUDED.white_fallbacks,
		black_fallbacks=EXCLUDED.black_fallbacks,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, r.rebind(q),
		g.GameUUID, g.WhiteModel, g.BlackModel,
		g.Result, g.ResultMethod, g.ResultText,
		g.StartFEN, g.FinalFEN, string(movesUCI), string(movesSAN), g.PGN,
		g.OpeningECO, g.OpeningName, g.WhiteFallbacks, g.BlackFallbacks,
		g.StartedAt.UTC(), g.EndedAt.UTC(), duration,
	)
	if err != nil {
		return fmt.Errorf("upsert arena game: %w", err)
	}
	return nil
}

const selectGame = `SELECT
	id, game_uuid, white_model, black_model,
	result, result_method, result_text,
	start_fen, final_fen, moves_uci, moves_san, pgn,
	opening_eco, opening_name, white_fallbacks, black_fallbacks,
	started_at, ended_at, duration_ms
FROM arena_games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.ArenaGame, error) {
	var (
		g          domain.ArenaGame
		movesUCI   string
		movesSAN   string
		durationMS int64
	)
	if err := row.Scan(
		&g.ID, &g.GameUUID, &g.WhiteModel, &g.BlackModel,
		&g.Result, &g.ResultMethod, &g.ResultText,
		&g.StartFEN, &g.FinalFEN, &movesUCI, &movesSAN, &g.PGN,
		&g.OpeningECO, &g.OpeningName, &g.WhiteFallbacks, &g.BlackFallbacks,
		&g.StartedAt, &g.EndedAt, &durationMS,
	); err != nil {
		return nil, err
	}
	g.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(movesUCI), &g.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal([]byte(movesSAN), &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &g, nil
}

func (r *sqlRepository) RecentGames(ctx context.Context, limit int) ([]*domain.ArenaGame, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(selectGame+` ORDER BY ended_at DESC, id DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("select arena games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.ArenaGame, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan arena game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *sqlRepository) GetGame(ctx context.Context, gameUUID string) (*domain.ArenaGame, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, r.rebind(selectGame+` WHERE game_uuid = $1`), gameUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select arena game: %w", err)
	}
	return g, nil
}

func (r *sqlRepository) ModelRecords(ctx context.Context) ([]domain.ModelRecord, error) {
	const q = `SELECT model, COUNT(*), SUM(win), SUM(loss), SUM(draw), SUM(fb) FROM (
		SELECT white_model AS model,
			CASE WHEN result = '1-0' THEN 1 ELSE 0 END AS win,
			CASE WHEN result = '0-1' THEN 1 ELSE 0 END AS loss,
			CASE WHEN result = '1/2-1/2' THEN 1 ELSE 0 END AS draw,
			white_fallbacks AS fb
		FROM arena_games
		UNION ALL
		SELECT black_model,
			CASE WHEN result = '0-1' THEN 1 ELSE 0 END,
			CASE WHEN result = '1-0' THEN 1 ELSE 0 END,
			CASE WHEN result = '1/2-1/2' THEN 1 ELSE 0 END,
			black_fallbacks
		FROM arena_games
	) AS per_side
	GROUP BY model
	ORDER BY model`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select model records: %w", err)
	}
	defer rows.Close()

	var out []domain.ModelRecord
	for rows.Next() {
		var rec domain.ModelRecord
		if err := rows.Scan(&rec.Model, &rec.Games, &rec.Wins, &rec.Losses, &rec.Draws, &rec.Fallbacks); err != nil {
			return nil, fmt.Errorf("scan model record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
