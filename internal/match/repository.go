package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/park285/Cheese-BlindChess-bot/internal/domain"
)

// Repository persists resolved matches.
type Repository interface {
	SaveResult(ctx context.Context, g *domain.BlindGame) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.BlindGame, error)
}

// Schema creates the results table.
const Schema = `CREATE TABLE IF NOT EXISTS blind_games (
    code         TEXT PRIMARY KEY,
    policy       TEXT NOT NULL,
    white_id     TEXT NOT NULL,
    white_name   TEXT NOT NULL DEFAULT '',
    black_id     TEXT NOT NULL,
    black_name   TEXT NOT NULL DEFAULT '',
    rooms        TEXT[] NOT NULL DEFAULT '{}',
    white_moves  JSONB NOT NULL,
    black_moves  JSONB NOT NULL,
    applied_san  JSONB NOT NULL,
    pgn          TEXT NOT NULL,
    winner       TEXT NOT NULL,
    white_score  INTEGER NOT NULL,
    black_score  INTEGER NOT NULL,
    termination  TEXT NOT NULL,
    opening_code TEXT NOT NULL DEFAULT '',
    opening_name TEXT NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ NOT NULL,
    ended_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS blind_games_white_idx ON blind_games (white_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS blind_games_black_idx ON blind_games (black_id, ended_at DESC);`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// SaveResult upserts a resolved match.
func (r *PostgresRepository) SaveResult(ctx context.Context, g *domain.BlindGame) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	whiteRaw, _ := json.Marshal(nonNil(g.WhiteMoves))
	blackRaw, _ := json.Marshal(nonNil(g.BlackMoves))
	appliedRaw, _ := json.Marshal(nonNil(g.AppliedSAN))

	q := `INSERT INTO blind_games (
        code, policy, white_id, white_name, black_id, black_name, rooms,
        white_moves, black_moves, applied_san, pgn,
        winner, white_score, black_score, termination, opening_code, opening_name,
        started_at, ended_at
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
      ) ON CONFLICT (code) DO UPDATE SET
        policy=EXCLUDED.policy,
        white_id=EXCLUDED.white_id,
        white_name=EXCLUDED.white_name,
        black_id=EXCLUDED.black_id,
        black_name=EXCLUDED.black_name,
        rooms=EXCLUDED.rooms,
        white_moves=EXCLUDED.white_moves,
        black_moves=EXCLUDED.black_moves,
        applied_san=EXCLUDED.applied_san,
        pgn=EXCLUDED.pgn,
        winner=EXCLUDED.winner,
        white_score=EXCLUDED.white_score,
        black_score=EXCLUDED.black_score,
        termination=EXCLUDED.termination,
        opening_code=EXCLUDED.opening_code,
        opening_name=EXCLUDED.opening_name,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at`

	_, err := r.db.ExecContext(ctx, q,
		g.Code, g.Policy,
		g.WhiteID, g.WhiteName, g.BlackID, g.BlackName,
		pq.Array(g.Rooms),
		string(whiteRaw), string(blackRaw), string(appliedRaw), g.PGN,
		g.Winner, g.WhiteScore, g.BlackScore, g.Termination, g.OpeningCode, g.OpeningName,
		g.StartedAt, g.EndedAt,
	)
	return err
}

func (r *PostgresRepository) RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.BlindGame, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `SELECT code, policy, white_id, white_name, black_id, black_name, rooms,
        white_moves, black_moves, applied_san, pgn, winner, white_score, black_score,
        termination, opening_code, opening_name, started_at, ended_at
      FROM blind_games WHERE white_id = $1 OR black_id = $1
      ORDER BY ended_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.BlindGame
	for rows.Next() {
		var (
			g                        domain.BlindGame
			whiteRaw, blackRaw, appl []byte
		)
		if err := rows.Scan(&g.Code, &g.Policy, &g.WhiteID, &g.WhiteName, &g.BlackID, &g.BlackName,
			pq.Array(&g.Rooms), &whiteRaw, &blackRaw, &appl, &g.PGN, &g.Winner, &g.WhiteScore, &g.BlackScore,
			&g.Termination, &g.OpeningCode, &g.OpeningName, &g.StartedAt, &g.EndedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(whiteRaw, &g.WhiteMoves)
		_ = json.Unmarshal(blackRaw, &g.BlackMoves)
		_ = json.Unmarshal(appl, &g.AppliedSAN)
		out = append(out, &g)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// memrepo is a development-only in-memory repository used when no DB is configured.
type memrepo struct {
	mu     sync.RWMutex
	byCode map[string]*domain.BlindGame
}

func NewMemoryRepository() Repository {
	return &memrepo{byCode: make(map[string]*domain.BlindGame)}
}

func (m *memrepo) SaveResult(_ context.Context, g *domain.BlindGame) error {
	if g == nil {
		return nil
	}
	cp := *g
	m.mu.Lock()
	m.byCode[g.Code] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memrepo) RecentByUser(_ context.Context, userID string, limit int) ([]*domain.BlindGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*domain.BlindGame, 0)
	for _, g := range m.byCode {
		if g.Involves(userID) {
			cp := *g
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].Code < items[j].Code
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
