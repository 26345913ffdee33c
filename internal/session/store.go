// Package session keeps blind recorders in Redis so a recording survives restarts
// and can be driven from both the bot and the HTTP API.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/park285/Cheese-BlindChess-bot/internal/blind"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrConflict      = errors.New("session changed concurrently")
)

const (
	DefaultTTL = 24 * time.Hour
	maxRetries = 3
)

// Session is the persisted recorder: the move list is the only state, the
// board is rebuilt from it on every access.
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Room      string    `json:"room,omitempty"`
	Color     string    `json:"color"`
	Moves     []string  `json:"moves"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) ChessColor() nchess.Color {
	c, _ := rules.ParseColor(s.Color)
	return c
}

// Recorder rebuilds the blind recorder for s.
func (s *Session) Recorder() (*blind.Recorder, error) {
	rec, _, err := blind.Restore(s.ChessColor(), s.Moves)
	return rec, err
}

type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: DefaultTTL, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a recording for owner. An existing recording of the same color is
// resumed; one of the other color is replaced.
func (s *Store) Start(ctx context.Context, owner, room string, color nchess.Color) (*Session, bool, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, false, fmt.Errorf("owner required")
	}
	if color != nchess.White && color != nchess.Black {
		return nil, false, fmt.Errorf("invalid color")
	}
	existing, err := s.Active(ctx, owner)
	switch {
	case err == nil && existing.Color == rules.ColorName(color):
		return existing, true, nil
	case err == nil:
		if cerr := s.Close(ctx, existing.ID); cerr != nil && !errors.Is(cerr, ErrNotFound) {
			return nil, false, cerr
		}
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Owner:     owner,
		Room:      strings.TrimSpace(room),
		Color:     rules.ColorName(color),
		Moves:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, false, err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.ID), raw, s.ttl)
	pipe.Set(ctx, ownerKey(owner), sess.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, false, err
	}
	s.logger.Info("blind_session_start",
		zap.String("session_id", sess.ID),
		zap.String("owner", owner),
		zap.String("room", sess.Room),
		zap.String("color", sess.Color),
	)
	return sess, false, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Active returns owner's current recording.
func (s *Store) Active(ctx context.Context, owner string) (*Session, error) {
	id, err := s.rdb.Get(ctx, ownerKey(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// index outlived the session
		_ = s.rdb.Del(ctx, ownerKey(owner)).Err()
	}
	return sess, err
}

// Commit records from→to. The error wraps blind.ErrIllegalMove when the move is refused.
func (s *Store) Commit(ctx context.Context, id string, from, to nchess.Square) (*Session, string, error) {
	var san string
	sess, err := s.update(ctx, id, func(rec *blind.Recorder) error {
		var cerr error
		san, cerr = rec.Commit(from, to)
		return cerr
	})
	if err != nil {
		return nil, "", err
	}
	return sess, san, nil
}

func (s *Store) Undo(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(rec *blind.Recorder) error {
		if !rec.Undo() {
			return ErrNothingToUndo
		}
		return nil
	})
}

func (s *Store) Reset(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(rec *blind.Recorder) error {
		rec.Reset()
		return nil
	})
}

// Targets lists the destinations the recorder would accept from square from.
func (s *Store) Targets(ctx context.Context, id string, from nchess.Square) ([]nchess.Square, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec, err := sess.Recorder()
	if err != nil {
		return nil, err
	}
	return rec.Targets(from), nil
}

// Close deletes the session and, when it still points at it, the owner index.
func (s *Store) Close(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	owner := ownerKey(sess.Owner)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, owner).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKey(id))
			if cur == id {
				pipe.Del(ctx, owner)
			}
			return nil
		})
		return err
	}, owner)
	if err != nil {
		return err
	}
	s.logger.Info("blind_session_close", zap.String("session_id", id), zap.String("owner", sess.Owner))
	return nil
}

// update runs fn against a recorder rebuilt from the stored list and writes the
// new list back under WATCH, retrying a few times on concurrent writes.
func (s *Store) update(ctx context.Context, id string, fn func(*blind.Recorder) error) (*Session, error) {
	key := sessionKey(id)
	var out *Session
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		rec, dropped, err := blind.Restore(cur.ChessColor(), cur.Moves, blind.WithLogger(s.logger))
		if err != nil {
			return err
		}
		if dropped > 0 {
			s.logger.Warn("blind_session_replay_dropped", zap.String("session_id", id), zap.Int("dropped", dropped))
		}
		if err := fn(rec); err != nil {
			return err
		}
		cur.Moves = rec.Moves()
		cur.UpdatedAt = s.now()
		next, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			pipe.Expire(ctx, ownerKey(cur.Owner), s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = &cur
		return nil
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Debug("blind_session_update", zap.String("session_id", id), zap.Int("moves", len(out.Moves)))
		return out, nil
	}
	return nil, ErrConflict
}

func sessionKey(id string) string { return "blind:session:" + strings.TrimSpace(id) }

func ownerKey(owner string) string { return "blind:session:owner:" + strings.TrimSpace(owner) }
