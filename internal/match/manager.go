package match

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/domain"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultTTL  = 24 * time.Hour
	codeRetries = 5
	maxRetries  = 3
)

// Manager runs blind matches: two players record lists separately, and once
// both are submitted the lists are reconciled on one board.
type Manager struct {
	rdb      *redis.Client
	ttl      time.Duration
	repo     Repository
	logger   *zap.Logger
	describe reconcile.Describer
	now      func() time.Time
}

type Option func(*Manager)

func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithRepository wires result persistence.
func WithRepository(r Repository) Option { return func(m *Manager) { m.repo = r } }

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDescriber localizes the step descriptions of resolved traces.
func WithDescriber(d reconcile.Describer) Option { return func(m *Manager) { m.describe = d } }

func NewManager(rdb *redis.Client, opts ...Option) *Manager {
	m := &Manager{rdb: rdb, ttl: DefaultTTL, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a lobby. The creator plays creatorColor; NoColor means white.
func (m *Manager) Create(ctx context.Context, creatorID, creatorName, room string, policy reconcile.Policy, creatorColor nchess.Color) (*Match, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, ErrInvalidArgs
	}
	if policy == "" {
		policy = reconcile.DefaultPolicy
	}
	now := m.now()
	mt := &Match{
		Policy:      policy,
		Status:      StatusLobby,
		CreatorID:   creatorID,
		CreatorRoom: strings.TrimSpace(room),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mt.CreatorRoom != "" {
		mt.Rooms = []string{mt.CreatorRoom}
	}
	if creatorColor == nchess.Black {
		mt.BlackID, mt.BlackName = creatorID, strings.TrimSpace(creatorName)
	} else {
		mt.WhiteID, mt.WhiteName = creatorID, strings.TrimSpace(creatorName)
	}

	for i := 0; i < codeRetries; i++ {
		code, err := codeGen()
		if err != nil {
			return nil, err
		}
		mt.Code = code
		raw, err := json.Marshal(mt)
		if err != nil {
			return nil, err
		}
		ok, err := m.rdb.SetNX(ctx, matchKey(code), raw, m.ttl).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := m.indexUser(ctx, creatorID, code); err != nil {
			return nil, err
		}
		m.logger.Info("match_create",
			zap.String("code", code),
			zap.String("room", mt.CreatorRoom),
			zap.String("creator_id", creatorID),
			zap.String("policy", string(policy)),
		)
		return mt, nil
	}
	return nil, fmt.Errorf("failed to allocate match code")
}

// Join seats userID on the free side.
func (m *Manager) Join(ctx context.Context, code, userID, userName, room string) (*Match, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(code) == "" {
		return nil, ErrInvalidArgs
	}
	mt, err := m.update(ctx, code, func(cur *Match) error {
		switch {
		case cur.Status == StatusFinished:
			return ErrFinished
		case cur.CreatorID == userID:
			return ErrSelfJoin
		case cur.WhiteID != "" && cur.BlackID != "":
			return ErrFull
		}
		if cur.WhiteID == "" {
			cur.WhiteID, cur.WhiteName = userID, strings.TrimSpace(userName)
		} else {
			cur.BlackID, cur.BlackName = userID, strings.TrimSpace(userName)
		}
		if r := strings.TrimSpace(room); r != "" && !cur.hasRoom(r) {
			cur.Rooms = append(cur.Rooms, r)
		}
		cur.Status = StatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.indexUser(ctx, userID, mt.Code); err != nil {
		return nil, err
	}
	m.logger.Info("match_join",
		zap.String("code", mt.Code),
		zap.String("white_id", mt.WhiteID),
		zap.String("black_id", mt.BlackID),
	)
	return mt, nil
}

// Submit stores userID's list. When the second list arrives the match is
// resolved and the trace is returned; otherwise the trace is nil.
func (m *Manager) Submit(ctx context.Context, code, userID string, moves []string) (*Match, *reconcile.Trace, error) {
	clean := make([]string, 0, len(moves))
	for _, mv := range moves {
		if mv = strings.TrimSpace(mv); mv != "" {
			clean = append(clean, mv)
		}
	}
	if len(clean) == 0 {
		return nil, nil, ErrEmptyList
	}
	var trace *reconcile.Trace
	mt, err := m.update(ctx, code, func(cur *Match) error {
		if cur.Status == StatusFinished {
			return ErrFinished
		}
		color, ok := cur.ColorOf(strings.TrimSpace(userID))
		if !ok {
			return ErrNotParticipant
		}
		if cur.Submitted(color) {
			return ErrAlreadySubmitted
		}
		if color == nchess.White {
			cur.WhiteMoves = clean
		} else {
			cur.BlackMoves = clean
		}
		trace = nil
		if cur.WhiteMoves != nil && cur.BlackMoves != nil && cur.BlackID != "" && cur.WhiteID != "" {
			trace = m.resolve(cur)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("match_submit",
		zap.String("code", mt.Code),
		zap.String("user_id", userID),
		zap.Int("moves", len(clean)),
		zap.Bool("resolved", trace != nil),
	)
	if trace != nil {
		m.persist(ctx, mt, trace)
	}
	return mt, trace, nil
}

// Replay re-runs the reconciliation of a finished match.
func (m *Manager) Replay(ctx context.Context, code string) (*Match, *reconcile.Trace, error) {
	mt, err := m.Get(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if mt.Status != StatusFinished {
		return mt, nil, nil
	}
	return mt, m.simulator(mt.Policy).Run(mt.WhiteMoves, mt.BlackMoves), nil
}

func (m *Manager) resolve(cur *Match) *reconcile.Trace {
	trace := m.simulator(cur.Policy).Run(cur.WhiteMoves, cur.BlackMoves)
	sum := trace.Summary()
	cur.Summary = &sum
	cur.AppliedSAN = trace.AppliedSAN()
	cur.Status = StatusFinished
	cur.FinishedAt = m.now()
	return trace
}

func (m *Manager) simulator(p reconcile.Policy) *reconcile.Simulator {
	opts := []reconcile.Option{reconcile.WithLogger(m.logger)}
	if m.describe != nil {
		opts = append(opts, reconcile.WithDescriber(m.describe))
	}
	return reconcile.New(p, opts...)
}

func (m *Manager) Get(ctx context.Context, code string) (*Match, error) {
	raw, err := m.rdb.Get(ctx, matchKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var mt Match
	if err := json.Unmarshal(raw, &mt); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", code, err)
	}
	return &mt, nil
}

// ActiveByUser returns the user's most recently updated unfinished match.
func (m *Manager) ActiveByUser(ctx context.Context, userID string) (*Match, error) {
	codes, err := m.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Match
	for _, c := range codes {
		mt, err := m.Get(ctx, c)
		if errors.Is(err, ErrNotFound) {
			_ = m.rdb.SRem(ctx, userKey(userID), c).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		if mt.Status != StatusFinished {
			list = append(list, mt)
		}
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

func (m *Manager) update(ctx context.Context, code string, fn func(*Match) error) (*Match, error) {
	key := matchKey(code)
	var out *Match
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Match
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		cur.UpdatedAt = m.now()
		next, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, m.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = &cur
		return nil
	}
	for i := 0; i < maxRetries; i++ {
		err := m.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

func (m *Manager) indexUser(ctx context.Context, userID, code string) error {
	key := userKey(userID)
	if err := m.rdb.SAdd(ctx, key, code).Err(); err != nil {
		return err
	}
	// 인덱스 TTL도 대국 TTL에 맞춰 갱신
	_ = m.rdb.Expire(ctx, key, m.ttl).Err()
	return nil
}

// persist saves the resolved match when a repository is attached.
func (m *Manager) persist(ctx context.Context, mt *Match, trace *reconcile.Trace) {
	if m.repo == nil {
		return
	}
	rec := Record(mt, trace)
	if err := m.repo.SaveResult(ctx, rec); err != nil {
		m.logger.Error("match_result_persist_error", zap.String("code", mt.Code), zap.Error(err))
		return
	}
	m.logger.Info("match_result_persist", zap.String("code", mt.Code), zap.String("winner", rec.Winner))
}

// Record flattens a resolved match into its persisted form.
func Record(mt *Match, trace *reconcile.Trace) *domain.BlindGame {
	g := &domain.BlindGame{
		Code:       mt.Code,
		Policy:     string(mt.Policy),
		WhiteID:    mt.WhiteID,
		WhiteName:  mt.WhiteName,
		BlackID:    mt.BlackID,
		BlackName:  mt.BlackName,
		Rooms:      append([]string(nil), mt.Rooms...),
		WhiteMoves: mt.WhiteMoves,
		BlackMoves: mt.BlackMoves,
		AppliedSAN: trace.AppliedSAN(),
		StartedAt:  mt.CreatedAt,
		EndedAt:    mt.FinishedAt,
	}
	sum := trace.Summary()
	g.Winner = sum.Winner
	g.WhiteScore, g.BlackScore = sum.WhiteScore, sum.BlackScore
	g.Termination = string(sum.Termination)
	g.OpeningCode, g.OpeningName = sum.OpeningCode, sum.OpeningName
	g.PGN = BuildPGN(g, trace)
	return g
}

// codeGen returns `BL-` + 6 upper alnum.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return "BL-" + string(b), nil
}

func matchKey(code string) string {
	return "blind:match:" + strings.ToUpper(strings.TrimSpace(code))
}

func userKey(userID string) string { return "blind:match:user:" + strings.TrimSpace(userID) }
