package reconcile

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/rules"
	"go.uber.org/zap"
)

// Simulator runs reconciliations. It holds only configuration, so one value can
// serve any number of runs; every run owns a fresh position.
type Simulator struct {
	policy   Policy
	describe Describer
	logger   *zap.Logger
}

type Option func(*Simulator)

func WithDescriber(d Describer) Option {
	return func(s *Simulator) {
		if d != nil {
			s.describe = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(policy Policy, opts ...Option) *Simulator {
	if policy != PolicyStrict && policy != PolicySeekNext {
		policy = DefaultPolicy
	}
	s := &Simulator{policy: policy, describe: englishDescriber{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Policy() Policy { return s.policy }

// Simulate is New(policy).Run(white, black).
func Simulate(white, black []string, policy Policy) *Trace {
	return New(policy).Run(white, black)
}

// Run reconciles the two lists and returns the full trace.
func (s *Simulator) Run(white, black []string) *Trace {
	return s.RunEach(white, black, nil)
}

// RunEach is Run with a callback invoked for every step as it is produced.
func (s *Simulator) RunEach(white, black []string, emit func(Step)) *Trace {
	r := &run{
		sim:     s,
		pos:     rules.NewPosition(),
		cursors: map[nchess.Color]*cursor{nchess.White: {list: white}, nchess.Black: {list: black}},
		bonus:   map[nchess.Color]int{},
		trace:   &Trace{Policy: s.policy, Termination: TerminationExhausted},
		emit:    emit,
	}
	r.record(stepInput{event: EventGameStart, side: nchess.White})
	r.loop()

	r.trace.Outcome = r.pos.Outcome().String()
	r.trace.Method = r.pos.Method().String()
	final := r.trace.Final()
	s.logger.Info("reconcile_run",
		zap.String("policy", string(s.policy)),
		zap.Int("white_moves", len(white)),
		zap.Int("black_moves", len(black)),
		zap.Int("steps", len(r.trace.Steps)),
		zap.String("termination", string(r.trace.Termination)),
		zap.Int("white_score", final.WhiteScore),
		zap.Int("black_score", final.BlackScore),
	)
	return r.trace
}

type cursor struct {
	list []string
	next int
}

func (c *cursor) remaining() bool { return c.next < len(c.list) }

func (c *cursor) take() string {
	v := strings.TrimSpace(c.list[c.next])
	c.next++
	return v
}

type run struct {
	sim     *Simulator
	pos     *rules.Position
	cursors map[nchess.Color]*cursor
	bonus   map[nchess.Color]int
	trace   *Trace
	emit    func(Step)
}

type stepInput struct {
	event     Event
	side      nchess.Color
	san       string
	attempted string
	skipped   []string
	illegal   bool
}

func (r *run) loop() {
	for {
		if r.pos.IsGameOver() {
			r.trace.Termination = TerminationGameOver
			return
		}
		if !r.cursors[nchess.White].remaining() && !r.cursors[nchess.Black].remaining() {
			return
		}
		side := r.pos.Turn()
		cur := r.cursors[side]
		if !cur.remaining() {
			return
		}
		notation := cur.take()
		if r.tryApply(side, notation, EventMoveMade, nil) {
			continue
		}
		if r.sim.policy == PolicyStrict {
			if !r.forfeit(side, notation) {
				return
			}
			continue
		}
		if !r.seekNext(side, cur, notation) {
			r.trace.Termination = TerminationNoLegalMove
			return
		}
	}
}

// tryApply probes notation and, when legal, applies and records it.
func (r *run) tryApply(side nchess.Color, notation string, ev Event, skipped []string) bool {
	if _, ok := r.pos.Probe(notation); !ok {
		return false
	}
	san, err := r.pos.Apply(notation)
	if err != nil {
		return false
	}
	if r.pos.IsCheckmate() {
		r.bonus[side] += MateBonus
	} else if r.pos.InCheck() {
		r.bonus[side] += CheckBonus
	}
	r.record(stepInput{event: ev, side: side, san: san, attempted: notation, skipped: skipped})
	return true
}

func (r *run) forfeit(side nchess.Color, notation string) bool {
	if err := r.pos.ForceTurn(rules.Opponent(side)); err != nil {
		r.sim.logger.Error("reconcile_force_turn_error", zap.String("fen", r.pos.FEN()), zap.Error(err))
		return false
	}
	r.record(stepInput{event: EventIllegalAttempt, side: side, attempted: notation, illegal: true})
	return true
}

func (r *run) seekNext(side nchess.Color, cur *cursor, first string) bool {
	skipped := []string{first}
	for cur.remaining() {
		notation := cur.take()
		if r.tryApply(side, notation, EventAlternativeFound, skipped) {
			return true
		}
		skipped = append(skipped, notation)
	}
	r.record(stepInput{event: EventNoLegalMove, side: side, skipped: skipped, illegal: true})
	return false
}

func (r *run) record(in stepInput) {
	m := computeMaterial(r.pos.Board())
	label := in.san
	if label == "" {
		label = in.attempted
	}
	step := Step{
		Index:           len(r.trace.Steps),
		FEN:             r.pos.FEN(),
		MoveSAN:         in.san,
		Attempted:       in.attempted,
		Skipped:         in.skipped,
		Event:           in.event,
		Description:     r.sim.describe.Describe(in.event, in.side, label),
		WhiteScore:      r.bonus[nchess.White] + m.white,
		BlackScore:      r.bonus[nchess.Black] + m.black,
		WhiteMaterial:   m.white,
		BlackMaterial:   m.black,
		CapturedByWhite: m.capturedByWhite,
		CapturedByBlack: m.capturedByBlack,
		Turn:            rules.ColorName(in.side),
		Check:           r.pos.InCheck(),
		Mate:            r.pos.IsCheckmate(),
		IllegalAttempt:  in.illegal,
	}
	r.trace.Steps = append(r.trace.Steps, step)
	r.sim.logger.Debug("reconcile_step",
		zap.Int("index", step.Index),
		zap.String("event", string(step.Event)),
		zap.String("turn", step.Turn),
		zap.String("san", step.MoveSAN),
		zap.String("attempted", step.Attempted),
	)
	if r.emit != nil {
		r.emit(step)
	}
}
