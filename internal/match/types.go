package match

import (
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

// Status is the lifecycle of a blind match.
type Status string

const (
	StatusLobby    Status = "LOBBY"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Match is stored as JSON under blind:match:<code>.
type Match struct {
	Code        string           `json:"code"`
	Policy      reconcile.Policy `json:"policy"`
	Status      Status           `json:"status"`
	CreatorID   string           `json:"creator_id"`
	CreatorRoom string           `json:"creator_room"`

	WhiteID   string `json:"white_id,omitempty"`
	WhiteName string `json:"white_name,omitempty"`
	BlackID   string `json:"black_id,omitempty"`
	BlackName string `json:"black_name,omitempty"`

	Rooms []string `json:"rooms"`

	// nil until the side submits
	WhiteMoves []string `json:"white_moves,omitempty"`
	BlackMoves []string `json:"black_moves,omitempty"`

	Summary    *reconcile.Summary `json:"summary,omitempty"`
	AppliedSAN []string           `json:"applied_san,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// ColorOf returns the side userID plays.
func (m *Match) ColorOf(userID string) (nchess.Color, bool) {
	switch {
	case userID == "":
		return nchess.NoColor, false
	case m.WhiteID == userID:
		return nchess.White, true
	case m.BlackID == userID:
		return nchess.Black, true
	}
	return nchess.NoColor, false
}

func (m *Match) Submitted(c nchess.Color) bool {
	if c == nchess.White {
		return m.WhiteMoves != nil
	}
	return m.BlackMoves != nil
}

func (m *Match) hasRoom(room string) bool {
	for _, r := range m.Rooms {
		if r == room {
			return true
		}
	}
	return false
}

var (
	ErrInvalidArgs      = errf("invalid arguments")
	ErrNotFound         = errf("match not found or expired")
	ErrFull             = errf("match already has two players")
	ErrSelfJoin         = errf("cannot join own match")
	ErrFinished         = errf("match already finished")
	ErrNotParticipant   = errf("user is not in this match")
	ErrAlreadySubmitted = errf("move list already submitted")
	ErrEmptyList        = errf("move list is empty")
	ErrConflict         = errf("match changed concurrently")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
