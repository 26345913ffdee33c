package domain

import "time"

// BlindGame is the persisted outcome of a resolved blind match.
type BlindGame struct {
	Code        string
	Policy      string
	WhiteID     string
	WhiteName   string
	BlackID     string
	BlackName   string
	Rooms       []string
	WhiteMoves  []string
	BlackMoves  []string
	AppliedSAN  []string
	PGN         string
	Winner      string
	WhiteScore  int
	BlackScore  int
	Termination string
	OpeningCode string
	OpeningName string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Involves reports whether userID played either side.
func (g *BlindGame) Involves(userID string) bool {
	return g != nil && userID != "" && (g.WhiteID == userID || g.BlackID == userID)
}
