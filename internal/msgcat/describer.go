package msgcat

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-BlindChess-bot/internal/reconcile"
)

// Describer renders simulator step descriptions from step.<event> keys.
type Describer struct {
	cat *Catalog
}

func NewDescriber(c *Catalog) Describer { return Describer{cat: c} }

func (d Describer) Describe(ev reconcile.Event, side nchess.Color, notation string) string {
	return d.cat.Text("step."+string(ev), map[string]any{
		"Side": d.cat.Side(side),
		"Move": notation,
	})
}

// Side is the localized name of a color.
func (c *Catalog) Side(color nchess.Color) string {
	if color == nchess.Black {
		return c.Text("side.black", nil)
	}
	return c.Text("side.white", nil)
}

// Piece localizes a lower-case piece name such as "knight".
func (c *Catalog) Piece(name string) string {
	if c.Has("piece." + name) {
		return c.Text("piece."+name, nil)
	}
	return name
}

// Winner localizes "white", "black" or "draw".
func (c *Catalog) Winner(w string) string {
	return c.Text("winner."+w, nil)
}

// Termination localizes a trace termination reason.
func (c *Catalog) Termination(t reconcile.Termination) string {
	return c.Text("termination."+string(t), nil)
}

var _ reconcile.Describer = Describer{}
