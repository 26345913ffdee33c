// Package render draws blind boards as PNG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSquareSize = 60
	minSquareSize     = 20
)

type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

type Options struct {
	// HideColor hides every piece of that color except its king. NoColor shows all.
	HideColor nchess.Color
	// Targets are marked with dots, typically the proposer's destinations.
	Targets  []nchess.Square
	LastMove *MoveHighlight
	// Flip draws the board from black's side.
	Flip   bool
	Header string
	Footer string
}

type Renderer struct {
	squareSize int
}

// New builds a renderer; boardSize is the width of the 8x8 area in pixels.
func New(boardSize int) *Renderer {
	sq := boardSize / 8
	if sq < minSquareSize {
		sq = DefaultSquareSize
	}
	return &Renderer{squareSize: sq}
}

func (r *Renderer) SquareSize() int { return r.squareSize }

func (r *Renderer) PNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	img, err := r.Image(ctx, board, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Image(ctx context.Context, board *nchess.Board, opts Options) (*image.RGBA, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	size := r.squareSize
	margin := size / 2
	if margin < 18 {
		margin = 18
	}
	top, bottom := margin, margin
	if strings.TrimSpace(opts.Header) != "" {
		top += lineHeight
	}
	if strings.TrimSpace(opts.Footer) != "" {
		bottom += lineHeight
	}
	origin := image.Point{X: margin, Y: top}
	img := image.NewRGBA(image.Rect(0, 0, size*8+margin*2, size*8+top+bottom))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := geometry{size: size, origin: origin, flip: opts.Flip}
	drawSquares(img, g)
	if hl := opts.LastMove; hl != nil {
		drawSquareOverlay(img, g.rect(hl.From), lastMoveColor)
		drawSquareOverlay(img, g.rect(hl.To), lastMoveColor)
	}
	if err := drawPieces(img, board, g, opts.HideColor); err != nil {
		return nil, err
	}
	for _, sq := range opts.Targets {
		drawTarget(img, board, g, sq)
	}
	drawCoordinates(img, g, margin)

	face := basicfont.Face7x13
	if h := strings.TrimSpace(opts.Header); h != "" {
		drawText(img, face, h, margin, lineHeight-3, textColor)
	}
	if f := strings.TrimSpace(opts.Footer); f != "" {
		drawText(img, face, f, margin, img.Bounds().Dy()-6, textColor)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

const lineHeight = 18

var (
	backgroundColor = color.RGBA{R: 28, G: 31, B: 46, A: 255}
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	lastMoveColor   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	targetDotColor  = color.NRGBA{R: 30, G: 120, B: 60, A: 170}
	targetRingColor = color.NRGBA{R: 200, G: 40, B: 40, A: 150}
	coordinateColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	textColor       = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

type geometry struct {
	size   int
	origin image.Point
	flip   bool
}

// cell maps a square to its column and row on screen.
func (g geometry) cell(sq nchess.Square) (col, row int) {
	col, row = int(sq.File()), 7-int(sq.Rank())
	if g.flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (g geometry) rect(sq nchess.Square) image.Rectangle {
	col, row := g.cell(sq)
	x := g.origin.X + col*g.size
	y := g.origin.Y + row*g.size
	return image.Rect(x, y, x+g.size, y+g.size)
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, 64)
	for i := 0; i < 64; i++ {
		out = append(out, nchess.Square(i))
	}
	return out
}

func drawSquares(dst *image.RGBA, g geometry) {
	for _, sq := range allSquares() {
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, g.rect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst *image.RGBA, board *nchess.Board, g geometry, hide nchess.Color) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		if hide != nchess.NoColor && piece.Color() == hide && piece.Type() != nchess.King {
			continue
		}
		img, err := renderPieceImage(piece, g.size)
		if err != nil {
			return err
		}
		r := g.rect(sq)
		imagedraw.Draw(dst, r, img, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawTarget puts a dot on empty squares and a ring on occupied ones.
func drawTarget(dst *image.RGBA, board *nchess.Board, g geometry, sq nchess.Square) {
	r := g.rect(sq)
	center := image.Pt(r.Min.X+g.size/2, r.Min.Y+g.size/2)
	if board.Piece(sq) == nchess.NoPiece {
		drawDisc(dst, center, g.size/7, targetDotColor)
		return
	}
	outer, inner := g.size/2-2, g.size/2-7
	for y := -outer; y <= outer; y++ {
		for x := -outer; x <= outer; x++ {
			d := x*x + y*y
			if d <= outer*outer && d > inner*inner {
				blendPixel(dst, center.X+x, center.Y+y, targetRingColor)
			}
		}
	}
}

func drawCoordinates(dst *image.RGBA, g geometry, margin int) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	for _, sq := range allSquares() {
		col, row := g.cell(sq)
		if col == 0 {
			y := g.origin.Y + row*g.size + g.size/2 + ascent/2
			drawCenteredText(dst, face, sq.Rank().String(), g.origin.X-margin/2, y)
		}
		if row == 7 {
			x := g.origin.X + col*g.size + g.size/2
			drawCenteredText(dst, face, sq.File().String(), x, g.origin.Y+8*g.size+ascent+2)
		}
	}
}

func drawCenteredText(dst *image.RGBA, face font.Face, text string, centerX, baseline int) {
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateColor)}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}

func drawText(dst *image.RGBA, face font.Face, text string, x, baseline int, clr color.Color) {
	d := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(clr), Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}

func drawSquareOverlay(dst *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, center.X, center.Y, clr)
		return
	}
	rSquared := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= rSquared {
				blendPixel(img, center.X+x, center.Y+y, clr)
			}
		}
	}
}

// blendPixel composites clr over the pixel at x,y.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 65535 - sa
	// RGBA() is premultiplied, so src-over is a straight sum
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(dst.R)*0x101*inv/65535) >> 8),
		G: uint8((sg + uint32(dst.G)*0x101*inv/65535) >> 8),
		B: uint8((sb + uint32(dst.B)*0x101*inv/65535) >> 8),
		A: uint8((sa + uint32(dst.A)*0x101*inv/65535) >> 8),
	})
}
