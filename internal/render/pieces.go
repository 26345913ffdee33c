package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	svg "github.com/ajstarks/svgo"
	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// glyphs are drawn on a 100x100 view box.
const glyphBox = 100

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceStyle(c nchess.Color) string {
	if c == nchess.White {
		return "fill:#f8f8f8;stroke:#1b1b1b;stroke-width:4"
	}
	return "fill:#262626;stroke:#0a0a0a;stroke-width:4"
}

func accentStyle(c nchess.Color) string {
	if c == nchess.White {
		return "fill:none;stroke:#1b1b1b;stroke-width:4"
	}
	return "fill:none;stroke:#d8d8d8;stroke-width:4"
}

// PieceSVG returns a standalone SVG document for piece.
func PieceSVG(piece nchess.Piece) []byte {
	var buf bytes.Buffer
	c := svg.New(&buf)
	c.Startview(glyphBox, glyphBox, 0, 0, glyphBox, glyphBox)
	style := pieceStyle(piece.Color())
	accent := accentStyle(piece.Color())

	// shared base
	c.Rect(22, 80, 56, 10, style)
	switch piece.Type() {
	case nchess.Pawn:
		c.Polygon([]int{36, 64, 70, 30}, []int{50, 50, 80, 80}, style)
		c.Circle(50, 38, 14, style)
	case nchess.Rook:
		c.Rect(30, 38, 40, 42, style)
		c.Polygon(
			[]int{26, 26, 36, 36, 45, 45, 55, 55, 64, 64, 74, 74},
			[]int{40, 18, 18, 26, 26, 18, 18, 26, 26, 18, 18, 40},
			style)
	case nchess.Knight:
		c.Polygon(
			[]int{30, 34, 44, 40, 52, 70, 74, 72, 58, 62, 72},
			[]int{80, 56, 44, 30, 18, 22, 40, 52, 48, 62, 80},
			style)
		c.Circle(56, 30, 3, accent)
	case nchess.Bishop:
		c.Polygon([]int{38, 62, 68, 32}, []int{60, 60, 80, 80}, style)
		c.Ellipse(50, 44, 16, 20, style)
		c.Circle(50, 18, 6, style)
		c.Line(44, 40, 56, 50, accent)
	case nchess.Queen:
		c.Polygon(
			[]int{28, 20, 36, 42, 50, 58, 64, 80, 72},
			[]int{80, 30, 50, 24, 46, 24, 50, 30, 80},
			style)
		tips := []int{26, 20, 20, 26}
		for i, x := range []int{20, 42, 58, 80} {
			c.Circle(x, tips[i], 6, style)
		}
	case nchess.King:
		c.Polygon([]int{30, 26, 74, 70}, []int{80, 44, 44, 80}, style)
		c.Rect(45, 10, 10, 34, style)
		c.Rect(36, 18, 28, 9, style)
		c.Line(30, 60, 70, 60, accent)
	}
	c.End()
	return buf.Bytes()
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(bytes.NewReader(PieceSVG(piece)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", piece.String(), err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
