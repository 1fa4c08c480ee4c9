package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs are stylized silhouettes on a 45x45 viewBox, kept in code so
// the renderer has no asset directory to ship. White pieces are filled light
// with a dark outline, black pieces the inverse.
var pieceGlyphs = map[nchess.PieceType]string{
	nchess.King: `<path d="M22.5 6 L22.5 12 M19.5 9 L25.5 9" style="fill:none;stroke:%[2]s;stroke-width:2.5"/>
<path d="M22.5 13 C17 13 13 17 13 22 C13 26 16 29 16 29 L13 37 L32 37 L29 29 C29 29 32 26 32 22 C32 17 28 13 22.5 13 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<rect x="12" y="37" width="21" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
	nchess.Queen: `<circle cx="9" cy="12" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<circle cx="16" cy="9" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<circle cx="22.5" cy="8" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<circle cx="29" cy="9" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<circle cx="36" cy="12" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M9 14 L14 32 L31 32 L36 14 L29 26 L22.5 11 L16 26 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M13 32 L12 37 L33 37 L32 32 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<rect x="11" y="37" width="23" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
	nchess.Rook: `<path d="M11 9 L11 14 L34 14 L34 9 L30 9 L30 11 L26 11 L26 9 L19 9 L19 11 L15 11 L15 9 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M14 14 L15 31 L30 31 L31 14 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M13 31 L12 37 L33 37 L32 31 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<rect x="11" y="37" width="23" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="9" r="2.5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M22.5 12 C17 16 15 21 15 25 C15 30 18 33 22.5 33 C27 33 30 30 30 25 C30 21 28 16 22.5 12 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M22.5 17 L22.5 26 M18.5 21.5 L26.5 21.5" style="fill:none;stroke:%[2]s;stroke-width:1.5"/>
<path d="M16 33 L14 37 L31 37 L29 33 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<rect x="12" y="37" width="21" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
	nchess.Knight: `<path d="M15 37 C15 26 17 21 22 17 C20 15 20 12 21 9 C24 10 26 12 27 14 C31 16 33 22 33 29 L33 37 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M21 9 L17 14 L21 16" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<circle cx="24.5" cy="15.5" r="1.2" style="fill:%[2]s"/>
<rect x="12" y="37" width="23" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
	nchess.Pawn: `<circle cx="22.5" cy="12" r="5" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<path d="M19 16 C17 20 17 24 19 27 L16 35 L29 35 L26 27 C28 24 28 20 26 16 Z" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>
<rect x="13" y="35" width="19" height="4" style="fill:%[1]s;stroke:%[2]s;stroke-width:1.5"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	doc, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG([]byte(doc))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 {
		w = size
		icon.ViewBox.W = float64(w)
	}
	if h <= 0 {
		h = size
		icon.ViewBox.H = float64(h)
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

func pieceSVG(piece nchess.Piece) (string, error) {
	glyph, ok := pieceGlyphs[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}

	fill, outline := "#f5f5f0", "#1a1a1a"
	if piece.Color() == nchess.Black {
		fill, outline = "#1a1a1a", "#f5f5f0"
	}

	body := fmt.Sprintf(glyph, fill, outline)
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">` + body + `</svg>`, nil
}
