package boardimg

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func boardFromFEN(t *testing.T, fen string) *nchess.Board {
	t.Helper()
	option, err := nchess.FEN(fen)
	if err != nil {
		t.Fatalf("parse fen: %v", err)
	}
	return nchess.NewGame(option).Position().Board()
}

func TestRenderPNGStartPosition(t *testing.T) {
	r := NewRenderer(48)
	board := boardFromFEN(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")

	data, err := r.RenderPNG(context.Background(), board)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	// 8 squares of 48px plus half-square margins on each side.
	want := 48*8 + 48
	if img.Bounds().Dx() != want || img.Bounds().Dy() != want {
		t.Fatalf("bounds = %v, want %dx%d", img.Bounds(), want, want)
	}
}

func TestRenderPNGEmptyBoard(t *testing.T) {
	r := NewRenderer(32)
	board := boardFromFEN(t, "8/8/8/8/8/8/8/8 w - - 0 1")
	if _, err := r.RenderPNG(context.Background(), board); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
}

func TestRenderPNGNilBoard(t *testing.T) {
	r := NewRenderer(32)
	if _, err := r.RenderPNG(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil board")
	}
}

func TestRenderPNGCancelledContext(t *testing.T) {
	r := NewRenderer(32)
	board := boardFromFEN(t, "8/8/8/8/8/8/8/8 w - - 0 1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, board); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestPieceGlyphsCoverEveryType(t *testing.T) {
	types := []nchess.PieceType{nchess.King, nchess.Queen, nchess.Rook, nchess.Bishop, nchess.Knight, nchess.Pawn}
	for _, pt := range types {
		if _, ok := pieceGlyphs[pt]; !ok {
			t.Fatalf("missing glyph for %v", pt)
		}
	}
}

func TestRenderPieceImageCached(t *testing.T) {
	p := nchess.WhiteQueen
	a, err := renderPieceImage(p, 40)
	if err != nil {
		t.Fatalf("renderPieceImage: %v", err)
	}
	b, err := renderPieceImage(p, 40)
	if err != nil {
		t.Fatalf("renderPieceImage: %v", err)
	}
	if a != b {
		t.Fatalf("expected cached image to be reused")
	}
}
