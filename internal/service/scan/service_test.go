package scan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/ChessSnap-PDF/internal/boardimg"
	"github.com/park285/ChessSnap-PDF/internal/service/cache"
	"github.com/park285/ChessSnap-PDF/internal/visionfast"
)

const validFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

type fakePages struct {
	pages []visionfast.Page
	err   error
}

func (f *fakePages) RenderPDF(ctx context.Context, pdfData string) ([]visionfast.Page, error) {
	return f.pages, f.err
}

type fakeDetector struct {
	det  *visionfast.Detection
	err  error
	gotX int
	gotY int
}

func (f *fakeDetector) DetectBoard(ctx context.Context, imageData string, x, y int) (*visionfast.Detection, error) {
	f.gotX, f.gotY = x, y
	return f.det, f.err
}

type recordingSink struct {
	kinds []string
}

func (r *recordingSink) Publish(session, kind, detail string) {
	r.kinds = append(r.kinds, kind)
}

func newTestService(t *testing.T, pages *fakePages, det *fakeDetector, sink EventSink) (*Service, *cache.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	store := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(pages, det, boardimg.NewRenderer(32), store, NewMemoryRepository(), sink, Config{
		MaxUploadBytes: 64,
		SessionTTL:     time.Hour,
		HistoryLimit:   10,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestPreviewsValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakePages{}, &fakeDetector{}, nil)
	ctx := context.Background()

	if _, err := svc.Previews(ctx, "s", "a.pdf", nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("empty upload: %v", err)
	}
	if _, err := svc.Previews(ctx, "s", "notes.txt", []byte("%PDF")); !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("wrong extension: %v", err)
	}
	big := make([]byte, 65)
	if _, err := svc.Previews(ctx, "s", "big.pdf", big); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversized upload: %v", err)
	}
}

func TestPreviewsClearsEncodingSlot(t *testing.T) {
	pages := &fakePages{pages: []visionfast.Page{{ImageData: "data:image/jpeg;base64,x", Page: 0, Width: 1000, Height: 1300}}}
	svc, store := newTestService(t, pages, &fakeDetector{}, nil)
	ctx := context.Background()

	hash := SessionHash("sess-1")
	_ = store.SaveSlot(ctx, hash, &cache.Slot{FEN: validFEN})

	items, err := svc.Previews(ctx, "sess-1", "puzzles.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Previews: %v", err)
	}
	if len(items) != 1 || items[0].OriginalWidth != 1000 {
		t.Fatalf("items = %+v", items)
	}

	if _, ok, _ := svc.CurrentEncoding(ctx, "sess-1"); ok {
		t.Fatalf("new document must clear the slot")
	}
}

func TestAnalyzeNoBoard(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestService(t, &fakePages{}, &fakeDetector{err: visionfast.ErrNoBoard}, sink)

	_, err := svc.Analyze(context.Background(), "sess-1", "data:image/jpeg;base64,x", 200, 100)
	if !errors.Is(err, ErrNoBoardDetected) {
		t.Fatalf("err = %v", err)
	}
	want := []string{"analysis_started", "analysis_failed"}
	if len(sink.kinds) != 2 || sink.kinds[0] != want[0] || sink.kinds[1] != want[1] {
		t.Fatalf("events = %v", sink.kinds)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	sink := &recordingSink{}
	det := &fakeDetector{det: &visionfast.Detection{CropData: "data:image/jpeg;base64,crop", FEN: validFEN}}
	svc, _ := newTestService(t, &fakePages{}, det, sink)
	ctx := context.Background()

	res, err := svc.Analyze(ctx, "sess-1", "data:image/jpeg;base64,x", 200, 100)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if det.gotX != 200 || det.gotY != 100 {
		t.Fatalf("detector got (%d,%d)", det.gotX, det.gotY)
	}
	if res.FEN != validFEN || res.CropRef == "" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.HasPrefix(res.BoardRender, "data:image/png;base64,") {
		t.Fatalf("board render = %q", res.BoardRender[:32])
	}

	enc, ok, err := svc.CurrentEncoding(ctx, "sess-1")
	if err != nil || !ok || enc != validFEN {
		t.Fatalf("slot = %q ok=%v err=%v", enc, ok, err)
	}

	history, err := svc.History(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].FEN != validFEN {
		t.Fatalf("history = %+v", history)
	}

	if sink.kinds[len(sink.kinds)-1] != "analysis_ready" {
		t.Fatalf("events = %v", sink.kinds)
	}
}

func TestAnalyzeRejectsBadEncoding(t *testing.T) {
	det := &fakeDetector{det: &visionfast.Detection{CropData: "crop", FEN: "not a position"}}
	svc, _ := newTestService(t, &fakePages{}, det, nil)

	_, err := svc.Analyze(context.Background(), "sess-1", "data:image/jpeg;base64,x", 1, 1)
	if !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeOverwritesSlot(t *testing.T) {
	det := &fakeDetector{det: &visionfast.Detection{CropData: "crop", FEN: validFEN}}
	svc, _ := newTestService(t, &fakePages{}, det, nil)
	ctx := context.Background()

	if _, err := svc.Analyze(ctx, "sess-1", "img", 1, 1); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	det.det = &visionfast.Detection{CropData: "crop2", FEN: "8/8/8/8/8/8/8/8 w - - 0 1"}
	if _, err := svc.Analyze(ctx, "sess-1", "img", 2, 2); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	enc, ok, _ := svc.CurrentEncoding(ctx, "sess-1")
	if !ok || enc != "8/8/8/8/8/8/8/8 w - - 0 1" {
		t.Fatalf("slot = %q ok=%v", enc, ok)
	}
}

func TestBuildGameLink(t *testing.T) {
	fen := "8/8/8/8/8/8/8/8 w - - 0 1"

	lichess, err := BuildGameLink("lichess", fen)
	if err != nil {
		t.Fatalf("lichess: %v", err)
	}
	if !strings.HasPrefix(lichess, "https://lichess.org/editor/") {
		t.Fatalf("lichess url = %q", lichess)
	}

	chesscom, err := BuildGameLink("chess.com", fen)
	if err != nil {
		t.Fatalf("chess.com: %v", err)
	}
	if !strings.HasPrefix(chesscom, "https://www.chess.com/analysis?fen=") {
		t.Fatalf("chess.com url = %q", chesscom)
	}
	if strings.Contains(chesscom, " ") {
		t.Fatalf("query not escaped: %q", chesscom)
	}

	if _, err := BuildGameLink("playok", fen); !errors.Is(err, ErrInvalidSite) {
		t.Fatalf("unknown site: %v", err)
	}
}

func TestSessionHashNormalizes(t *testing.T) {
	if SessionHash(" A ") != SessionHash("a") {
		t.Fatalf("hash must normalize case and whitespace")
	}
	if SessionHash("") != SessionHash("anonymous") {
		t.Fatalf("empty session must map to the anonymous bucket")
	}
}
