package snapfast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = fasthttp.Serve(ln, handler)
	}()
	t.Cleanup(func() { _ = ln.Close() })

	return NewClient("http://snap.test", WithDial(func(addr string) (net.Conn, error) {
		return ln.Dial()
	}))
}

func TestUploadSendsMultipartFileField(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/upload" {
			t.Errorf("path = %s", ctx.Path())
		}
		fh, err := ctx.FormFile("file")
		if err != nil {
			t.Errorf("form field file: %v", err)
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			_ = json.NewEncoder(ctx).Encode(snapdto.ErrorResponse{Error: "No file uploaded"})
			return
		}
		if fh.Filename != "puzzles.pdf" {
			t.Errorf("filename = %s", fh.Filename)
		}
		_ = json.NewEncoder(ctx).Encode(snapdto.UploadResponse{
			Previews: []snapdto.PreviewItem{{PreviewData: "data:image/jpeg;base64,x", Page: 0, OriginalWidth: 1000, OriginalHeight: 1300}},
		})
	})

	resp, err := c.Upload(context.Background(), "puzzles.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(resp.Previews) != 1 || resp.Previews[0].OriginalWidth != 1000 {
		t.Fatalf("unexpected previews: %+v", resp.Previews)
	}
}

func TestServerErrorCarriesVerbatimMessage(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		_ = json.NewEncoder(ctx).Encode(snapdto.ErrorResponse{Error: "Invalid file type"})
	})

	_, err := c.Upload(context.Background(), "notes.txt", []byte("hello"))
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if srvErr.Message != "Invalid file type" {
		t.Fatalf("message = %q", srvErr.Message)
	}
}

func TestAnalyzeRoundTrip(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		var req snapdto.AnalyzeRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.OrigX != 200 || req.OrigY != 100 {
			t.Errorf("coords = (%d,%d)", req.OrigX, req.OrigY)
		}
		_ = json.NewEncoder(ctx).Encode(snapdto.AnalyzeResponse{
			FEN:           "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			ChessboardURL: "data:image/jpeg;base64,crop",
		})
	})

	resp, err := c.Analyze(context.Background(), &snapdto.AnalyzeRequest{
		Image: "data:image/jpeg;base64,x", OrigX: 200, OrigY: 100,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.FEN == "" || resp.ChessboardURL == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}
}

func TestStartGameReturnsRedirect(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		var req snapdto.StartGameRequest
		_ = json.Unmarshal(ctx.PostBody(), &req)
		if req.Site != snapdto.SiteLichess {
			t.Errorf("site = %s", req.Site)
		}
		_ = json.NewEncoder(ctx).Encode(snapdto.StartGameResponse{
			RedirectURL: "https://lichess.org/editor/" + req.FEN,
		})
	})

	resp, err := c.StartGame(context.Background(), &snapdto.StartGameRequest{
		Site: snapdto.SiteLichess, FEN: "8/8/8/8/8/8/8/8 w - - 0 1",
	})
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if resp.RedirectURL == "" {
		t.Fatalf("empty redirect url")
	}
}

func TestTransportFailureIsNotServerError(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()
	_ = ln.Close()
	c := NewClient("http://snap.test", WithDial(func(addr string) (net.Conn, error) {
		return ln.Dial()
	}))

	_, err := c.Analyze(context.Background(), &snapdto.AnalyzeRequest{Image: "x"})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		t.Fatalf("transport failure must not surface as ServerError")
	}
}
