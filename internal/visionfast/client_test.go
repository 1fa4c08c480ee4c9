package visionfast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = fasthttp.Serve(ln, handler)
	}()
	t.Cleanup(func() { _ = ln.Close() })

	return NewClient("http://vision.test", WithDial(func(addr string) (net.Conn, error) {
		return ln.Dial()
	}))
}

func TestRenderPDFRetriesTransient5xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(ctx).Encode(renderResponse{Pages: []Page{
			{ImageData: "data:image/jpeg;base64,x", Page: 0, Width: 1000, Height: 1300},
		}})
	})

	pages, err := c.RenderPDF(context.Background(), "JVBERi0=")
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if len(pages) != 1 || pages[0].Width != 1000 {
		t.Fatalf("pages = %+v", pages)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestDetectBoardNotFound(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		_ = json.NewEncoder(ctx).Encode(detectResponse{Found: false})
	})

	_, err := c.DetectBoard(context.Background(), "data:image/jpeg;base64,x", 200, 100)
	if !errors.Is(err, ErrNoBoard) {
		t.Fatalf("err = %v", err)
	}
}

func TestDetectBoardForwardsCoordinates(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		var req detectRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.X != 200 || req.Y != 100 {
			t.Errorf("coords = (%d,%d)", req.X, req.Y)
		}
		_ = json.NewEncoder(ctx).Encode(detectResponse{
			Found:     true,
			Detection: Detection{CropData: "data:image/jpeg;base64,crop", FEN: "8/8/8/8/8/8/8/8 w - - 0 1"},
		})
	})

	det, err := c.DetectBoard(context.Background(), "data:image/jpeg;base64,x", 200, 100)
	if err != nil {
		t.Fatalf("DetectBoard: %v", err)
	}
	if det.FEN == "" || det.CropData == "" {
		t.Fatalf("detection = %+v", det)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	})

	_, err := c.RenderPDF(context.Background(), "not-a-pdf")
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
}
