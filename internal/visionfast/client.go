package visionfast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrNoBoard is returned when the detector finds no chessboard near the
// requested point.
var ErrNoBoard = errors.New("no chessboard detected")

// Page is one rasterized PDF page from the sidecar.
type Page struct {
	ImageData string `json:"image_data"`
	Page      int    `json:"page"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Detection is a cropped board with its position encoding.
type Detection struct {
	CropData string `json:"crop_data"`
	FEN      string `json:"fen"`
}

type renderRequest struct {
	PDFData string `json:"pdf_data"`
}

type renderResponse struct {
	Pages []Page `json:"pages"`
	Error string `json:"error,omitempty"`
}

type detectRequest struct {
	ImageData string `json:"image_data"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

type detectResponse struct {
	Detection
	Found bool   `json:"found"`
	Error string `json:"error,omitempty"`
}

// Client talks to the vision sidecar that owns PDF rasterization and
// board detection. Transient 5xx answers are retried with backoff.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 60 * time.Second, WriteTimeout: 60 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 60 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RenderPDF rasterizes every page of the document. pdfData is the raw PDF
// bytes encoded as base64.
func (c *Client) RenderPDF(ctx context.Context, pdfData string) ([]Page, error) {
	var resp renderResponse
	if err := c.doJSON(ctx, "/render", renderRequest{PDFData: pdfData}, &resp, true); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("render pdf: %s", resp.Error)
	}
	return resp.Pages, nil
}

// DetectBoard locates the chessboard nearest to (x, y) on the given page
// image and returns its crop and position encoding. ErrNoBoard is returned
// when the detector reports no board at that point.
func (c *Client) DetectBoard(ctx context.Context, imageData string, x, y int) (*Detection, error) {
	var resp detectResponse
	if err := c.doJSON(ctx, "/detect", detectRequest{ImageData: imageData, X: x, Y: y}, &resp, true); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detect board: %s", resp.Error)
	}
	if !resp.Found {
		return nil, ErrNoBoard
	}
	return &resp.Detection, nil
}

func (c *Client) doJSON(ctx context.Context, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			err := fmt.Errorf("vision api error: status=%d body=%s", status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
