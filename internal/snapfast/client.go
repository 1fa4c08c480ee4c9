package snapfast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

// ServerError is a structured {error} answer from the service. Its message
// is shown to the user verbatim, unlike transport failures which are mapped
// to a fixed per-operation message by the caller.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// HeaderProvider allows injecting per-request headers (e.g. X-Session-Id).
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithDial overrides the transport dialer; used by tests to reach an
// in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload posts the PDF as multipart form data (field "file") to /upload.
func (c *Client) Upload(ctx context.Context, filename string, pdf []byte) (*snapdto.UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var out snapdto.UploadResponse
	if err := c.do(ctx, "/upload", mw.FormDataContentType(), body.Bytes(), &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &ServerError{Message: out.Error}
	}
	return &out, nil
}

// Analyze posts the mapped click to /analyze.
func (c *Client) Analyze(ctx context.Context, req *snapdto.AnalyzeRequest) (*snapdto.AnalyzeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var out snapdto.AnalyzeResponse
	if err := c.do(ctx, "/analyze", "application/json", payload, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &ServerError{Message: out.Error}
	}
	return &out, nil
}

// StartGame posts {site, fen} to /start_game.
func (c *Client) StartGame(ctx context.Context, req *snapdto.StartGameRequest) (*snapdto.StartGameResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var out snapdto.StartGameResponse
	if err := c.do(ctx, "/start_game", "application/json", payload, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &ServerError{Message: out.Error}
	}
	return &out, nil
}

// History fetches the recent analyses for this session.
func (c *Client) History(ctx context.Context, limit int) (*snapdto.HistoryResponse, error) {
	url := c.baseURL + "/history"
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", url, limit)
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	c.applyHeaders(req)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out snapdto.HistoryResponse
	if err := decodeBody(resp, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &ServerError{Message: out.Error}
	}
	return &out, nil
}

// do issues one POST and decodes the JSON answer. Responses carrying an
// {error} envelope are decoded normally regardless of the status code;
// everything else non-2xx is a transport-level failure.
func (c *Client) do(ctx context.Context, path, contentType string, body []byte, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType(contentType)
	c.applyHeaders(req)
	req.SetBody(body)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *fasthttp.Response, out any) error {
	status := resp.StatusCode()
	raw := resp.Body()

	if err := json.Unmarshal(raw, out); err != nil {
		if status < 200 || status >= 300 {
			return fmt.Errorf("api error: status=%d body=%s", status, truncate(string(raw), 512))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) applyHeaders(req *fasthttp.Request) {
	if c.headers == nil {
		return
	}
	for k, v := range c.headers() {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
