package flow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/ChessSnap-PDF/internal/geometry"
	"github.com/park285/ChessSnap-PDF/internal/msgcat"
	"github.com/park285/ChessSnap-PDF/internal/obslog"
	"github.com/park285/ChessSnap-PDF/internal/preview"
	"github.com/park285/ChessSnap-PDF/internal/session"
	"github.com/park285/ChessSnap-PDF/internal/snapfast"
	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

// API is the subset of the service the pipeline talks to.
type API interface {
	Upload(ctx context.Context, filename string, pdf []byte) (*snapdto.UploadResponse, error)
	Analyze(ctx context.Context, req *snapdto.AnalyzeRequest) (*snapdto.AnalyzeResponse, error)
	StartGame(ctx context.Context, req *snapdto.StartGameRequest) (*snapdto.StartGameResponse, error)
}

// Opener opens a URL in a new browsing context.
type Opener func(url string) error

var (
	ErrLaunchUnavailable = errors.New("no board encoding available for launch")
	ErrNoFileSelected    = errors.New("no file selected")
)

// Pipeline wires the upload, analysis and game-launch flows around one
// session: previews in the registry, the state machine owning the encoding
// slot, and a single displayed error line shared by all three flows.
type Pipeline struct {
	api  API
	cat  *msgcat.Catalog
	reg  *preview.Registry
	mach *session.Machine
	open Opener
	log  *zap.Logger

	mu      sync.Mutex
	errLine string
}

func NewPipeline(api API, cat *msgcat.Catalog, open Opener) (*Pipeline, error) {
	if api == nil {
		return nil, errors.New("flow: api is required")
	}
	if cat == nil {
		return nil, errors.New("flow: message catalog is required")
	}
	if open == nil {
		open = func(string) error { return nil }
	}
	p := &Pipeline{
		api:  api,
		cat:  cat,
		reg:  preview.NewRegistry(),
		mach: session.NewMachine(),
		open: open,
		log:  obslog.L().Named("flow"),
	}
	p.reg.Bind(func(e preview.Entry, cx, cy, dw, dh float64) {
		p.handleClick(context.Background(), e, cx, cy, dw, dh)
	})
	return p, nil
}

func (p *Pipeline) Registry() *preview.Registry { return p.reg }
func (p *Pipeline) Machine() *session.Machine   { return p.mach }

// ErrorMessage returns the currently displayed error line, empty when clear.
func (p *Pipeline) ErrorMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errLine
}

// LaunchAvailable reports whether the game-launch controls are active.
func (p *Pipeline) LaunchAvailable() bool {
	_, ok := p.mach.LaunchEncoding()
	return ok
}

// Upload submits a PDF. On success the previews replace the current set
// wholesale and the error line is cleared. On any failure the current
// previews and the state machine are left untouched: a server-reported
// {error} is displayed verbatim, a transport failure shows the fixed
// upload message.
func (p *Pipeline) Upload(ctx context.Context, filename string, pdf []byte) error {
	if len(pdf) == 0 {
		p.setError(p.cat.Text("upload.no_file", "No file uploaded"))
		return ErrNoFileSelected
	}

	resp, err := p.api.Upload(ctx, filename, pdf)
	if err != nil {
		var srvErr *snapfast.ServerError
		if errors.As(err, &srvErr) {
			p.setError(srvErr.Message)
		} else {
			p.log.Warn("upload transport failure", zap.Error(err))
			p.setError(p.cat.Text("upload.transport_failed", "Error uploading file."))
		}
		return err
	}

	entries := make([]preview.Entry, 0, len(resp.Previews))
	for _, pv := range resp.Previews {
		entries = append(entries, preview.Entry{
			ImageRef:       pv.PreviewData,
			Page:           pv.Page,
			OriginalWidth:  pv.OriginalWidth,
			OriginalHeight: pv.OriginalHeight,
		})
	}
	p.reg.Replace(entries)
	p.mach.PreviewsReplaced()
	p.setError("")
	p.log.Info("previews replaced", zap.Int("pages", len(entries)))
	return nil
}

// AnalyzeClick routes a click on preview index i through the registry. The
// gen token fences clicks raised against previews that have since been
// replaced. Returns false when the click was dropped without any effect.
func (p *Pipeline) AnalyzeClick(gen uint64, i int, clickX, clickY, dispW, dispH float64) bool {
	return p.reg.Click(gen, i, clickX, clickY, dispW, dispH)
}

func (p *Pipeline) handleClick(ctx context.Context, e preview.Entry, cx, cy, dw, dh float64) {
	origX, origY, ok := geometry.MapToOriginal(e.OriginalWidth, e.OriginalHeight, cx, cy, dw, dh)
	if !ok {
		// Zero-dimension display: the click cannot be mapped, ignore it.
		return
	}
	seq, ok := p.mach.BeginAnalysis()
	if !ok {
		return
	}

	resp, err := p.api.Analyze(ctx, &snapdto.AnalyzeRequest{
		Image: e.ImageRef,
		OrigX: origX,
		OrigY: origY,
	})
	if err != nil {
		var srvErr *snapfast.ServerError
		msg := p.cat.Text("analyze.transport_failed", "Analysis failed.")
		if errors.As(err, &srvErr) {
			msg = srvErr.Message
		} else {
			p.log.Warn("analyze transport failure", zap.Uint64("seq", seq), zap.Error(err))
		}
		if p.mach.FailAnalysis(seq, msg) {
			p.setError(msg)
		}
		return
	}

	if p.mach.CompleteAnalysis(seq, resp.FEN, resp.ChessboardURL) {
		p.setError("")
		p.log.Info("analysis applied", zap.Uint64("seq", seq), zap.Int("page", e.Page))
	} else {
		p.log.Debug("stale analysis discarded", zap.Uint64("seq", seq))
	}
}

// StartGame reads the encoding slot at activation time and opens the
// returned redirect URL. It is a no-op error when launch is unavailable.
func (p *Pipeline) StartGame(ctx context.Context, site string) error {
	enc, ok := p.mach.LaunchEncoding()
	if !ok {
		return ErrLaunchUnavailable
	}

	resp, err := p.api.StartGame(ctx, &snapdto.StartGameRequest{Site: site, FEN: enc})
	if err != nil {
		var srvErr *snapfast.ServerError
		if errors.As(err, &srvErr) {
			p.setError(srvErr.Message)
		} else {
			p.setError(p.cat.Text("game.transport_failed", "Error starting game."))
		}
		return err
	}
	if err := p.open(resp.RedirectURL); err != nil {
		p.log.Warn("open redirect url", zap.Error(err))
		return err
	}
	p.setError("")
	return nil
}

func (p *Pipeline) setError(msg string) {
	p.mu.Lock()
	p.errLine = msg
	p.mu.Unlock()
}
