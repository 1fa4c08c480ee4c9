package scan

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/ChessSnap-PDF/internal/boardimg"
	"github.com/park285/ChessSnap-PDF/internal/domain"
	"github.com/park285/ChessSnap-PDF/internal/service/cache"
	"github.com/park285/ChessSnap-PDF/internal/visionfast"
	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoBoardDetected = errors.New("no chessboard detected")
	ErrInvalidFEN      = errors.New("invalid position encoding")
)

// PageRenderer rasterizes a PDF into page images.
type PageRenderer interface {
	RenderPDF(ctx context.Context, pdfData string) ([]visionfast.Page, error)
}

// BoardDetector locates a chessboard near a point on a page image.
type BoardDetector interface {
	DetectBoard(ctx context.Context, imageData string, x, y int) (*visionfast.Detection, error)
}

// EventSink receives analysis lifecycle events for a session.
type EventSink interface {
	Publish(session, kind, detail string)
}

type nopSink struct{}

func (nopSink) Publish(string, string, string) {}

// NopEventSink discards all events.
func NopEventSink() EventSink { return nopSink{} }

type Config struct {
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	HistoryLimit    int
	BoardRenderSize int
}

const maxHistoryLimit = 100

// Service owns the server side of the scan flow: PDF preview rendering,
// click-point board detection, the per-session encoding slot, and the
// analysis history.
type Service struct {
	pages    PageRenderer
	detector BoardDetector
	renderer boardimg.Renderer
	cache    *cache.Store
	repo     Repository
	events   EventSink
	cfg      Config
	logger   *zap.Logger
}

func NewService(pages PageRenderer, detector BoardDetector, renderer boardimg.Renderer, cacheStore *cache.Store, repo Repository, events EventSink, cfg Config, logger *zap.Logger) (*Service, error) {
	if pages == nil {
		return nil, fmt.Errorf("page renderer is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("board detector is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cacheStore == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("scan repository is required")
	}
	if events == nil {
		events = NopEventSink()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		pages:    pages,
		detector: detector,
		renderer: renderer,
		cache:    cacheStore,
		repo:     repo,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Previews validates the upload and renders every page. A successful upload
// is a document swap: the session's encoding slot is cleared before the new
// previews are returned.
func (s *Service) Previews(ctx context.Context, session, filename string, pdf []byte) ([]snapdto.PreviewItem, error) {
	if len(pdf) == 0 {
		return nil, ErrNoFile
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".pdf") {
		return nil, ErrInvalidFileType
	}
	if int64(len(pdf)) > s.cfg.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}

	pages, err := s.pages.RenderPDF(ctx, base64.StdEncoding.EncodeToString(pdf))
	if err != nil {
		return nil, fmt.Errorf("render pdf pages: %w", err)
	}

	hash := SessionHash(session)
	if err := s.cache.ClearSlot(ctx, hash); err != nil {
		s.logger.Warn("clear encoding slot", zap.String("session", hash), zap.Error(err))
	}

	items := make([]snapdto.PreviewItem, 0, len(pages))
	for _, p := range pages {
		items = append(items, snapdto.PreviewItem{
			PreviewData:    p.ImageData,
			Page:           p.Page,
			OriginalWidth:  p.Width,
			OriginalHeight: p.Height,
		})
	}
	s.logger.Info("pdf rendered",
		zap.String("session", hash),
		zap.Int("pages", len(items)),
		zap.Int("bytes", len(pdf)),
	)
	return items, nil
}

// Result is one applied analysis: the crop from the document, the validated
// position encoding, and a clean digital rendering of it.
type Result struct {
	FEN         string
	CropRef     string
	BoardRender string
}

// Analyze runs board detection at the mapped point, validates the returned
// encoding, renders the digital board, overwrites the session's slot and
// records the analysis.
func (s *Service) Analyze(ctx context.Context, session, imageData string, origX, origY int) (*Result, error) {
	hash := SessionHash(session)
	started := time.Now()
	s.events.Publish(hash, "analysis_started", "")

	det, err := s.detector.DetectBoard(ctx, imageData, origX, origY)
	if err != nil {
		if errors.Is(err, visionfast.ErrNoBoard) {
			s.events.Publish(hash, "analysis_failed", "no board")
			return nil, ErrNoBoardDetected
		}
		s.events.Publish(hash, "analysis_failed", "detector error")
		return nil, fmt.Errorf("detect board: %w", err)
	}

	option, err := nchess.FEN(det.FEN)
	if err != nil {
		s.events.Publish(hash, "analysis_failed", "invalid encoding")
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	board := nchess.NewGame(option).Position().Board()

	render, err := s.renderer.RenderPNG(ctx, board)
	if err != nil {
		return nil, fmt.Errorf("render board: %w", err)
	}

	slot := &cache.Slot{
		FEN:        det.FEN,
		CropRef:    det.CropData,
		DetectedAt: time.Now().UTC(),
	}
	if err := s.cache.SaveSlot(ctx, hash, slot); err != nil {
		s.logger.Warn("save encoding slot", zap.String("session", hash), zap.Error(err))
	}

	analysis := &domain.Analysis{
		AnalysisUUID: uuid.NewString(),
		SessionHash:  hash,
		OrigX:        origX,
		OrigY:        origY,
		FEN:          det.FEN,
		DetectedAt:   slot.DetectedAt,
		Latency:      time.Since(started),
	}
	if _, err := s.repo.InsertAnalysis(ctx, analysis); err != nil {
		s.logger.Warn("record analysis", zap.String("session", hash), zap.Error(err))
	}

	s.events.Publish(hash, "analysis_ready", det.FEN)
	s.logger.Info("board detected",
		zap.String("session", hash),
		zap.Int("orig_x", origX),
		zap.Int("orig_y", origY),
		zap.Duration("latency", analysis.Latency),
	)

	return &Result{
		FEN:         det.FEN,
		CropRef:     det.CropData,
		BoardRender: "data:image/png;base64," + base64.StdEncoding.EncodeToString(render),
	}, nil
}

// CurrentEncoding returns the session's slot contents, ok=false when the
// slot is empty or expired.
func (s *Service) CurrentEncoding(ctx context.Context, session string) (string, bool, error) {
	slot, err := s.cache.LoadSlot(ctx, SessionHash(session))
	if err != nil {
		return "", false, err
	}
	if slot == nil || slot.FEN == "" {
		return "", false, nil
	}
	return slot.FEN, true, nil
}

// History lists the session's recent analyses, newest first.
func (s *Service) History(ctx context.Context, session string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.GetRecentAnalyses(ctx, SessionHash(session), limit)
}

func SessionHash(session string) string {
	normalized := strings.ToLower(strings.TrimSpace(session))
	if normalized == "" {
		normalized = "anonymous"
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
