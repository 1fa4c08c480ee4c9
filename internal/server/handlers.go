package server

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/ChessSnap-PDF/internal/service/scan"
	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/" && method == fasthttp.MethodGet:
		s.handleIndex(ctx)
	case path == "/upload" && method == fasthttp.MethodPost:
		s.handleUpload(ctx)
	case path == "/analyze" && method == fasthttp.MethodPost:
		s.handleAnalyze(ctx)
	case path == "/start_game" && method == fasthttp.MethodPost:
		s.handleStartGame(ctx)
	case path == "/history" && method == fasthttp.MethodGet:
		s.handleHistory(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		writeJSON(ctx, snapdto.ErrorResponse{Error: "Not found"})
	}
}

func (s *Server) handleIndex(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBody(indexHTML)
}

func (s *Server) handleUpload(ctx *fasthttp.RequestCtx) {
	session := sessionOf(ctx)

	fh, err := ctx.FormFile("file")
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("upload.no_file", "No file uploaded"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("upload.no_file", "No file uploaded"))
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("upload.no_file", "No file uploaded"))
		return
	}

	previews, err := s.svc.Previews(ctx, session, fh.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrNoFile):
			writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("upload.no_file", "No file uploaded"))
		case errors.Is(err, scan.ErrInvalidFileType):
			writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("upload.invalid_type", "Invalid file type"))
		case errors.Is(err, scan.ErrFileTooLarge):
			writeError(ctx, fasthttp.StatusRequestEntityTooLarge, s.cat.Text("upload.too_large", "File exceeds the upload size limit"))
		default:
			s.log.Error("pdf processing failed", zap.Error(err))
			msg, rerr := s.cat.Render("upload.processing_failed", map[string]any{"Reason": err.Error()})
			if rerr != nil {
				msg = "PDF processing failed"
			}
			writeError(ctx, fasthttp.StatusInternalServerError, msg)
		}
		return
	}

	writeJSON(ctx, snapdto.UploadResponse{Previews: previews})
}

func (s *Server) handleAnalyze(ctx *fasthttp.RequestCtx) {
	session := sessionOf(ctx)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(ctx.PostBody(), &raw); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("analyze.missing_params", "Missing parameters: image, origX, and origY are required"))
		return
	}
	imageRaw, okImage := raw["image"]
	xRaw, okX := raw["origX"]
	yRaw, okY := raw["origY"]
	if !okImage || !okX || !okY {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("analyze.missing_params", "Missing parameters: image, origX, and origY are required"))
		return
	}

	var image string
	if err := json.Unmarshal(imageRaw, &image); err != nil || strings.TrimSpace(image) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("analyze.invalid_image", "Invalid image data format: expected base64 string"))
		return
	}

	origX, errX := decodeCoord(xRaw)
	origY, errY := decodeCoord(yRaw)
	if errX != nil || errY != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("analyze.missing_params", "Missing parameters: image, origX, and origY are required"))
		return
	}

	res, err := s.svc.Analyze(ctx, session, image, origX, origY)
	if err != nil {
		if errors.Is(err, scan.ErrNoBoardDetected) {
			writeError(ctx, fasthttp.StatusNotFound, s.cat.Text("analyze.no_board", "No chessboard detected at the specified location"))
			return
		}
		s.log.Error("analysis failed", zap.Error(err))
		msg, rerr := s.cat.Render("analyze.failed", map[string]any{"Reason": err.Error()})
		if rerr != nil {
			msg = "Analysis failed"
		}
		writeError(ctx, fasthttp.StatusInternalServerError, msg)
		return
	}

	writeJSON(ctx, snapdto.AnalyzeResponse{
		ChessboardURL: res.CropRef,
		FEN:           res.FEN,
		BoardRender:   res.BoardRender,
	})
}

func (s *Server) handleStartGame(ctx *fasthttp.RequestCtx) {
	var req snapdto.StartGameRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("game.missing_params", "Missing required parameters"))
		return
	}
	if strings.TrimSpace(req.Site) == "" || strings.TrimSpace(req.FEN) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("game.missing_params", "Missing required parameters"))
		return
	}

	link, err := scan.BuildGameLink(req.Site, req.FEN)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, s.cat.Text("game.invalid_site", "Invalid site"))
		return
	}

	writeJSON(ctx, snapdto.StartGameResponse{RedirectURL: link})
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx) {
	session := sessionOf(ctx)

	limit := 0
	if v := string(ctx.QueryArgs().Peek("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	analyses, err := s.svc.History(ctx, session, limit)
	if err != nil {
		s.log.Error("history lookup failed", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "History unavailable")
		return
	}

	records := make([]snapdto.AnalysisRecord, 0, len(analyses))
	for _, a := range analyses {
		records = append(records, snapdto.AnalysisRecord{
			AnalysisUUID: a.AnalysisUUID,
			FEN:          a.FEN,
			OrigX:        a.OrigX,
			OrigY:        a.OrigY,
			DetectedAt:   a.DetectedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(ctx, snapdto.HistoryResponse{Analyses: records})
}

// sessionOf identifies the caller. Browsers without the header fall back to
// their remote address so each gets its own slot.
func sessionOf(ctx *fasthttp.RequestCtx) string {
	if v := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Session-Id"))); v != "" {
		return v
	}
	return ctx.RemoteIP().String()
}

func decodeCoord(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return int(f), nil
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	ctx.SetContentType("application/json; charset=utf-8")
	_ = json.NewEncoder(ctx).Encode(v)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	writeJSON(ctx, snapdto.ErrorResponse{Error: msg})
}
