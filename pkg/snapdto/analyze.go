package snapdto

// AnalyzeRequest carries the preview image reference and the click point
// already mapped into original-image coordinates.
type AnalyzeRequest struct {
	Image string `json:"image"`
	OrigX int    `json:"origX"`
	OrigY int    `json:"origY"`
}

// AnalyzeResponse mirrors the upstream shape ({chessboard_url, fen}).
// BoardRender is additive: a clean digital board rendered from the FEN.
type AnalyzeResponse struct {
	ChessboardURL string `json:"chessboard_url"`
	FEN           string `json:"fen"`
	BoardRender   string `json:"board_render,omitempty"`
	Error         string `json:"error,omitempty"`
}

// AnalysisRecord is one row of the per-session analysis history.
type AnalysisRecord struct {
	AnalysisUUID string `json:"analysis_uuid"`
	FEN          string `json:"fen"`
	OrigX        int    `json:"origX"`
	OrigY        int    `json:"origY"`
	DetectedAt   string `json:"detected_at"`
}

type HistoryResponse struct {
	Analyses []AnalysisRecord `json:"analyses"`
	Error    string           `json:"error,omitempty"`
}
