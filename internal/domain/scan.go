package domain

import "time"

// Analysis is one applied board detection, recorded per session for the
// history view.
type Analysis struct {
	ID           int64         `json:"id"`
	AnalysisUUID string        `json:"analysis_uuid"`
	SessionHash  string        `json:"session_hash"`
	Page         int           `json:"page"`
	OrigX        int           `json:"orig_x"`
	OrigY        int           `json:"orig_y"`
	FEN          string        `json:"fen"`
	DetectedAt   time.Time     `json:"detected_at"`
	Latency      time.Duration `json:"latency"`
}
