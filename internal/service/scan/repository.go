package scan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/park285/ChessSnap-PDF/internal/domain"
)

type Repository interface {
	InsertAnalysis(ctx context.Context, analysis *domain.Analysis) (int64, error)
	GetRecentAnalyses(ctx context.Context, sessionHash string, limit int) ([]*domain.Analysis, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertAnalysis(ctx context.Context, analysis *domain.Analysis) (int64, error) {
	if analysis == nil {
		return 0, fmt.Errorf("nil analysis payload")
	}

	const query = `
		INSERT INTO scan_analyses (
			analysis_uuid,
			session_hash,
			page,
			orig_x,
			orig_y,
			fen,
			detected_at,
			latency_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		analysis.AnalysisUUID,
		analysis.SessionHash,
		analysis.Page,
		analysis.OrigX,
		analysis.OrigY,
		analysis.FEN,
		analysis.DetectedAt,
		analysis.Latency.Milliseconds(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

func (r *repository) GetRecentAnalyses(ctx context.Context, sessionHash string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			analysis_uuid,
			session_hash,
			page,
			orig_x,
			orig_y,
			fen,
			detected_at,
			latency_ms
		FROM scan_analyses
		WHERE session_hash = $1
		ORDER BY detected_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sessionHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]*domain.Analysis, 0, limit)
	for rows.Next() {
		var (
			analysis  domain.Analysis
			latencyMS sql.NullInt64
		)
		if err := rows.Scan(
			&analysis.ID,
			&analysis.AnalysisUUID,
			&analysis.SessionHash,
			&analysis.Page,
			&analysis.OrigX,
			&analysis.OrigY,
			&analysis.FEN,
			&analysis.DetectedAt,
			&latencyMS,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		if latencyMS.Valid {
			analysis.Latency = time.Duration(latencyMS.Int64) * time.Millisecond
		}
		analyses = append(analyses, &analysis)
	}
	return analyses, rows.Err()
}
