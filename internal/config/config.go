package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultMaxUploadBytes = 16 << 20 // matches the upstream 16MB cap

type AppConfig struct {
	ListenAddr string
	EventsAddr string

	VisionBaseURL string

	RedisURL    string
	DatabaseURL string

	MaxUploadBytes int
	SessionTTL     time.Duration
	HistoryLimit   int

	BoardRenderSize int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		MaxUploadBytes:  defaultMaxUploadBytes,
		SessionTTL:      time.Hour,
		HistoryLimit:    10,
		BoardRenderSize: 576,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.EventsAddr = strings.TrimSpace(os.Getenv("EVENTS_ADDR"))

	cfg.VisionBaseURL = strings.TrimSpace(os.Getenv("VISION_BASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BOARD_RENDER_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 64 {
			cfg.BoardRenderSize = n
		}
	}

	if cfg.VisionBaseURL == "" {
		return nil, errors.New("VISION_BASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
