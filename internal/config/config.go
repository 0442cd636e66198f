package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived knob for the archive/clip pipeline.
type Config struct {
	DBPath             string
	HashFSRoot         string
	SearchIndexRoot    string
	ScratchDir         string
	FFmpegPath         string
	RedisAddr          string
	MediaExtensions    []string
	SegmentConcurrency int
	SegmentDuration    time.Duration

	SearchMaxWindow     int
	SearchDefaultWindow int
	SearchMaxResponses  int

	GifFPS      int
	GifWidth    int
	GifFontSize int

	ClipPrePad  time.Duration
	ClipPostPad time.Duration

	ViewPriority []string

	LogLevel  string
	LogFormat string

	OrphanSweepInterval time.Duration
}

func Load() *Config {
	return &Config{
		DBPath:             env("LUCILLE_DB_PATH", "./lucille.db"),
		HashFSRoot:         env("LUCILLE_HASHFS_ROOT", "./data/hashfs"),
		SearchIndexRoot:    env("LUCILLE_SEARCH_INDEX_ROOT", "./data/search"),
		ScratchDir:         env("LUCILLE_SCRATCH_DIR", "./data/scratch"),
		FFmpegPath:         env("LUCILLE_FFMPEG_PATH", "ffmpeg"),
		RedisAddr:          env("LUCILLE_REDIS_ADDR", "127.0.0.1:6379"),
		MediaExtensions:    envList("LUCILLE_MEDIA_EXTENSIONS", []string{".mkv"}),
		SegmentConcurrency: envInt("LUCILLE_SEGMENT_CONCURRENCY", 8),
		SegmentDuration:    envDurationMS("LUCILLE_SEGMENT_DURATION_MS", 10_000),

		SearchMaxWindow:     envInt("LUCILLE_SEARCH_MAX_WINDOW", 5),
		SearchDefaultWindow: envInt("LUCILLE_SEARCH_DEFAULT_WINDOW", 5),
		SearchMaxResponses:  envInt("LUCILLE_SEARCH_MAX_RESPONSES", 5),

		GifFPS:      envInt("LUCILLE_GIF_FPS", 12),
		GifWidth:    envInt("LUCILLE_GIF_WIDTH", 480),
		GifFontSize: envInt("LUCILLE_GIF_FONT_SIZE", 28),

		ClipPrePad:  envDurationMS("LUCILLE_CLIP_PRE_PAD_MS", 0),
		ClipPostPad: envDurationMS("LUCILLE_CLIP_POST_PAD_MS", 0),

		ViewPriority: envList("LUCILLE_VIEW_PRIORITY", []string{"original"}),

		LogLevel:  env("LUCILLE_LOG_LEVEL", "info"),
		LogFormat: env("LUCILLE_LOG_FORMAT", "console"),

		OrphanSweepInterval: envDurationMS("LUCILLE_ORPHAN_SWEEP_MS", 3600_000),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDurationMS(key string, fallbackMS int) time.Duration {
	ms := envInt(key, fallbackMS)
	return time.Duration(ms) * time.Millisecond
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
