package ffmpeg

import (
	"fmt"
	"time"
)

// GifSettings controls the quality and subtitle burn-in of a rendered clip.
type GifSettings struct {
	FPS      int
	Width    int
	FontSize int
}

// DefaultGifSettings mirrors the reference transcoder's defaults.
func DefaultGifSettings() GifSettings {
	return GifSettings{FPS: 12, Width: 480, FontSize: 28}
}

// CutTimes holds the absolute content start/end to render, independent of
// where within a concatenated segment chain that content begins.
type CutTimes struct {
	Start time.Duration
	End   time.Duration
}

// SeekDuration derives the ffmpeg -ss/-t arguments given where the supplied
// media stream actually begins (segmentStart, which may be earlier than
// Start because segments are padded to the nearest segment boundary).
func (c CutTimes) SeekDuration(segmentStart time.Duration) (seek, length float64) {
	clipLength := c.End - c.Start
	if clipLength < 0 {
		clipLength = 0
	}
	seek = (c.Start - segmentStart).Seconds()
	if seek < 0 {
		seek = 0
	}
	return seek, clipLength.Seconds()
}

// BuildGifFilter builds the -filter_complex value for the gif render chain:
// fixed frame rate, scale to width preserving aspect ratio, subtitle
// burn-in, then a high-quality two-pass palette for the gif encoder.
func BuildGifFilter(settings GifSettings, srtPath string) string {
	return fmt.Sprintf(
		"fps=%d,scale=w=%d:h=-1,subtitles=%s:force_style='Fontsize=%d',"+
			"split [a][b];[a] palettegen=stats_mode=single:reserve_transparent=false [p];[b][p] paletteuse=new=1",
		settings.FPS, settings.Width, srtPath, settings.FontSize,
	)
}

// GifArgs assembles the full ffmpeg argv for rendering one gif clip from a
// concatenated media file at mediaPath, seeking to seek for length seconds,
// burning in the subtitles at srtPath, and writing to stdout.
func GifArgs(mediaPath string, seek, length float64, settings GifSettings, srtPath string) []string {
	return []string{
		"-ss", fmt.Sprintf("%.02f", seek),
		"-t", fmt.Sprintf("%.02f", length),
		"-i", mediaPath,
		"-filter_complex", BuildGifFilter(settings, srtPath),
		"-f", "gif",
		"pipe:",
	}
}
