// Package render orchestrates rendering a short clip (currently: an
// animated gif with burned-in subtitles) from a subtitle range: resolve the
// best media view, select the overlapping segments, stage a scratch copy,
// and invoke the transcoder (C10).
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/asticode/go-astisub"
	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/ffmpeg"
	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/segselect"
)

// SubSegment names a subtitle file by uuid and an inclusive cue range
// within it.
type SubSegment struct {
	SrtUUID       uuid.UUID
	SubRangeStart int
	SubRangeEnd   int
}

// MakeGifRequest asks for a rendered clip covering exactly one subtitle
// range. Multi-segment gifs are not supported, matching the reference
// implementation's request validation.
type MakeGifRequest struct {
	Segments []SubSegment
}

// Options configures one renderer.
type Options struct {
	FFmpegPath  string
	ScratchDir  string
	ViewPriority []string
	PrePad      time.Duration
	PostPad     time.Duration
	GifSettings ffmpeg.GifSettings
}

// Renderer builds clips by joining the metadata store, storage cascade,
// and transcoder.
type Renderer struct {
	subtitles *repository.SubtitleRepository
	views     *repository.MediaViewRepository
	segments  *repository.MediaSegmentRepository
	opener    segselect.Opener
	opts      Options
}

func New(subtitles *repository.SubtitleRepository, views *repository.MediaViewRepository, segments *repository.MediaSegmentRepository, opener segselect.Opener, opts Options) *Renderer {
	if opts.GifSettings == (ffmpeg.GifSettings{}) {
		opts.GifSettings = ffmpeg.DefaultGifSettings()
	}
	return &Renderer{subtitles: subtitles, views: views, segments: segments, opener: opener, opts: opts}
}

// selectBestView returns the first view whose name matches, in order, one
// of priorities, falling back to the first view in the list if none match.
func selectBestView(priorities []string, views []*models.MediaView) *models.MediaView {
	for _, p := range priorities {
		for _, v := range views {
			if v.Name == p {
				return v
			}
		}
	}
	if len(views) > 0 {
		return views[0]
	}
	return nil
}

func offsetCues(offset time.Duration, cues []models.Cue) []models.Cue {
	out := make([]models.Cue, len(cues))
	for i, c := range cues {
		out[i] = models.Cue{Index: c.Index, Start: saturatingSub(c.Start, offset), End: saturatingSub(c.End, offset), Text: c.Text}
	}
	return out
}

func saturatingSub(a, b time.Duration) time.Duration {
	if a < b {
		return 0
	}
	return a - b
}

func toSelectorSegments(segs []*models.MediaSegment) []segselect.Segment {
	out := make([]segselect.Segment, len(segs))
	for i, s := range segs {
		out[i] = segselect.Segment{SeqID: int(s.SeqID), Hash: s.Hash, Start: s.Start, Key: s.Key}
	}
	return out
}

// MakeGif resolves and stages a clip, then launches ffmpeg against it,
// returning a handle whose Output must be consumed before Wait is called.
func (r *Renderer) MakeGif(ctx context.Context, req MakeGifRequest) (*GifStream, error) {
	if len(req.Segments) != 1 {
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindInvalidRequest, fmt.Errorf("gifs must be exactly 1 segment, got %d", len(req.Segments)))
	}
	sub := req.Segments[0]

	sf, err := r.subtitles.GetByUUID(sub.SrtUUID)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindNotFound, fmt.Errorf("no subtitle file for uuid %s", sub.SrtUUID))
	}
	if sub.SubRangeStart < 0 || sub.SubRangeEnd+1 > len(sf.Cues) || sub.SubRangeStart > sub.SubRangeEnd {
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindInvalidRequest, fmt.Errorf("sub range [%d,%d] out of bounds for %d cues", sub.SubRangeStart, sub.SubRangeEnd, len(sf.Cues)))
	}
	clipCues := sf.Cues[sub.SubRangeStart : sub.SubRangeEnd+1]

	cutStart := saturatingSub(clipCues[0].Start, r.opts.PrePad)
	cutEnd := clipCues[len(clipCues)-1].End + r.opts.PostPad

	views, err := r.views.ListForSrtUUID(sub.SrtUUID.String())
	if err != nil {
		return nil, err
	}
	view := selectBestView(r.opts.ViewPriority, views)
	if view == nil {
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindMissingVideoSource, fmt.Errorf("no media view available for uuid %s", sub.SrtUUID))
	}

	segmentRows, err := r.segments.ListByView(view.ID)
	if err != nil {
		return nil, err
	}
	origin, media, err := segselect.Select(ctx, r.opener, toSelectorSegments(segmentRows), cutStart, cutEnd)
	if err != nil {
		return nil, err
	}
	defer media.Close()

	scratchDir, err := os.MkdirTemp(r.opts.ScratchDir, "render-*")
	if err != nil {
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindIO, err)
	}

	mediaPath := filepath.Join(scratchDir, "media.mkv")
	mf, err := os.Create(mediaPath)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindIO, err)
	}
	if _, err := io.Copy(mf, media); err != nil {
		mf.Close()
		os.RemoveAll(scratchDir)
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindIO, err)
	}
	mf.Close()

	srtPath := filepath.Join(scratchDir, "subtitles.srt")
	if err := writeSRT(srtPath, offsetCues(cutStart, clipCues)); err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}

	cutTimes := ffmpeg.CutTimes{Start: cutStart, End: cutEnd}
	seek, length := cutTimes.SeekDuration(origin)
	args := ffmpeg.GifArgs(mediaPath, seek, length, r.opts.GifSettings, srtPath)

	cmd := exec.CommandContext(ctx, r.opts.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindIO, err)
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(scratchDir)
		return nil, lucerr.New("Renderer.MakeGif", lucerr.KindTranscoderFailed, err)
	}

	return &GifStream{cmd: cmd, stdout: stdout, scratchDir: scratchDir, begin: time.Now()}, nil
}

func writeSRT(path string, cues []models.Cue) error {
	subs := astisub.NewSubtitles()
	for _, c := range cues {
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: c.Start,
			EndAt:   c.End,
			Lines: []astisub.Line{{
				Items: []astisub.LineItem{{Text: c.Text}},
			}},
		})
	}
	if err := subs.Write(path); err != nil {
		return lucerr.New("writeSRT", lucerr.KindIO, err)
	}
	return nil
}

// GifStream is a handle to an in-flight ffmpeg render. Output must be
// consumed exactly once before Wait is called: ffmpeg blocks writing to its
// stdout pipe once the kernel buffer fills, so Wait-before-Output deadlocks.
type GifStream struct {
	cmd         *exec.Cmd
	stdout      io.ReadCloser
	scratchDir  string
	begin       time.Time
	outputTaken bool
}

// Output returns the gif byte stream. May only be called once.
func (g *GifStream) Output() (io.Reader, error) {
	if g.outputTaken {
		return nil, lucerr.New("GifStream.Output", lucerr.KindInvalidRequest, fmt.Errorf("Output already consumed"))
	}
	g.outputTaken = true
	return g.stdout, nil
}

// Wait blocks until ffmpeg exits and cleans up the scratch directory.
// Output must have been called first.
func (g *GifStream) Wait() error {
	if !g.outputTaken {
		return lucerr.New("GifStream.Wait", lucerr.KindInvalidRequest, fmt.Errorf("Output must be consumed before Wait"))
	}
	defer os.RemoveAll(g.scratchDir)
	if err := g.cmd.Wait(); err != nil {
		return lucerr.New("GifStream.Wait", lucerr.KindTranscoderFailed, err)
	}
	return nil
}
