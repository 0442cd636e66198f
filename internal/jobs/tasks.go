package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/ingest"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/segmenter"
)

// IngestScanPayload names a filesystem root to walk into a corpus.
type IngestScanPayload struct {
	CorpusTitle string `json:"corpus_title"`
	Root        string `json:"root"`
}

// PrepareViewPayload names a chapter and the media view its canonical
// source should be split into.
type PrepareViewPayload struct {
	ChapterID models.ChapterID `json:"chapter_id"`
	ViewName  string           `json:"view_name"`
}

// IndexBuildPayload names a corpus whose subtitle versions should be
// re-indexed from scratch.
type IndexBuildPayload struct {
	CorpusID models.CorpusID `json:"corpus_id"`
}

// Runner holds every dependency the task handlers need and registers
// itself against a Queue's dispatch table.
type Runner struct {
	ingester  *ingest.Ingester
	segmenter *segmenter.Segmenter
	chapters  *repository.ChapterRepository
	views     *repository.MediaViewRepository
	segments  *repository.MediaSegmentRepository
	storage   *repository.StorageRepository
	subs      *repository.SubtitleRepository
	indexes   *repository.SearchIndexRepository
	scratch   string
	indexRoot string
	maxWindow int
	log       zerolog.Logger
}

type RunnerOptions struct {
	ScratchDir string
	IndexDir   string
	MaxWindow  int
}

func NewRunner(
	ingester *ingest.Ingester,
	seg *segmenter.Segmenter,
	chapters *repository.ChapterRepository,
	views *repository.MediaViewRepository,
	segments *repository.MediaSegmentRepository,
	storage *repository.StorageRepository,
	subs *repository.SubtitleRepository,
	indexes *repository.SearchIndexRepository,
	log zerolog.Logger,
	opts RunnerOptions,
) *Runner {
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = 5
	}
	return &Runner{
		ingester:  ingester,
		segmenter: seg,
		chapters:  chapters,
		views:     views,
		segments:  segments,
		storage:   storage,
		subs:      subs,
		indexes:   indexes,
		scratch:   opts.ScratchDir,
		indexRoot: opts.IndexDir,
		maxWindow: opts.MaxWindow,
		log:       log.With().Str("component", "jobs").Logger(),
	}
}

// Register attaches every handler this runner knows about to q's dispatch
// table under its task type constant.
func (rn *Runner) Register(q *Queue) {
	q.RegisterHandler(TaskIngestScan, asynq.HandlerFunc(rn.handleIngestScan))
	q.RegisterHandler(TaskPrepareView, asynq.HandlerFunc(rn.handlePrepareView))
	q.RegisterHandler(TaskIndexBuild, asynq.HandlerFunc(rn.handleIndexBuild))
}

func (rn *Runner) handleIngestScan(ctx context.Context, t *asynq.Task) error {
	var p IngestScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	result, err := rn.ingester.Run(ctx, p.CorpusTitle, p.Root)
	if err != nil {
		return err
	}
	rn.log.Info().
		Str("corpus", p.CorpusTitle).
		Int("files_scanned", result.FilesScanned).
		Int("chapters_added", result.ChaptersAdded).
		Int("skipped", len(result.SkippedFiles)).
		Msg("ingest scan complete")
	return nil
}

func (rn *Runner) handlePrepareView(ctx context.Context, t *asynq.Task) error {
	var p PrepareViewPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	viewID, count, err := prepareView(ctx, rn.segmenter, rn.chapters, rn.views, rn.segments, rn.storage, rn.scratch, p.ChapterID, p.ViewName)
	if err != nil {
		return err
	}
	rn.log.Info().
		Int64("chapter_id", int64(p.ChapterID)).
		Int64("view_id", int64(viewID)).
		Int("segments", count).
		Msg("view prepared")
	return nil
}

func (rn *Runner) handleIndexBuild(ctx context.Context, t *asynq.Task) error {
	var p IndexBuildPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	indexUUID, docs, err := buildCorpusIndex(p.CorpusID, rn.indexRoot, rn.maxWindow, rn.chapters, rn.subs, rn.indexes)
	if err != nil {
		return err
	}
	rn.log.Info().
		Int64("corpus_id", int64(p.CorpusID)).
		Str("index_uuid", indexUUID.String()).
		Int("subtitles_indexed", docs).
		Msg("search index built")
	return nil
}
