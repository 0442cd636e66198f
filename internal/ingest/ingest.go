// Package ingest walks a directory tree for media files, hashes and
// extracts subtitles from each in parallel, and serially records the
// results against a corpus in the metadata store (C5).
package ingest

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

// Options configures one ingest run.
type Options struct {
	MediaExtensions []string
	Concurrency     int
}

// Ingester scans a root path and records every media file it finds against
// a corpus.
type Ingester struct {
	corpora  *repository.CorpusRepository
	stores   stores
	opts     Options
	log      zerolog.Logger
}

func New(
	corpora *repository.CorpusRepository,
	chapters *repository.ChapterRepository,
	subs *repository.SubtitleRepository,
	views *repository.MediaViewRepository,
	segments *repository.MediaSegmentRepository,
	storage *repository.StorageRepository,
	log zerolog.Logger,
	opts Options,
) *Ingester {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if len(opts.MediaExtensions) == 0 {
		opts.MediaExtensions = []string{".mkv"}
	}
	return &Ingester{
		corpora: corpora,
		stores: stores{
			chapters: chapters,
			subs:     subs,
			views:    views,
			segments: segments,
			storage:  storage,
		},
		opts: opts,
		log:  log,
	}
}

// Result summarizes one ingest run.
type Result struct {
	FilesScanned  int
	ChaptersAdded int
	SkippedFiles  []string
}

// Run scans root for media, hashes and extracts subtitles for each file
// concurrently, then serially inserts every chapter under corpusTitle.
func (in *Ingester) Run(ctx context.Context, corpusTitle, root string) (*Result, error) {
	corpus, err := in.corpora.GetOrAdd(corpusTitle)
	if err != nil {
		return nil, err
	}

	paths, err := scanMediaPaths(root, in.opts.MediaExtensions)
	if err != nil {
		return nil, lucerr.New("Ingester.Run", lucerr.KindIO, err)
	}

	scanned, skipped, err := in.scanAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	result := &Result{FilesScanned: len(paths), SkippedFiles: skipped}
	for _, media := range scanned {
		if _, err := addScannedMediaToDB(in.stores, in.log, corpus.ID, media); err != nil {
			return nil, err
		}
		result.ChaptersAdded++
	}
	return result, nil
}

// scanAll fans out readMediaFromPath across paths with bounded concurrency,
// logging and skipping any file whose filesystem-bound stage fails rather
// than aborting the whole run, then returns results in scan order so
// insertion order stays deterministic.
func (in *Ingester) scanAll(ctx context.Context, paths []string) ([]scannedMedia, []string, error) {
	results := make([]scannedMedia, len(paths))
	ok := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Concurrency)

	for idx, path := range paths {
		idx, path := idx, path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			media, err := readMediaFromPath(path)
			if err != nil {
				in.log.Warn().Str("path", path).Err(err).Msg("unable to ingest media file")
				return nil
			}
			results[idx] = media
			ok[idx] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, lucerr.New("Ingester.scanAll", lucerr.KindIO, err)
	}

	var scanned []scannedMedia
	var skipped []string
	for i, path := range paths {
		if ok[i] {
			scanned = append(scanned, results[i])
		} else {
			skipped = append(skipped, path)
		}
	}
	return scanned, skipped, nil
}
