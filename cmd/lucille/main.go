// Command lucille boots the subtitled-media archive: it wires the metadata
// store, content-addressed storage, search index, and clip renderer
// together, then dispatches to one of a handful of subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/config"
	lucdb "github.com/scottschroeder/lucille-go/internal/db"
	"github.com/scottschroeder/lucille-go/internal/ffmpeg"
	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/ingest"
	"github.com/scottschroeder/lucille-go/internal/jobs"
	"github.com/scottschroeder/lucille-go/internal/logx"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/render"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/scheduler"
	"github.com/scottschroeder/lucille-go/internal/search"
	"github.com/scottschroeder/lucille-go/internal/segmenter"
	"github.com/scottschroeder/lucille-go/internal/storage"
	"github.com/scottschroeder/lucille-go/internal/verify"
	"github.com/scottschroeder/lucille-go/internal/version"
	"github.com/scottschroeder/lucille-go/migrations"
)

const usage = `lucille <command> [flags]

commands:
  ingest       walk a directory of media into a corpus
  prepare      split a chapter's source into a playable media view
  index        rebuild a corpus's search index
  search       query a built search index
  render       render a gif clip from a subtitle range
  verify       check orphaned storage rows against the filesystem
  serve-jobs   run the background job worker
`

// repos bundles every repository a subcommand might need, opened once
// against the shared connection.
type repos struct {
	corpora  *repository.CorpusRepository
	chapters *repository.ChapterRepository
	subs     *repository.SubtitleRepository
	views    *repository.MediaViewRepository
	segments *repository.MediaSegmentRepository
	storage  *repository.StorageRepository
	indexes  *repository.SearchIndexRepository
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)
	v := version.Load(log)
	log.Info().Str("version", v.Version).Msg("lucille starting")

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "ingest":
		runIngest(cfg, log, args)
	case "prepare":
		runPrepare(cfg, log, args)
	case "index":
		runIndex(cfg, log, args)
	case "search":
		runSearch(cfg, log, args)
	case "render":
		runRender(cfg, log, args)
	case "verify":
		runVerify(cfg, log, args)
	case "serve-jobs":
		runServeJobs(cfg, log, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func openRepos(cfg *config.Config, log zerolog.Logger) *repos {
	conn, err := lucdb.Connect(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := lucdb.Migrate(conn, migrations.FS, log); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	return &repos{
		corpora:  repository.NewCorpusRepository(conn),
		chapters: repository.NewChapterRepository(conn),
		subs:     repository.NewSubtitleRepository(conn),
		views:    repository.NewMediaViewRepository(conn),
		segments: repository.NewMediaSegmentRepository(conn),
		storage:  repository.NewStorageRepository(conn),
		indexes:  repository.NewSearchIndexRepository(conn),
	}
}

func openHashFS(cfg *config.Config, log zerolog.Logger) *hashfs.HashFS {
	fs, err := hashfs.New(cfg.HashFSRoot, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open hashfs root")
	}
	return fs
}

func runIngest(cfg *config.Config, log zerolog.Logger, args []string) {
	fset := flag.NewFlagSet("ingest", flag.ExitOnError)
	corpusTitle := fset.String("corpus", "", "corpus title to ingest into")
	root := fset.String("root", "", "directory to walk for media files")
	fset.Parse(args)
	if *corpusTitle == "" || *root == "" {
		log.Fatal().Msg("-corpus and -root are required")
	}

	r := openRepos(cfg, log)
	in := ingest.New(r.corpora, r.chapters, r.subs, r.views, r.segments, r.storage, log,
		ingest.Options{MediaExtensions: cfg.MediaExtensions, Concurrency: cfg.SegmentConcurrency})

	result, err := in.Run(context.Background(), *corpusTitle, *root)
	if err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}
	log.Info().
		Int("files_scanned", result.FilesScanned).
		Int("chapters_added", result.ChaptersAdded).
		Int("skipped", len(result.SkippedFiles)).
		Msg("ingest complete")
}

func runPrepare(cfg *config.Config, log zerolog.Logger, args []string) {
	fset := flag.NewFlagSet("prepare", flag.ExitOnError)
	chapterID := fset.Int64("chapter", 0, "chapter id to prepare")
	viewName := fset.String("view", "original", "media view name to create or fill")
	fset.Parse(args)
	if *chapterID == 0 {
		log.Fatal().Msg("-chapter is required")
	}

	q := jobs.NewQueue(cfg.RedisAddr, log)
	id, err := q.EnqueueUnique(jobs.TaskPrepareView, jobs.PrepareViewPayload{
		ChapterID: models.ChapterID(*chapterID),
		ViewName:  *viewName,
	}, fmt.Sprintf("prepare-%d-%s", *chapterID, *viewName))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to enqueue prepare job")
	}
	log.Info().Int64("chapter_id", *chapterID).Str("view", *viewName).Str("task_id", id).Msg("prepare job enqueued")
}

func runIndex(cfg *config.Config, log zerolog.Logger, args []string) {
	fset := flag.NewFlagSet("index", flag.ExitOnError)
	corpusTitle := fset.String("corpus", "", "corpus title to re-index")
	fset.Parse(args)
	if *corpusTitle == "" {
		log.Fatal().Msg("-corpus is required")
	}

	r := openRepos(cfg, log)
	corpus, err := r.corpora.GetByName(*corpusTitle)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to look up corpus")
	}
	if corpus == nil {
		log.Fatal().Str("corpus", *corpusTitle).Msg("no such corpus")
	}

	q := jobs.NewQueue(cfg.RedisAddr, log)
	if _, err := q.EnqueueUnique(jobs.TaskIndexBuild, jobs.IndexBuildPayload{CorpusID: corpus.ID}, fmt.Sprintf("index-%d", corpus.ID)); err != nil {
		log.Fatal().Err(err).Msg("failed to enqueue index build")
	}
	log.Info().Str("corpus", *corpusTitle).Msg("index build enqueued")
}

func runSearch(cfg *config.Config, log zerolog.Logger, args []string) {
	fset := flag.NewFlagSet("search", flag.ExitOnError)
	indexID := fset.String("index", "", "search index uuid")
	query := fset.String("q", "", "query text")
	window := fset.Int("window", 0, "max clip width in cues, 0 uses the configured default")
	fset.Parse(args)
	if *indexID == "" || *query == "" {
		log.Fatal().Msg("-index and -q are required")
	}
	if *window <= 0 {
		*window = cfg.SearchDefaultWindow
	}

	indexUUID, err := uuid.Parse(*indexID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid index uuid")
	}
	idx, err := search.Open(indexUUID, filepath.Join(cfg.SearchIndexRoot, indexUUID.String()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open search index")
	}
	defer idx.Close()

	scores, err := idx.Search(*query, *window)
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}
	ranked := search.Rank(scores)
	if len(ranked) > cfg.SearchMaxResponses {
		ranked = ranked[:cfg.SearchMaxResponses]
	}
	for _, m := range ranked {
		fmt.Printf("srt=%d score=%.3f clip=[%d,%d)\n", m.SrtID, m.Score, m.Clip.Start, m.Clip.End)
	}
}

func runRender(cfg *config.Config, log zerolog.Logger, args []string) {
	fset := flag.NewFlagSet("render", flag.ExitOnError)
	srtUUID := fset.String("srt", "", "subtitle file uuid")
	start := fset.Int("start", 0, "first cue index, inclusive")
	end := fset.Int("end", 0, "last cue index, inclusive")
	out := fset.String("out", "clip.gif", "output path")
	fset.Parse(args)
	if *srtUUID == "" {
		log.Fatal().Msg("-srt is required")
	}

	parsedUUID, err := uuid.Parse(*srtUUID)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid subtitle uuid")
	}

	r := openRepos(cfg, log)
	fs := openHashFS(cfg, log)
	cascade := storage.NewCascade(storage.NewHashFSStorage(fs), storage.NewDbStorage(r.storage))

	rdr := render.New(r.subs, r.views, r.segments, cascade, render.Options{
		FFmpegPath:   cfg.FFmpegPath,
		ScratchDir:   cfg.ScratchDir,
		ViewPriority: cfg.ViewPriority,
		PrePad:       cfg.ClipPrePad,
		PostPad:      cfg.ClipPostPad,
		GifSettings:  ffmpeg.GifSettings{FPS: cfg.GifFPS, Width: cfg.GifWidth, FontSize: cfg.GifFontSize},
	})

	stream, err := rdr.MakeGif(context.Background(), render.MakeGifRequest{
		Segments: []render.SubSegment{{SrtUUID: parsedUUID, SubRangeStart: *start, SubRangeEnd: *end}},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("render failed")
	}

	reader, err := stream.Output()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read gif output")
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create output file")
	}
	_, copyErr := f.ReadFrom(reader)
	f.Close()
	if waitErr := stream.Wait(); waitErr != nil {
		log.Fatal().Err(waitErr).Msg("ffmpeg render failed")
	}
	if copyErr != nil {
		log.Fatal().Err(copyErr).Msg("failed to write gif output")
	}
	log.Info().Str("out", *out).Msg("clip rendered")
}

func runVerify(cfg *config.Config, log zerolog.Logger, args []string) {
	r := openRepos(cfg, log)
	verifier := verify.New(r.storage)

	orphans, err := r.storage.ListOrphans()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list orphans")
	}
	for _, row := range orphans {
		result, err := verifier.CheckLocalFile(context.Background(), row.Hash, verify.VerifyAll)
		if err != nil {
			log.Error().Str("path", row.Path).Err(err).Msg("check failed")
			continue
		}
		log.Info().Str("path", row.Path).Str("outcome", result.Outcome.String()).Bool("orphan", true).Msg("checked")
	}
}

func runServeJobs(cfg *config.Config, log zerolog.Logger, args []string) {
	r := openRepos(cfg, log)
	fs := openHashFS(cfg, log)
	seg := segmenter.New(fs, segmenter.Options{FFmpegPath: cfg.FFmpegPath, SegmentDuration: cfg.SegmentDuration, Concurrency: cfg.SegmentConcurrency})
	in := ingest.New(r.corpora, r.chapters, r.subs, r.views, r.segments, r.storage, log,
		ingest.Options{MediaExtensions: cfg.MediaExtensions, Concurrency: cfg.SegmentConcurrency})

	rn := jobs.NewRunner(in, seg, r.chapters, r.views, r.segments, r.storage, r.subs, r.indexes, log,
		jobs.RunnerOptions{ScratchDir: cfg.ScratchDir, IndexDir: cfg.SearchIndexRoot, MaxWindow: cfg.SearchMaxWindow})

	q := jobs.NewQueue(cfg.RedisAddr, log)
	rn.Register(q)

	verifier := verify.New(r.storage)
	sweep := scheduler.New(r.storage, fs, verifier, log, fmt.Sprintf("@every %s", cfg.OrphanSweepInterval))
	if err := sweep.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start orphan sweep scheduler")
	}
	defer sweep.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := q.Start(ctx); err != nil {
			log.Error().Err(err).Msg("job queue worker stopped")
		}
	}()
	defer q.Stop()

	<-ctx.Done()
	log.Info().Msg("shutting down")
}
