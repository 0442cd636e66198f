// Package segmenter splits a chapter's source media into fixed-length
// segments via an external transcoder, optionally encrypts each one, and
// ingests the results into content-addressed storage (C7).
package segmenter

import (
	"bytes"
	"context"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scottschroeder/lucille-go/internal/ffmpeg"
	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/segcrypt"
)

// ProcessedSegment is one ingested segment: its position in sequence, the
// content hash its bytes are stored under, the HashFS path those bytes were
// written to, the time it starts at within the source media, and the
// encryption key if the segment was scrambled.
type ProcessedSegment struct {
	Idx   int
	Hash  mediahash.Hash
	Path  string
	Start time.Duration
	Key   *segcrypt.KeyData
}

// Options configures one split-and-ingest run.
type Options struct {
	FFmpegPath      string
	SegmentDuration time.Duration
	Concurrency     int
	Encrypt         bool
}

// Segmenter invokes ffmpeg's segment muxer against a source file and writes
// the resulting pieces into a HashFS, optionally encrypting each one.
type Segmenter struct {
	fs   *hashfs.HashFS
	opts Options
}

func New(fs *hashfs.HashFS, opts Options) *Segmenter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Segmenter{fs: fs, opts: opts}
}

// Process splits src into segments under a scratch directory, then fans
// out bounded-concurrency workers to hash (and optionally encrypt) each
// piece into the HashFS, returning results sorted by idx.
func (s *Segmenter) Process(ctx context.Context, src, scratchDir string) ([]ProcessedSegment, error) {
	splits, err := ffmpeg.Split(ctx, s.opts.FFmpegPath, src, s.opts.SegmentDuration, scratchDir)
	if err != nil {
		return nil, lucerr.New("Segmenter.Process", lucerr.KindTranscoderFailed, err)
	}
	return s.ingestSplits(ctx, splits)
}

// ingestSplits fans out bounded-concurrency workers over already-split
// files, separated from Process so it can be exercised without invoking
// ffmpeg.
func (s *Segmenter) ingestSplits(ctx context.Context, splits []ffmpeg.SplitFile) ([]ProcessedSegment, error) {
	results := make([]ProcessedSegment, len(splits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for idx, split := range splits {
		idx, split := idx, split
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ps, err := s.ingestOne(idx, split)
			if err != nil {
				return err
			}
			results[idx] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Idx < results[j].Idx })
	return results, nil
}

func (s *Segmenter) ingestOne(idx int, split ffmpeg.SplitFile) (ProcessedSegment, error) {
	f, err := os.Open(split.Path)
	if err != nil {
		return ProcessedSegment{}, lucerr.New("Segmenter.ingestOne", lucerr.KindIO, err)
	}
	defer f.Close()

	if !s.opts.Encrypt {
		fpath, hash, err := s.fs.Write(f)
		if err != nil {
			return ProcessedSegment{}, err
		}
		return ProcessedSegment{Idx: idx, Hash: hash, Path: fpath, Start: split.Start}, nil
	}

	plaintext, err := os.ReadFile(split.Path)
	if err != nil {
		return ProcessedSegment{}, lucerr.New("Segmenter.ingestOne", lucerr.KindIO, err)
	}
	keyData, ciphertext, err := segcrypt.Scramble(plaintext)
	if err != nil {
		return ProcessedSegment{}, err
	}
	fpath, hash, err := s.fs.Write(bytes.NewReader(ciphertext))
	if err != nil {
		return ProcessedSegment{}, err
	}
	return ProcessedSegment{Idx: idx, Hash: hash, Path: fpath, Start: split.Start, Key: &keyData}, nil
}
