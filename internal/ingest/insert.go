package ingest

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

// stores bundles the repositories a single chapter insert touches.
type stores struct {
	chapters *repository.ChapterRepository
	subs     *repository.SubtitleRepository
	views    *repository.MediaViewRepository
	segments *repository.MediaSegmentRepository
	storage  *repository.StorageRepository
}

// addScannedMediaToDB upserts one scanned file's chapter row, attaches
// parsed subtitles if any, and, if this chapter has no "original" media
// view yet, creates one backed by the source file itself.
func addScannedMediaToDB(s stores, log zerolog.Logger, corpus models.CorpusID, media scannedMedia) (models.ChapterID, error) {
	chapterID, err := s.chapters.Define(corpus, media.metadata.Title, media.metadata.Season, media.metadata.Episode, media.hash)
	if err != nil {
		return 0, err
	}

	switch {
	case !media.subs.found:
		log.Warn().Str("path", media.path).Msg("no sibling subtitle file found")
	case media.subs.parseErr != nil:
		log.Error().Str("path", media.path).Err(media.subs.parseErr).Msg("subtitle file failed to parse, ingesting media without it")
	default:
		if _, err := s.subs.Add(chapterID, media.subs.cues); err != nil {
			return 0, err
		}
	}

	isOriginal, err := hashIsChapterOriginal(s, chapterID, media.hash)
	if err != nil {
		return 0, err
	}
	if !isOriginal {
		viewID, err := s.views.Add(chapterID, models.OriginalViewName)
		if err != nil {
			return 0, err
		}
		if _, err := s.segments.Add(viewID, 0, media.hash, time.Duration(0), nil); err != nil {
			return 0, err
		}
		if _, err := s.storage.Add(media.hash, media.path); err != nil {
			return 0, err
		}
	}

	return chapterID, nil
}

// hashIsChapterOriginal reports whether hash is already a segment of
// chapterID's "original" media view, so a re-ingest of the same bytes does
// not create a duplicate view.
func hashIsChapterOriginal(s stores, chapterID models.ChapterID, hash mediahash.Hash) (bool, error) {
	ch, err := s.chapters.GetByHash(hash)
	if err != nil {
		return false, err
	}
	if ch == nil || ch.ID != chapterID {
		return false, nil
	}

	view, err := s.views.Lookup(chapterID, models.OriginalViewName)
	if err != nil {
		return false, err
	}
	if view == nil {
		return false, nil
	}

	seg, err := s.segments.GetByHash(hash)
	if err != nil {
		return false, err
	}
	if seg == nil {
		return false, nil
	}
	return seg.MediaViewID == view.ID, nil
}
