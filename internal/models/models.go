// Package models defines the relational entities of the archive: corpora,
// chapters, subtitle files, media views, media segments, storage rows, and
// search-index associations.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/segcrypt"
)

type CorpusID int64
type ChapterID int64
type MediaViewID int64
type MediaSegmentID int64
type SubtitleFileID int64
type SearchIndexID int64

// Corpus is a named collection of chapters, e.g. a series.
type Corpus struct {
	ID    CorpusID
	Title string
}

// ChapterMetadata is either a parsed Episode or an Unknown title, mirroring
// the original's metadata enum.
type ChapterMetadata struct {
	Season  *int
	Episode *int
	Title   string
}

// IsEpisode reports whether Season/Episode were parsed.
func (m ChapterMetadata) IsEpisode() bool {
	return m.Season != nil && m.Episode != nil
}

// Chapter is a logical episode or movie, identified by the content hash of
// its canonical source.
type Chapter struct {
	ID       ChapterID
	CorpusID CorpusID
	Title    string
	Season   *int
	Episode  *int
	Hash     mediahash.Hash
}

// MediaView is a named rendition of a chapter.
type MediaView struct {
	ID        MediaViewID
	ChapterID ChapterID
	Name      string
	CreatedAt time.Time
}

const OriginalViewName = "original"

// MediaSegment is one contiguous time slice within a media view.
type MediaSegment struct {
	ID          MediaSegmentID
	MediaViewID MediaViewID
	SeqID       uint16
	Hash        mediahash.Hash
	Start       time.Duration
	Key         *segcrypt.KeyData
}

// Storage is a claim that the bytes hashing to Hash can be read from Path.
type Storage struct {
	ID   int64
	Hash mediahash.Hash
	Path string
}

// Cue is one subtitle line, ordered by Start within its file.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// SubtitleFile is one append-only version of a chapter's subtitle cues.
type SubtitleFile struct {
	ID        SubtitleFileID
	ChapterID ChapterID
	UUID      uuid.UUID
	Cues      []Cue
}

// SearchIndex associates an on-disk index directory (named by UUID) with the
// subtitle-file versions it covers.
type SearchIndex struct {
	ID   SearchIndexID
	UUID uuid.UUID
}
