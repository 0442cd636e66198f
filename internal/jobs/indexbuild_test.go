package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

func TestBuildCorpusIndexCoversEveryChapterSubtitle(t *testing.T) {
	db := openJobsTestDB(t)
	corpora := repository.NewCorpusRepository(db)
	chapters := repository.NewChapterRepository(db)
	subs := repository.NewSubtitleRepository(db)
	indexes := repository.NewSearchIndexRepository(db)

	corpus, err := corpora.GetOrAdd("Show")
	if err != nil {
		t.Fatalf("GetOrAdd: %v", err)
	}
	chapterID, err := chapters.Define(corpus.ID, "Pilot", nil, nil, hashOfBytes(t, "pilot bytes"))
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	cues := []models.Cue{
		{Index: 0, Start: time.Second, End: 2 * time.Second, Text: "hello there"},
		{Index: 1, Start: 3 * time.Second, End: 4 * time.Second, Text: "general kenobi"},
	}
	if _, err := subs.Add(chapterID, cues); err != nil {
		t.Fatalf("subs.Add: %v", err)
	}

	indexUUID, docs, err := buildCorpusIndex(corpus.ID, filepath.Join(t.TempDir(), "indexes"), 5, chapters, subs, indexes)
	if err != nil {
		t.Fatalf("buildCorpusIndex: %v", err)
	}
	if indexUUID.String() == "" {
		t.Fatalf("expected a non-empty index uuid")
	}
	if docs != 1 {
		t.Fatalf("expected 1 indexed subtitle version, got %d", docs)
	}

	list, err := indexes.ListIndexes()
	if err != nil {
		t.Fatalf("ListIndexes: %v", err)
	}
	if len(list) != 1 || list[0].UUID != indexUUID {
		t.Fatalf("expected the built index to be recorded, got %+v", list)
	}
}

func TestBuildCorpusIndexEmptyCorpus(t *testing.T) {
	db := openJobsTestDB(t)
	corpora := repository.NewCorpusRepository(db)
	chapters := repository.NewChapterRepository(db)
	subs := repository.NewSubtitleRepository(db)
	indexes := repository.NewSearchIndexRepository(db)

	corpus, err := corpora.GetOrAdd("Empty Show")
	if err != nil {
		t.Fatalf("GetOrAdd: %v", err)
	}

	_, docs, err := buildCorpusIndex(corpus.ID, filepath.Join(t.TempDir(), "indexes"), 5, chapters, subs, indexes)
	if err != nil {
		t.Fatalf("buildCorpusIndex: %v", err)
	}
	if docs != 0 {
		t.Fatalf("expected 0 indexed subtitles for an empty corpus, got %d", docs)
	}
}
