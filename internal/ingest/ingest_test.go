package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	lucdb "github.com/scottschroeder/lucille-go/internal/db"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := lucdb.Connect(path)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	migrationsDir := findMigrationsDir(t)
	if err := lucdb.Migrate(conn, os.DirFS(migrationsDir), zerolog.Nop()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return conn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate migrations directory")
		}
		dir = parent
	}
}

func newTestIngester(t *testing.T) *Ingester {
	t.Helper()
	db := openTestDB(t)
	return New(
		repository.NewCorpusRepository(db),
		repository.NewChapterRepository(db),
		repository.NewSubtitleRepository(db),
		repository.NewMediaViewRepository(db),
		repository.NewMediaSegmentRepository(db),
		repository.NewStorageRepository(db),
		zerolog.Nop(),
		Options{},
	)
}

func writeFixture(t *testing.T, dir, name, srtText string) string {
	t.Helper()
	mediaPath := filepath.Join(dir, name+".mkv")
	if err := os.WriteFile(mediaPath, []byte("media bytes for "+name), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if srtText != "" {
		if err := os.WriteFile(filepath.Join(dir, name+".srt"), []byte(srtText), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return mediaPath
}

func TestRunIngestsEpisodeWithSubtitles(t *testing.T) {
	in := newTestIngester(t)
	dir := t.TempDir()
	writeFixture(t, dir, "Show.Name.S01E02.Pilot", sampleSRT)

	result, err := in.Run(context.Background(), "Show Name", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.FilesScanned != 1 || result.ChaptersAdded != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.SkippedFiles) != 0 {
		t.Fatalf("expected no skipped files, got %v", result.SkippedFiles)
	}

	corpus, err := in.corpora.GetOrAdd("Show Name")
	if err != nil {
		t.Fatalf("GetOrAdd: %v", err)
	}
	chapters, err := in.stores.chapters.ListActiveForCorpus(corpus.ID)
	if err != nil {
		t.Fatalf("ListActiveForCorpus: %v", err)
	}
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Season == nil || *chapters[0].Season != 1 {
		t.Fatalf("expected season 1, got %+v", chapters[0])
	}

	views, err := in.stores.views.ListForChapter(chapters[0].ID)
	if err != nil {
		t.Fatalf("ListForChapter: %v", err)
	}
	if len(views) != 1 || views[0].Name != "original" {
		t.Fatalf("expected single original view, got %+v", views)
	}

	storageRow, err := in.stores.storage.GetByHash(chapters[0].Hash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if storageRow == nil {
		t.Fatalf("expected a storage row mapping hash to source path")
	}
}

func TestRunIngestsMediaWithoutSubtitles(t *testing.T) {
	in := newTestIngester(t)
	dir := t.TempDir()
	writeFixture(t, dir, "Some.Movie.2020", "")

	result, err := in.Run(context.Background(), "Movies", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ChaptersAdded != 1 {
		t.Fatalf("expected 1 chapter, got %+v", result)
	}
}

func TestRunIsIdempotentForSameBytes(t *testing.T) {
	in := newTestIngester(t)
	dir := t.TempDir()
	writeFixture(t, dir, "Show.Name.S01E01.Pilot", sampleSRT)

	if _, err := in.Run(context.Background(), "Show Name", dir); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := in.Run(context.Background(), "Show Name", dir); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	corpus, _ := in.corpora.GetOrAdd("Show Name")
	chapters, err := in.stores.chapters.ListActiveForCorpus(corpus.ID)
	if err != nil {
		t.Fatalf("ListActiveForCorpus: %v", err)
	}
	if len(chapters) != 1 {
		t.Fatalf("re-ingesting identical bytes should not create a new chapter, got %d", len(chapters))
	}

	views, err := in.stores.views.ListForChapter(chapters[0].ID)
	if err != nil {
		t.Fatalf("ListForChapter: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("re-ingesting identical bytes should not create a second original view, got %d", len(views))
	}
}
