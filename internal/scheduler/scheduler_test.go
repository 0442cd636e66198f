package scheduler

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	lucdb "github.com/scottschroeder/lucille-go/internal/db"
	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/verify"
)

func openSchedulerTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := lucdb.Connect(path)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			if err := lucdb.Migrate(conn, os.DirFS(candidate), zerolog.Nop()); err != nil {
				t.Fatalf("Migrate: %v", err)
			}
			return conn
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate migrations directory")
		}
		dir = parent
	}
}

func TestSweepReclaimsOrphanedStorageRow(t *testing.T) {
	db := openSchedulerTestDB(t)
	storage := repository.NewStorageRepository(db)
	fs, err := hashfs.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("hashfs.New: %v", err)
	}
	verifier := verify.New(storage)

	_, hash, err := fs.Write(strings.NewReader("orphaned blob bytes"))
	if err != nil {
		t.Fatalf("fs.Write: %v", err)
	}
	if _, err := storage.Add(hash, fs.FilePath(hash)); err != nil {
		t.Fatalf("storage.Add: %v", err)
	}

	orphansBefore, err := storage.ListOrphans()
	if err != nil {
		t.Fatalf("ListOrphans: %v", err)
	}
	if len(orphansBefore) != 1 {
		t.Fatalf("expected 1 orphan before sweep, got %d", len(orphansBefore))
	}

	s := New(storage, fs, verifier, zerolog.Nop(), "")
	s.sweep()

	orphansAfter, err := storage.ListOrphans()
	if err != nil {
		t.Fatalf("ListOrphans: %v", err)
	}
	if len(orphansAfter) != 0 {
		t.Fatalf("expected 0 orphans after sweep, got %d", len(orphansAfter))
	}
	if _, err := os.Stat(fs.FilePath(hash)); !os.IsNotExist(err) {
		t.Fatalf("expected the blob to be removed from disk, stat err: %v", err)
	}
}

func TestSweepNoopWhenNoOrphans(t *testing.T) {
	db := openSchedulerTestDB(t)
	storage := repository.NewStorageRepository(db)
	fs, err := hashfs.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("hashfs.New: %v", err)
	}
	verifier := verify.New(storage)

	s := New(storage, fs, verifier, zerolog.Nop(), "")
	s.sweep()
}
