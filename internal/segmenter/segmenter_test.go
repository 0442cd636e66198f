package segmenter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/ffmpeg"
	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/segcrypt"
)

func writeFakeSplits(t *testing.T, dir string, n int) []ffmpeg.SplitFile {
	t.Helper()
	var out []ffmpeg.SplitFile
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "seg")
		path = path + string(rune('0'+i))
		data := []byte("segment_data_" + string(rune('0'+i)))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		out = append(out, ffmpeg.SplitFile{Path: path, Start: time.Duration(i) * 30 * time.Second})
	}
	return out
}

func TestIngestSplitsPreservesOrderWithoutEncryption(t *testing.T) {
	fs, err := hashfs.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("hashfs.New: %v", err)
	}
	s := New(fs, Options{Concurrency: 4})

	splits := writeFakeSplits(t, t.TempDir(), 6)
	results, err := s.ingestSplits(context.Background(), splits)
	if err != nil {
		t.Fatalf("ingestSplits: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Idx != i {
			t.Fatalf("results not sorted by idx: results[%d].Idx = %d", i, r.Idx)
		}
		if r.Key != nil {
			t.Fatalf("expected no key when encryption disabled")
		}
	}
}

func TestIngestSplitsEncryptsWhenRequested(t *testing.T) {
	fs, err := hashfs.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("hashfs.New: %v", err)
	}
	s := New(fs, Options{Concurrency: 2, Encrypt: true})

	splits := writeFakeSplits(t, t.TempDir(), 3)
	results, err := s.ingestSplits(context.Background(), splits)
	if err != nil {
		t.Fatalf("ingestSplits: %v", err)
	}
	for _, r := range results {
		if r.Key == nil {
			t.Fatalf("expected a key for every segment when encryption is enabled")
		}
		rc, err := fs.Reader(r.Hash)
		if err != nil {
			t.Fatalf("Reader: %v", err)
		}
		ciphertext := make([]byte, 0)
		buf := make([]byte, 64)
		for {
			n, readErr := rc.Read(buf)
			ciphertext = append(ciphertext, buf[:n]...)
			if readErr != nil {
				break
			}
		}
		rc.Close()
		plaintext, err := segcrypt.Unscramble(ciphertext, *r.Key)
		if err != nil {
			t.Fatalf("Unscramble: %v", err)
		}
		if len(plaintext) == 0 {
			t.Fatalf("expected non-empty plaintext")
		}
	}
}

func TestIngestSplitsEmpty(t *testing.T) {
	fs, err := hashfs.New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("hashfs.New: %v", err)
	}
	s := New(fs, Options{})
	results, err := s.ingestSplits(context.Background(), nil)
	if err != nil {
		t.Fatalf("ingestSplits: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
