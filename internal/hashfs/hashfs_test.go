package hashfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/mediahash"
)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const (
	testData = "the quick brown fox jumped over the lazy log\n"
	testHash = "e2291e7093575a6f3de282e558ee85b0eab2e8e1f1025c0f277a5ee31e4cfb84"
)

func TestHashPathLayout(t *testing.T) {
	h, err := mediahash.Parse(testHash)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d, f := hashPath(h)
	if d != "e2/29" {
		t.Fatalf("dir = %q, want e2/29", d)
	}
	if f != testHash {
		t.Fatalf("file = %q, want %q", f, testHash)
	}
}

func TestHashPathFanoutMatchesLeadingBytes(t *testing.T) {
	h, err := mediahash.Sum(bytes.NewReader([]byte("13750\n")))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	d, _ := hashPath(h)
	if d[:2] != h.String()[0:2] || d[3:5] != h.String()[2:4] {
		t.Fatalf("dir %q does not match fanout of hash %q", d, h)
	}
}

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	fs, err := New(root, nopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fpath, h, err := fs.Write(bytes.NewReader([]byte(testData)))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if h.String() != testHash {
		t.Fatalf("hash = %s, want %s", h, testHash)
	}
	wantPath := filepath.Join(root, "e2", "29", testHash)
	if fpath != wantPath {
		t.Fatalf("path = %s, want %s", fpath, wantPath)
	}

	got, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != testData {
		t.Fatalf("content mismatch")
	}

	entries, err := os.ReadDir(filepath.Join(root, tmpDirName))
	if err != nil {
		t.Fatalf("ReadDir tmp: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty tmp dir, found %d entries", len(entries))
	}
}

func TestAllHashesEmpty(t *testing.T) {
	fs, err := New(t.TempDir(), nopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entries, err := fs.AllHashes()
	if err != nil {
		t.Fatalf("AllHashes: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestAllHashesMultipleEntries(t *testing.T) {
	fs, err := New(t.TempDir(), nopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := make(map[string]string)
	for i := 0; i < 50; i++ {
		data := []byte{byte(i), byte(i + 1)}
		p, h, err := fs.Write(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		want[h.String()] = p
	}

	entries, err := fs.AllHashes()
	if err != nil {
		t.Fatalf("AllHashes: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for _, e := range entries {
		if want[e.Hash.String()] != e.Path {
			t.Fatalf("entry %+v does not match expected path %s", e, want[e.Hash.String()])
		}
	}
}

func TestRemoveSingleEntry(t *testing.T) {
	fs, err := New(t.TempDir(), nopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p1, h1, err := fs.Write(bytes.NewReader([]byte("data1")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p2, _, err := fs.Write(bytes.NewReader([]byte("data2")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fs.Remove(h1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p1); !os.IsNotExist(err) {
		t.Fatalf("p1 should not exist")
	}
	if _, err := os.Stat(p2); err != nil {
		t.Fatalf("p2 should still exist: %v", err)
	}
}

// TestRemoveEntriesWithSharedParents replicates the original suite's E1
// scenario verbatim: three hashes chosen so that all three share a `de`
// parent and two of them additionally share `de/ad`.
func TestRemoveEntriesWithSharedParents(t *testing.T) {
	// 1621 -> de690d1ae70d10081585d8ed98ed5825ac88fe8029b67a583a760fcc1d505636
	// 109583 -> deadc19bb1cd5f49f9783b1f8cacd788e5fb7646264307f34041609dd71473b9
	// 146786 -> dead536238eeae54d8205a34c59218c502fd5c53a468eb4069eedd3332cf1f5f
	root := t.TempDir()
	fs, err := New(root, nopLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p1, h1, err := fs.Write(bytes.NewReader([]byte("1621")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p2, h2, err := fs.Write(bytes.NewReader([]byte("109583")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	p3, h3, err := fs.Write(bytes.NewReader([]byte("146786")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists := func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}

	if !exists(p1) || !exists(p2) || !exists(p3) {
		t.Fatalf("all three files should exist before removal")
	}
	deDir := filepath.Join(root, "de")
	deAdDir := filepath.Join(root, "de", "ad")
	if !exists(deDir) || !exists(deAdDir) {
		t.Fatalf("expected shared parent dirs de and de/ad to exist")
	}

	if err := fs.Remove(h3); err != nil {
		t.Fatalf("Remove h3: %v", err)
	}
	if !exists(p1) || !exists(p2) || exists(p3) {
		t.Fatalf("unexpected existence after removing h3")
	}
	if !exists(deDir) || !exists(deAdDir) {
		t.Fatalf("de and de/ad should still exist: one sibling remains")
	}

	if err := fs.Remove(h2); err != nil {
		t.Fatalf("Remove h2: %v", err)
	}
	if !exists(p1) || exists(p2) || exists(p3) {
		t.Fatalf("unexpected existence after removing h2")
	}
	if !exists(deDir) {
		t.Fatalf("de should still exist: h1 remains under it")
	}
	if exists(deAdDir) {
		t.Fatalf("de/ad should no longer exist: both its occupants are gone")
	}

	if err := fs.Remove(h1); err != nil {
		t.Fatalf("Remove h1: %v", err)
	}
	if exists(p1) || exists(p2) || exists(p3) {
		t.Fatalf("all files should be gone")
	}
	if exists(deDir) {
		t.Fatalf("de should no longer exist")
	}
}
