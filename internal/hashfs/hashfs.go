// Package hashfs implements a content-addressed local filesystem: a
// two-level hex-fanout directory tree keyed by SHA-256, with atomic
// temp-then-rename writes and parent-directory garbage collection on
// remove.
package hashfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
)

const tmpDirName = ".tmp"

// HashFS is a content-addressed store rooted at a directory on the local
// filesystem.
type HashFS struct {
	root string
	tmp  string
	log  zerolog.Logger
}

// New canonicalizes root and ensures its .tmp staging directory exists.
func New(root string, log zerolog.Logger) (*HashFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, lucerr.New("hashfs.New", lucerr.KindIO, err)
	}
	tmp := filepath.Join(abs, tmpDirName)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, lucerr.New("hashfs.New", lucerr.KindIO, err)
	}
	return &HashFS{root: abs, tmp: tmp, log: log}, nil
}

// hashPath derives the two-level hex fanout directory and the full-hex file
// name for hash.
func hashPath(h mediahash.Hash) (dir, file string) {
	s := h.String()
	return fmt.Sprintf("%s/%s", s[0:2], s[2:4]), s
}

// Path returns the pure (dir, filename) split for hash; no I/O.
func (fs *HashFS) Path(h mediahash.Hash) (dir, file string) {
	d, f := hashPath(h)
	return filepath.Join(fs.root, d), f
}

// FilePath returns the full path hash would be stored at; no I/O.
func (fs *HashFS) FilePath(h mediahash.Hash) string {
	d, f := fs.Path(h)
	return filepath.Join(d, f)
}

// Reader opens the stored file for hash. Returns lucerr.KindNotFound if
// absent.
func (fs *HashFS) Reader(h mediahash.Hash) (io.ReadCloser, error) {
	f, err := os.Open(fs.FilePath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lucerr.New("hashfs.Reader", lucerr.KindNotFound, err)
		}
		return nil, lucerr.New("hashfs.Reader", lucerr.KindIO, err)
	}
	return f, nil
}

// Write streams r into a temp file under .tmp, hashing as it goes, then
// atomically renames it to its content-addressed final path. The temp file
// is removed even on failure paths reachable after its creation.
func (fs *HashFS) Write(r io.Reader) (string, mediahash.Hash, error) {
	tmpFile, err := os.CreateTemp(fs.tmp, "hashfs-*")
	if err != nil {
		return "", mediahash.Hash{}, lucerr.New("hashfs.Write", lucerr.KindIO, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // best-effort; no-op once renamed away.

	hw := mediahash.NewHashingWriter(tmpFile)
	_, copyErr := io.Copy(hw, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		return "", mediahash.Hash{}, lucerr.New("hashfs.Write", lucerr.KindIO, copyErr)
	}
	if closeErr != nil {
		return "", mediahash.Hash{}, lucerr.New("hashfs.Write", lucerr.KindIO, closeErr)
	}

	h := hw.Sum()
	dir, file := fs.Path(h)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", mediahash.Hash{}, lucerr.New("hashfs.Write", lucerr.KindIO, err)
	}
	fpath := filepath.Join(dir, file)
	if err := os.Rename(tmpPath, fpath); err != nil {
		return "", mediahash.Hash{}, lucerr.New("hashfs.Write", lucerr.KindIO, err)
	}
	return fpath, h, nil
}

// Remove unlinks the file for hash, then removes each ancestor directory up
// to (but not including) root, stopping at the first non-empty parent.
func (fs *HashFS) Remove(h mediahash.Hash) error {
	p := fs.FilePath(h)
	fs.log.Trace().Str("path", p).Msg("hashfs remove")
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return lucerr.New("hashfs.Remove", lucerr.KindNotFound, err)
		}
		return lucerr.New("hashfs.Remove", lucerr.KindIO, err)
	}

	d := filepath.Dir(p)
	for d != fs.root && d != "." && d != string(filepath.Separator) {
		if err := os.Remove(d); err != nil {
			break
		}
		fs.log.Trace().Str("dir", d).Msg("hashfs rmdir")
		d = filepath.Dir(d)
	}
	return nil
}

// Entry pairs a stored path with the hash parsed from its filename.
type Entry struct {
	Path string
	Hash mediahash.Hash
}

// AllHashes recursively walks root, skipping dotfiles/dotdirs (including
// .tmp), parsing each remaining filename as a hash. Unparseable filenames
// are logged and skipped rather than failing the walk.
func (fs *HashFS) AllHashes() ([]Entry, error) {
	var out []Entry
	err := filepath.Walk(fs.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if path != fs.root && strings.HasPrefix(name, ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		h, perr := mediahash.Parse(name)
		if perr != nil {
			fs.log.Warn().Str("path", path).Err(perr).Msg("hashfs: could not parse hash from filename")
			return nil
		}
		out = append(out, Entry{Path: path, Hash: h})
		return nil
	})
	if err != nil {
		return nil, lucerr.New("hashfs.AllHashes", lucerr.KindIO, err)
	}
	return out, nil
}
