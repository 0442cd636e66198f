// Package storage implements the cascading multi-backend retrieval layer
// (C8): an ordered list of named backends, each resolving a content hash to
// a readable byte stream; the first hit wins.
package storage

import (
	"context"
	"io"
	"os"

	"github.com/scottschroeder/lucille-go/internal/hashfs"
	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

// CacheControl advises whether a backend's hits are cheap to reopen.
type CacheControl int

const (
	CacheLocal CacheControl = iota
	CacheRemote
)

// Backend is the capability set every storage backend implements: dynamic
// dispatch happens only at the cascade boundary, never via inheritance.
type Backend interface {
	GetByHash(ctx context.Context, h mediahash.Hash) (io.ReadCloser, bool, error)
	CacheControl() CacheControl
	Name() string
}

// Cascade consults an ordered list of backends and returns the first hit.
type Cascade struct {
	backends []Backend
}

func NewCascade(backends ...Backend) *Cascade {
	return &Cascade{backends: backends}
}

// Open implements segselect.Opener, resolving hash through the cascade.
func (c *Cascade) Open(ctx context.Context, h mediahash.Hash) (io.ReadCloser, error) {
	for _, b := range c.backends {
		r, ok, err := b.GetByHash(ctx, h)
		if err != nil {
			return nil, err
		}
		if ok {
			return r, nil
		}
	}
	return nil, lucerr.New("Cascade.Open", lucerr.KindMissingVideoSource, errNoBackendHit)
}

var errNoBackendHit = missingSourceError{}

type missingSourceError struct{}

func (missingSourceError) Error() string { return "no storage backend returned a reader for this hash" }

// DbStorage looks up a storage row in the metadata store and opens the file
// at its recorded path.
type DbStorage struct {
	repo *repository.StorageRepository
}

func NewDbStorage(repo *repository.StorageRepository) *DbStorage {
	return &DbStorage{repo: repo}
}

func (d *DbStorage) Name() string               { return "db" }
func (d *DbStorage) CacheControl() CacheControl { return CacheLocal }

func (d *DbStorage) GetByHash(_ context.Context, h mediahash.Hash) (io.ReadCloser, bool, error) {
	row, err := d.repo.GetByHash(h)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	f, err := os.Open(row.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, lucerr.New("DbStorage.GetByHash", lucerr.KindIO, err)
	}
	return f, true, nil
}

// HashFSStorage computes the expected path for a hash directly from HashFS
// layout rules and opens it.
type HashFSStorage struct {
	fs *hashfs.HashFS
}

func NewHashFSStorage(fs *hashfs.HashFS) *HashFSStorage {
	return &HashFSStorage{fs: fs}
}

func (h *HashFSStorage) Name() string               { return "hashfs" }
func (h *HashFSStorage) CacheControl() CacheControl { return CacheLocal }

func (h *HashFSStorage) GetByHash(_ context.Context, hash mediahash.Hash) (io.ReadCloser, bool, error) {
	r, err := h.fs.Reader(hash)
	if err != nil {
		if lucerr.Of(err) == lucerr.KindNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return r, true, nil
}

// RemoteObjectStore is an opaque optional backend: its contract is just
// Ok(None) on "object absent", error otherwise. No concrete cloud SDK is
// wired in this package; RemoteFetcher lets a caller plug one in without
// this package depending on any specific SDK.
type RemoteObjectStore struct {
	name    string
	fetcher RemoteFetcher
}

// RemoteFetcher is implemented by whatever remote object-store client a
// deployment wires in.
type RemoteFetcher interface {
	Fetch(ctx context.Context, h mediahash.Hash) (io.ReadCloser, bool, error)
}

func NewRemoteObjectStore(name string, fetcher RemoteFetcher) *RemoteObjectStore {
	return &RemoteObjectStore{name: name, fetcher: fetcher}
}

func (r *RemoteObjectStore) Name() string               { return r.name }
func (r *RemoteObjectStore) CacheControl() CacheControl { return CacheRemote }

func (r *RemoteObjectStore) GetByHash(ctx context.Context, h mediahash.Hash) (io.ReadCloser, bool, error) {
	return r.fetcher.Fetch(ctx, h)
}
