// Package verify re-checks a storage row's recorded path against its
// recorded hash, with a choice of how much trust to extend the filesystem.
package verify

import (
	"context"
	"os"
	"path/filepath"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

// FileCheckStrategy describes how carefully to verify a local file.
type FileCheckStrategy int

const (
	// VerifyAll recomputes the hash of every file regardless of name.
	VerifyAll FileCheckStrategy = iota
	// TrustNameIsHash skips rehashing when the filename already matches the
	// expected hash.
	TrustNameIsHash
	// CheckExists only confirms presence; hashes are never recomputed.
	CheckExists
)

// FileCheckOutcome is the result of checking one storage row's file.
type FileCheckOutcome int

const (
	DoesNotExist FileCheckOutcome = iota
	Exists
	Verified
	Invalid
)

// AsBool reports whether the outcome represents usable data: Exists and
// Verified are usable, DoesNotExist and Invalid are not.
func (o FileCheckOutcome) AsBool() bool {
	switch o {
	case Exists, Verified:
		return true
	default:
		return false
	}
}

func (o FileCheckOutcome) String() string {
	switch o {
	case DoesNotExist:
		return "does_not_exist"
	case Exists:
		return "exists"
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Verifier checks storage rows against the filesystem.
type Verifier struct {
	storage *repository.StorageRepository
}

func New(storage *repository.StorageRepository) *Verifier {
	return &Verifier{storage: storage}
}

// Result pairs the path a storage row claims to live at with the outcome of
// checking it.
type Result struct {
	Path    string
	Outcome FileCheckOutcome
}

// CheckLocalFile looks up the storage row for hash and checks its file
// against strategy. Returns nil, nil if hash is not recorded in storage.
func (v *Verifier) CheckLocalFile(_ context.Context, hash mediahash.Hash, strategy FileCheckStrategy) (*Result, error) {
	row, err := v.storage.GetByHash(hash)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	if _, err := os.Stat(row.Path); err != nil {
		if os.IsNotExist(err) {
			return &Result{Path: row.Path, Outcome: DoesNotExist}, nil
		}
		return nil, lucerr.New("Verifier.CheckLocalFile", lucerr.KindIO, err)
	}

	switch strategy {
	case TrustNameIsHash:
		if filepath.Base(row.Path) == hash.String() {
			return &Result{Path: row.Path, Outcome: Exists}, nil
		}
	case CheckExists:
		return &Result{Path: row.Path, Outcome: Exists}, nil
	case VerifyAll:
	}

	f, err := os.Open(row.Path)
	if err != nil {
		return nil, lucerr.New("Verifier.CheckLocalFile", lucerr.KindIO, err)
	}
	defer f.Close()

	actual, err := mediahash.Sum(f)
	if err != nil {
		return nil, lucerr.New("Verifier.CheckLocalFile", lucerr.KindIO, err)
	}
	if actual == hash {
		return &Result{Path: row.Path, Outcome: Verified}, nil
	}
	return &Result{Path: row.Path, Outcome: Invalid}, nil
}
