package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	lucdb "github.com/scottschroeder/lucille-go/internal/db"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/repository"
)

func openTestStorage(t *testing.T) *repository.StorageRepository {
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
			return repository.NewStorageRepository(conn)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate migrations directory")
		}
		dir = parent
	}
}

type testCase struct {
	nameIsHash     bool
	dataMatchHash  bool
	fileExists     bool
	strategy       FileCheckStrategy
	expectedOutcom FileCheckOutcome
}

func runCheckLocalFileCase(t *testing.T, tc testCase) {
	t.Helper()
	storageRepo := openTestStorage(t)
	dir := t.TempDir()

	expectedHash, err := mediahash.Sum(strings.NewReader("data_expected"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}

	var fname string
	if tc.nameIsHash {
		fname = filepath.Join(dir, expectedHash.String())
	} else {
		fname = filepath.Join(dir, "test-name")
	}

	if tc.fileExists {
		data := "data_unexpected"
		if tc.dataMatchHash {
			data = "data_expected"
		}
		if err := os.WriteFile(fname, []byte(data), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	if _, err := storageRepo.Add(expectedHash, fname); err != nil {
		t.Fatalf("Add storage: %v", err)
	}

	v := New(storageRepo)
	result, err := v.CheckLocalFile(context.Background(), expectedHash, tc.strategy)
	if err != nil {
		t.Fatalf("CheckLocalFile: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a result, got nil")
	}
	if result.Outcome != tc.expectedOutcom {
		t.Fatalf("got outcome %v, want %v", result.Outcome, tc.expectedOutcom)
	}
}

func TestCheckLocalFileExists(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: true, fileExists: true,
		strategy: CheckExists, expectedOutcom: Exists,
	})
}

func TestCheckLocalFileTrustHash(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: true, fileExists: true,
		strategy: TrustNameIsHash, expectedOutcom: Verified,
	})
}

func TestCheckLocalFileVerify(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: true, fileExists: true,
		strategy: VerifyAll, expectedOutcom: Verified,
	})
}

func TestCheckLocalFileTrustHashInvalid(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: false, fileExists: true,
		strategy: TrustNameIsHash, expectedOutcom: Invalid,
	})
}

func TestCheckLocalFileVerifyInvalid(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: false, fileExists: true,
		strategy: VerifyAll, expectedOutcom: Invalid,
	})
}

func TestCheckLocalFileMissing(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: false, dataMatchHash: true, fileExists: false,
		strategy: VerifyAll, expectedOutcom: DoesNotExist,
	})
}

func TestCheckLocalFileHashNameCheckExists(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: true, dataMatchHash: true, fileExists: true,
		strategy: CheckExists, expectedOutcom: Exists,
	})
}

func TestCheckLocalFileHashNameTrust(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: true, dataMatchHash: true, fileExists: true,
		strategy: TrustNameIsHash, expectedOutcom: Exists,
	})
}

// TrustNameIsHash accepts the filename's claim without re-hashing, so a
// name collision with mismatched content is reported Exists, not Invalid.
func TestCheckLocalFileHashNameTrustButWrong(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: true, dataMatchHash: false, fileExists: true,
		strategy: TrustNameIsHash, expectedOutcom: Exists,
	})
}

func TestCheckLocalFileHashNameVerify(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: true, dataMatchHash: true, fileExists: true,
		strategy: VerifyAll, expectedOutcom: Verified,
	})
}

func TestCheckLocalFileHashNameVerifyButWrong(t *testing.T) {
	runCheckLocalFileCase(t, testCase{
		nameIsHash: true, dataMatchHash: false, fileExists: true,
		strategy: VerifyAll, expectedOutcom: Invalid,
	})
}

func TestCheckLocalFileUnknownHashReturnsNil(t *testing.T) {
	storageRepo := openTestStorage(t)
	v := New(storageRepo)
	h, err := mediahash.Sum(strings.NewReader("never stored"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	result, err := v.CheckLocalFile(context.Background(), h, VerifyAll)
	if err != nil {
		t.Fatalf("CheckLocalFile: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for hash with no storage row, got %+v", result)
	}
}
