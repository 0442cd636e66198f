package segselect

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/scottschroeder/lucille-go/internal/mediahash"
)

func prepareSegments(t *testing.T) []Segment {
	t.Helper()
	segs := make([]Segment, 6)
	for idx := 0; idx < 6; idx++ {
		h, err := mediahash.Sum(bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("sum: %v", err)
		}
		segs[idx] = Segment{
			SeqID: idx,
			Hash:  h,
			Start: time.Duration(idx) * 10 * time.Second,
		}
	}
	return segs
}

// 0         10        20        30        40        50
// |---------|---------|---------|---------|---------|---------
// |    0    |    1    |    2    |    3    |    4    |    5

func runCut(t *testing.T, start, end int, wantSidx, wantLen int) {
	t.Helper()
	segs := prepareSegments(t)
	sidx, eidx := Indicies(segs, time.Duration(start)*time.Second, time.Duration(end)*time.Second)
	if sidx != wantSidx || eidx != wantSidx+wantLen {
		t.Fatalf("Indicies(%d,%d) = (%d,%d), want (%d,%d)", start, end, sidx, eidx, wantSidx, wantSidx+wantLen)
	}
}

func TestIndiciesFirstLowerBorder(t *testing.T) { runCut(t, 0, 2, 0, 1) }
func TestIndiciesFirstOnBoundary(t *testing.T)  { runCut(t, 0, 10, 0, 2) }
func TestIndiciesFirstNextSegment(t *testing.T) { runCut(t, 0, 11, 0, 2) }
func TestIndiciesFirstInside(t *testing.T)      { runCut(t, 1, 2, 0, 1) }
func TestIndiciesFirstUpperBorder(t *testing.T) { runCut(t, 1, 10, 0, 2) }
func TestIndiciesFirstCrossSecond(t *testing.T) { runCut(t, 1, 11, 0, 2) }
func TestIndiciesInsideMiddle(t *testing.T)     { runCut(t, 24, 25, 2, 1) }
func TestIndiciesCrossTwo(t *testing.T)         { runCut(t, 24, 35, 2, 2) }
func TestIndiciesCrossThree(t *testing.T)       { runCut(t, 24, 45, 2, 3) }
func TestIndiciesEndAfterEnd(t *testing.T)      { runCut(t, 44, 70, 4, 2) }
func TestIndiciesEntirelyLastSegment(t *testing.T) { runCut(t, 55, 70, 5, 1) }

type fakeOpener struct {
	data map[mediahash.Hash][]byte
}

func (f *fakeOpener) Open(_ context.Context, h mediahash.Hash) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data[h])), nil
}

func TestSelectChainsSegmentsInOrder(t *testing.T) {
	h0, _ := mediahash.Sum(bytes.NewReader([]byte("seg0")))
	h1, _ := mediahash.Sum(bytes.NewReader([]byte("seg1")))

	segs := []Segment{
		{SeqID: 0, Hash: h0, Start: 0},
		{SeqID: 1, Hash: h1, Start: 10 * time.Second},
	}
	opener := &fakeOpener{data: map[mediahash.Hash][]byte{
		h0: []byte("seg0"),
		h1: []byte("seg1"),
	}}

	origin, chain, err := Select(context.Background(), opener, segs, 0, 15*time.Second)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	defer chain.Close()
	if origin != 0 {
		t.Fatalf("origin = %v, want 0", origin)
	}
	got, err := io.ReadAll(chain)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "seg0seg1" {
		t.Fatalf("chain output = %q, want %q", got, "seg0seg1")
	}
}
