// Package segselect implements the segment-range selector and the
// sequential reader chain used to assemble a contiguous byte stream out of
// an ordered slice of media segments.
package segselect

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/segcrypt"
)

// Segment is the minimal view of a media_segment row the selector needs.
type Segment struct {
	SeqID int
	Hash  mediahash.Hash
	Start time.Duration
	Key   *segcrypt.KeyData
}

// Indicies returns (sidx, eidx) such that segments[sidx:eidx] is the
// contiguous slice whose playback interval overlaps [start, end]. sidx is
// the largest index whose Start is strictly less than start, tracked while
// scanning; eidx is the first index beyond sidx whose Start exceeds end, or
// len(segments) if none does.
func Indicies(segments []Segment, start, end time.Duration) (int, int) {
	sidx := 0
	for idx, s := range segments {
		if s.Start < start {
			sidx = idx
		} else if s.Start > end {
			return sidx, idx
		}
	}
	return sidx, len(segments)
}

// Cut returns the contiguous sub-slice of segments overlapping [start, end].
func Cut(segments []Segment, start, end time.Duration) []Segment {
	sidx, eidx := Indicies(segments, start, end)
	return segments[sidx:eidx]
}

// Opener opens a readable stream for a segment's content hash, e.g. the
// storage backend cascade (C8).
type Opener interface {
	Open(ctx context.Context, h mediahash.Hash) (io.ReadCloser, error)
}

// Select cuts segments to [start, end], and returns the origin offset
// (segments[sidx].Start) together with a reader chaining each selected
// segment's bytes in order, decrypting any segment that carries a key.
// The chain does not open segment i+1 until segment i signals EOF.
func Select(ctx context.Context, opener Opener, segments []Segment, start, end time.Duration) (time.Duration, io.ReadCloser, error) {
	cut := Cut(segments, start, end)
	var origin time.Duration
	if len(cut) > 0 {
		origin = cut[0].Start
	}
	return origin, newChain(ctx, opener, cut), nil
}

// chain lazily opens each segment in turn, exposing a single io.ReadCloser
// that reads segment 0 to EOF, then segment 1, and so on.
type chain struct {
	ctx      context.Context
	opener   Opener
	segments []Segment
	idx      int
	current  io.ReadCloser
}

func newChain(ctx context.Context, opener Opener, segments []Segment) *chain {
	return &chain{ctx: ctx, opener: opener, segments: segments}
}

func (c *chain) Read(p []byte) (int, error) {
	for {
		if c.current == nil {
			if c.idx >= len(c.segments) {
				return 0, io.EOF
			}
			seg := c.segments[c.idx]
			c.idx++
			r, err := c.opener.Open(c.ctx, seg.Hash)
			if err != nil {
				return 0, err
			}
			if seg.Key != nil {
				r, err = decryptingReader(r, *seg.Key)
				if err != nil {
					return 0, err
				}
			}
			c.current = r
		}

		n, err := c.current.Read(p)
		if err == io.EOF {
			c.current.Close()
			c.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *chain) Close() error {
	if c.current != nil {
		return c.current.Close()
	}
	return nil
}

// decryptingReader buffers ciphertext (segments are small media chunks, not
// streamed-decryption-friendly given AES-GCM's whole-message authentication
// tag) and serves the decrypted plaintext through a bytes reader.
func decryptingReader(r io.ReadCloser, key segcrypt.KeyData) (io.ReadCloser, error) {
	defer r.Close()
	ciphertext, err := io.ReadAll(r)
	if err != nil {
		return nil, lucerr.New("segselect.decryptingReader", lucerr.KindIO, err)
	}
	plaintext, err := segcrypt.Unscramble(ciphertext, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(plaintext)), nil
}
