package ffmpeg

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

const splitManifestName = "split_records.csv"

// SplitFile is one output segment file named in the transcoder's manifest,
// alongside the start time it was cut at.
type SplitFile struct {
	Path  string
	Start time.Duration
}

// Split invokes ffmpeg in segment mode against src, writing fixed-length
// segments into outDir and returning them in manifest order.
// http://underpop.online.fr/f/ffmpeg/help/segment_002c-stream_005fsegment_002c-ssegment.htm.gz
func Split(ctx context.Context, ffmpegPath, src string, segmentDuration time.Duration, outDir string) ([]SplitFile, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create split output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", src,
		"-y",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%.6f", segmentDuration.Seconds()),
		"-segment_list", splitManifestName,
		"out%06d.mkv",
	)
	cmd.Dir = outDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg segment split failed: %w: %s", err, out)
	}

	f, err := os.Open(filepath.Join(outDir, splitManifestName))
	if err != nil {
		return nil, fmt.Errorf("open split manifest: %w", err)
	}
	defer f.Close()

	records, err := parseSplitManifest(f)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Path = filepath.Join(outDir, records[i].Path)
	}
	return records, nil
}

// parseSplitManifest reads ffmpeg's segment_list CSV: name,start,end per
// row, no header.
func parseSplitManifest(r io.Reader) ([]SplitFile, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	var out []SplitFile
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse split manifest: %w", err)
		}
		startSecs, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse split manifest start time %q: %w", row[1], err)
		}
		out = append(out, SplitFile{
			Path:  row[0],
			Start: time.Duration(math.Round(startSecs * float64(time.Second))),
		})
	}
	return out, nil
}
