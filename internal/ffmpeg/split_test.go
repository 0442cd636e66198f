package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestParseSplitManifest(t *testing.T) {
	csvData := "out000000.mkv,0.000000,32.908000\n" +
		"out000001.mkv,32.907000,60.727000\n" +
		"out000002.mkv,60.727000,90.924000\n"

	records, err := parseSplitManifest(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseSplitManifest: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Path != "out000000.mkv" || records[0].Start != 0 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Path != "out000001.mkv" {
		t.Fatalf("unexpected second record path: %+v", records[1])
	}
	wantStart := 32907 * time.Millisecond
	if records[1].Start != wantStart {
		t.Fatalf("unexpected second record start: got %v want %v", records[1].Start, wantStart)
	}
}

func TestParseSplitManifestEmpty(t *testing.T) {
	records, err := parseSplitManifest(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseSplitManifest: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
