package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asticode/go-astisub"
	"golang.org/x/text/encoding/charmap"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// scannedSubtitles is the outcome of looking for a sibling .srt file: it may
// be absent, present but unparseable, or present and parsed into cues.
type scannedSubtitles struct {
	found  bool
	cues   []models.Cue
	parseErr error
}

// scannedMedia is one media file after its filesystem-bound work (hashing,
// subtitle extraction, filename metadata) has completed.
type scannedMedia struct {
	path     string
	hash     mediahash.Hash
	subs     scannedSubtitles
	metadata models.ChapterMetadata
}

// readMediaFromPath hashes media at path and looks for a sibling subtitle
// file, mirroring the two filesystem-bound steps of a scan.
func readMediaFromPath(path string) (scannedMedia, error) {
	hash, err := hashFile(path)
	if err != nil {
		return scannedMedia{}, err
	}
	subs, err := extractSubtitles(path)
	if err != nil {
		return scannedMedia{}, err
	}
	return scannedMedia{
		path:     path,
		hash:     hash,
		subs:     subs,
		metadata: extractMetadataFromPath(path),
	}, nil
}

func hashFile(path string) (mediahash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return mediahash.Hash{}, lucerr.New("ingest.hashFile", lucerr.KindIO, err)
	}
	defer f.Close()

	hash, err := mediahash.Sum(f)
	if err != nil {
		return mediahash.Hash{}, lucerr.New("ingest.hashFile", lucerr.KindIO, err)
	}
	return hash, nil
}

// extractSubtitles looks for a sibling .srt file next to a media path and
// parses it. A missing file is not an error; a file that exists but fails
// to parse is recorded as a parse error so the media is still ingested.
func extractSubtitles(mediaPath string) (scannedSubtitles, error) {
	srtPath := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".srt"
	if _, err := os.Stat(srtPath); err != nil {
		if os.IsNotExist(err) {
			return scannedSubtitles{found: false}, nil
		}
		return scannedSubtitles{}, lucerr.New("ingest.extractSubtitles", lucerr.KindIO, err)
	}

	text, err := readSubtitleText(srtPath)
	if err != nil {
		return scannedSubtitles{}, err
	}

	subs, err := astisub.ReadFromSRT(strings.NewReader(text))
	if err != nil {
		return scannedSubtitles{found: true, parseErr: err}, nil
	}

	cues := make([]models.Cue, 0, len(subs.Items))
	for i, item := range subs.Items {
		cues = append(cues, models.Cue{
			Index: i,
			Start: item.StartAt,
			End:   item.EndAt,
			Text:  itemText(item),
		})
	}
	return scannedSubtitles{found: true, cues: cues}, nil
}

func itemText(item *astisub.Item) string {
	var lines []string
	for _, l := range item.Lines {
		var words []string
		for _, li := range l.Items {
			words = append(words, li.Text)
		}
		lines = append(lines, strings.Join(words, " "))
	}
	return strings.Join(lines, "\n")
}

// readSubtitleText reads an srt file, trying UTF-8 first. Subtitle files
// have no required encoding in practice; a file that is not valid UTF-8 is
// decoded as Windows-1252, the common fallback for older releases.
func readSubtitleText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", lucerr.New("ingest.readSubtitleText", lucerr.KindIO, err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", lucerr.New("ingest.readSubtitleText", lucerr.KindIO, err)
	}
	return string(decoded), nil
}
