package ingest

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/scottschroeder/lucille-go/internal/models"
)

// seasonEpisodePattern matches the common "SxxEyy" release-name marker,
// e.g. "Show.Name.S03E12.Episode.Title.mkv".
var seasonEpisodePattern = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})`)

// extractMetadataFromPath derives chapter metadata from a media file's
// path, considering only its base name.
func extractMetadataFromPath(path string) models.ChapterMetadata {
	return extractMetadata(filepath.Base(path))
}

// extractMetadata derives chapter metadata from a release file name. A
// recognized "SxxEyy" marker yields Episode metadata with whatever comes
// after the marker (up to the extension) treated as the episode title;
// anything else falls back to Unknown with the bare file name as title.
func extractMetadata(fileName string) models.ChapterMetadata {
	loc := seasonEpisodePattern.FindStringSubmatchIndex(fileName)
	if loc == nil {
		return models.ChapterMetadata{Title: stripExt(fileName)}
	}

	season, err := strconv.Atoi(fileName[loc[2]:loc[3]])
	if err != nil {
		return models.ChapterMetadata{Title: stripExt(fileName)}
	}
	episode, err := strconv.Atoi(fileName[loc[4]:loc[5]])
	if err != nil {
		return models.ChapterMetadata{Title: stripExt(fileName)}
	}

	title := episodeTitle(fileName, loc[1])
	return models.ChapterMetadata{Season: &season, Episode: &episode, Title: title}
}

// episodeTitle extracts whatever lies between the SxxEyy marker and the file
// extension, treating '.' as a word separator the way release names do.
func episodeTitle(fileName string, afterMarker int) string {
	rest := strings.TrimSuffix(fileName[afterMarker:], filepath.Ext(fileName))
	rest = strings.Trim(rest, ".")
	rest = strings.ReplaceAll(rest, ".", " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return stripExt(fileName)
	}
	return rest
}

func stripExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
