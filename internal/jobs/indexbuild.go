package jobs

import (
	"path/filepath"

	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/search"
)

// buildCorpusIndex builds a fresh windowed search index covering the latest
// subtitle version of every chapter in a corpus, then records the
// association so the index can be looked up by the subtitle versions it
// covers. indexRoot is the parent directory under which each index gets
// its own UUID-named subdirectory.
func buildCorpusIndex(
	corpusID models.CorpusID,
	indexRoot string,
	maxWindow int,
	chapters *repository.ChapterRepository,
	subs *repository.SubtitleRepository,
	indexes *repository.SearchIndexRepository,
) (uuid.UUID, int, error) {
	files, err := subs.GetAllForCorpus(corpusID)
	if err != nil {
		return uuid.Nil, 0, err
	}

	titles := make(map[models.ChapterID]string, len(files))
	indexable := make([]search.IndexableSubtitle, 0, len(files))
	srtIDs := make([]models.SubtitleFileID, 0, len(files))
	for _, f := range files {
		title, ok := titles[f.ChapterID]
		if !ok {
			chapter, err := chapters.GetByID(f.ChapterID)
			if err != nil {
				return uuid.Nil, 0, err
			}
			if chapter != nil {
				title = chapter.Title
			}
			titles[f.ChapterID] = title
		}
		indexable = append(indexable, search.IndexableSubtitle{
			Title: title,
			SrtID: int64(f.ID),
			Cues:  f.Cues,
		})
		srtIDs = append(srtIDs, f.ID)
	}

	indexUUID := uuid.New()
	idx, err := search.Build(indexUUID, filepath.Join(indexRoot, indexUUID.String()), indexable, maxWindow)
	if err != nil {
		return uuid.Nil, 0, err
	}
	defer idx.Close()

	if _, err := indexes.AssocWithSrts(indexUUID, srtIDs); err != nil {
		return uuid.Nil, 0, err
	}
	return indexUUID, len(indexable), nil
}
