package jobs

import (
	"context"
	"fmt"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/repository"
	"github.com/scottschroeder/lucille-go/internal/segmenter"
)

// prepareView splits the chapter's canonical source into segments under a
// new (or existing, empty) media view, registers each resulting segment's
// bytes in storage, and records the segment itself. A view that already has
// segments is left untouched and its existing count is returned, so
// re-running the same job is a no-op rather than a second copy of the
// segments.
func prepareView(
	ctx context.Context,
	seg *segmenter.Segmenter,
	chapters *repository.ChapterRepository,
	views *repository.MediaViewRepository,
	segments *repository.MediaSegmentRepository,
	storage *repository.StorageRepository,
	scratchDir string,
	chapterID models.ChapterID,
	viewName string,
) (models.MediaViewID, int, error) {
	chapter, err := chapters.GetByID(chapterID)
	if err != nil {
		return 0, 0, err
	}
	if chapter == nil {
		return 0, 0, lucerr.New("prepareView", lucerr.KindNotFound, fmt.Errorf("no chapter with id %d", chapterID))
	}

	row, err := storage.GetByHash(chapter.Hash)
	if err != nil {
		return 0, 0, err
	}
	if row == nil {
		return 0, 0, lucerr.New("prepareView", lucerr.KindNotFound, fmt.Errorf("no storage row for chapter %d's canonical hash", chapterID))
	}

	viewID, err := views.Lookup(chapterID, viewName)
	if err != nil {
		return 0, 0, err
	}
	if viewID == nil {
		id, err := views.Add(chapterID, viewName)
		if err != nil {
			return 0, 0, err
		}
		viewID = &models.MediaView{ID: id}
	} else {
		existing, err := segments.ListByView(viewID.ID)
		if err != nil {
			return 0, 0, err
		}
		if len(existing) > 0 {
			return viewID.ID, len(existing), nil
		}
	}

	processed, err := seg.Process(ctx, row.Path, scratchDir)
	if err != nil {
		return 0, 0, err
	}

	for _, ps := range processed {
		if _, err := storage.Add(ps.Hash, ps.Path); err != nil {
			return 0, 0, err
		}
		if _, err := segments.Add(viewID.ID, ps.Idx, ps.Hash, ps.Start, ps.Key); err != nil {
			return 0, 0, err
		}
	}
	return viewID.ID, len(processed), nil
}
