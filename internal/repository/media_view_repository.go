package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
)

type MediaViewRepository struct {
	db *sql.DB
}

func NewMediaViewRepository(db *sql.DB) *MediaViewRepository {
	return &MediaViewRepository{db: db}
}

func (r *MediaViewRepository) Add(chapter models.ChapterID, name string) (models.MediaViewID, error) {
	res, err := r.db.Exec(`INSERT INTO media_view (chapter_id, name) VALUES (?, ?)`, chapter, name)
	if err != nil {
		return 0, constraintOrIO("MediaViewRepository.Add", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, lucerr.New("MediaViewRepository.Add", lucerr.KindIO, err)
	}
	return models.MediaViewID(id), nil
}

func (r *MediaViewRepository) Get(id models.MediaViewID) (*models.MediaView, error) {
	row := r.db.QueryRow(`SELECT id, chapter_id, name, created_at FROM media_view WHERE id = ?`, id)
	return scanMediaView(row)
}

func (r *MediaViewRepository) Lookup(chapter models.ChapterID, name string) (*models.MediaView, error) {
	row := r.db.QueryRow(`SELECT id, chapter_id, name, created_at FROM media_view WHERE chapter_id = ? AND name = ?`, chapter, name)
	return scanMediaView(row)
}

// ListForChapter returns every view for a chapter, most-recently-created
// first (descending id), matching the original's "list_for_chapter (desc
// id)" operation.
func (r *MediaViewRepository) ListForChapter(chapter models.ChapterID) ([]*models.MediaView, error) {
	rows, err := r.db.Query(`SELECT id, chapter_id, name, created_at FROM media_view WHERE chapter_id = ? ORDER BY id DESC`, chapter)
	if err != nil {
		return nil, lucerr.New("MediaViewRepository.ListForChapter", lucerr.KindIO, err)
	}
	defer rows.Close()
	return scanMediaViews(rows)
}

// ListForSrtUUID returns the views belonging to the chapter that owns the
// given subtitle-file uuid.
func (r *MediaViewRepository) ListForSrtUUID(srtUUID string) ([]*models.MediaView, error) {
	rows, err := r.db.Query(`
		SELECT mv.id, mv.chapter_id, mv.name, mv.created_at
		FROM media_view mv
		JOIN subtitle_file sf ON sf.chapter_id = mv.chapter_id
		WHERE sf.uuid = ?
		ORDER BY mv.id DESC`, srtUUID)
	if err != nil {
		return nil, lucerr.New("MediaViewRepository.ListForSrtUUID", lucerr.KindIO, err)
	}
	defer rows.Close()
	return scanMediaViews(rows)
}

// ListForCorpus returns every view belonging to any chapter in the corpus.
func (r *MediaViewRepository) ListForCorpus(corpus models.CorpusID) ([]*models.MediaView, error) {
	rows, err := r.db.Query(`
		SELECT mv.id, mv.chapter_id, mv.name, mv.created_at
		FROM media_view mv
		JOIN chapter c ON c.id = mv.chapter_id
		WHERE c.corpus_id = ?
		ORDER BY mv.id DESC`, corpus)
	if err != nil {
		return nil, lucerr.New("MediaViewRepository.ListForCorpus", lucerr.KindIO, err)
	}
	defer rows.Close()
	return scanMediaViews(rows)
}

func scanMediaView(row *sql.Row) (*models.MediaView, error) {
	v := &models.MediaView{}
	var createdAt string
	if err := row.Scan(&v.ID, &v.ChapterID, &v.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, lucerr.New("scanMediaView", lucerr.KindIO, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		v.CreatedAt = t
	}
	return v, nil
}

func scanMediaViews(rows *sql.Rows) ([]*models.MediaView, error) {
	var out []*models.MediaView
	for rows.Next() {
		v := &models.MediaView{}
		var createdAt string
		if err := rows.Scan(&v.ID, &v.ChapterID, &v.Name, &createdAt); err != nil {
			return nil, lucerr.New("scanMediaViews", lucerr.KindIO, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			v.CreatedAt = t
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
