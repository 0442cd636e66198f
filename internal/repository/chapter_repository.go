package repository

import (
	"database/sql"
	"errors"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/models"
)

type ChapterRepository struct {
	db *sql.DB
}

func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

// Define upserts on hash: if a chapter with this hash exists, its
// title/season/episode are updated in place and its id returned; otherwise a
// new row is inserted. Re-defining never changes the id.
func (r *ChapterRepository) Define(corpus models.CorpusID, title string, season, episode *int, hash mediahash.Hash) (models.ChapterID, error) {
	existing, err := r.GetByHash(hash)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		_, err := r.db.Exec(
			`UPDATE chapter SET title = ?, season = ?, episode = ? WHERE id = ?`,
			title, season, episode, existing.ID,
		)
		if err != nil {
			return 0, constraintOrIO("ChapterRepository.Define", err)
		}
		return existing.ID, nil
	}

	res, err := r.db.Exec(
		`INSERT INTO chapter (corpus_id, title, season, episode, hash) VALUES (?, ?, ?, ?, ?)`,
		corpus, title, season, episode, hash.String(),
	)
	if err != nil {
		return 0, constraintOrIO("ChapterRepository.Define", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, lucerr.New("ChapterRepository.Define", lucerr.KindIO, err)
	}
	return models.ChapterID(id), nil
}

func (r *ChapterRepository) GetByHash(hash mediahash.Hash) (*models.Chapter, error) {
	row := r.db.QueryRow(
		`SELECT id, corpus_id, title, season, episode, hash FROM chapter WHERE hash = ?`,
		hash.String(),
	)
	return scanChapter(row)
}

func (r *ChapterRepository) GetByID(id models.ChapterID) (*models.Chapter, error) {
	row := r.db.QueryRow(
		`SELECT id, corpus_id, title, season, episode, hash FROM chapter WHERE id = ?`, id,
	)
	return scanChapter(row)
}

func (r *ChapterRepository) ListActiveForCorpus(corpus models.CorpusID) ([]*models.Chapter, error) {
	rows, err := r.db.Query(
		`SELECT id, corpus_id, title, season, episode, hash FROM chapter WHERE corpus_id = ? ORDER BY id`,
		corpus,
	)
	if err != nil {
		return nil, lucerr.New("ChapterRepository.ListActiveForCorpus", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.Chapter
	for rows.Next() {
		c, err := scanChapterRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChapter(row *sql.Row) (*models.Chapter, error) {
	c, err := scanChapterRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if lucerr.Of(err) != lucerr.KindUnknown {
			return nil, err
		}
		return nil, lucerr.New("scanChapter", lucerr.KindIO, err)
	}
	return c, nil
}

func scanChapterRow(row rowScanner) (*models.Chapter, error) {
	c := &models.Chapter{}
	var hashStr string
	if err := row.Scan(&c.ID, &c.CorpusID, &c.Title, &c.Season, &c.Episode, &hashStr); err != nil {
		return nil, err
	}
	h, err := mediahash.Parse(hashStr)
	if err != nil {
		return nil, lucerr.New("scanChapterRow", lucerr.KindDecode, err)
	}
	c.Hash = h
	return c, nil
}
