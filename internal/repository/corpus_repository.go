package repository

import (
	"database/sql"
	"errors"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// CorpusRepository persists Corpus rows.
type CorpusRepository struct {
	db *sql.DB
}

func NewCorpusRepository(db *sql.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

func (r *CorpusRepository) Add(title string) (models.CorpusID, error) {
	res, err := r.db.Exec(`INSERT INTO corpus (title) VALUES (?)`, title)
	if err != nil {
		return 0, constraintOrIO("CorpusRepository.Add", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, lucerr.New("CorpusRepository.Add", lucerr.KindIO, err)
	}
	return models.CorpusID(id), nil
}

func (r *CorpusRepository) GetByName(title string) (*models.Corpus, error) {
	row := r.db.QueryRow(`SELECT id, title FROM corpus WHERE title = ?`, title)
	return scanCorpus(row)
}

func (r *CorpusRepository) GetByID(id models.CorpusID) (*models.Corpus, error) {
	row := r.db.QueryRow(`SELECT id, title FROM corpus WHERE id = ?`, id)
	return scanCorpus(row)
}

// GetOrAdd returns the existing corpus by title, or creates it.
func (r *CorpusRepository) GetOrAdd(title string) (*models.Corpus, error) {
	existing, err := r.GetByName(title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	id, err := r.Add(title)
	if err != nil {
		return nil, err
	}
	return &models.Corpus{ID: id, Title: title}, nil
}

func (r *CorpusRepository) List() ([]*models.Corpus, error) {
	rows, err := r.db.Query(`SELECT id, title FROM corpus ORDER BY id`)
	if err != nil {
		return nil, lucerr.New("CorpusRepository.List", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.Corpus
	for rows.Next() {
		c := &models.Corpus{}
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, lucerr.New("CorpusRepository.List", lucerr.KindIO, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCorpus(row *sql.Row) (*models.Corpus, error) {
	c := &models.Corpus{}
	if err := row.Scan(&c.ID, &c.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, lucerr.New("scanCorpus", lucerr.KindIO, err)
	}
	return c, nil
}
