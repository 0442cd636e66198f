package repository

import (
	"database/sql"
	"errors"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// StorageRepository persists Storage rows: a claim that the bytes hashing to
// Hash can be read from Path. Multiple rows per hash are allowed; paths are
// globally unique.
type StorageRepository struct {
	db *sql.DB
}

func NewStorageRepository(db *sql.DB) *StorageRepository {
	return &StorageRepository{db: db}
}

func (r *StorageRepository) Add(hash mediahash.Hash, path string) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO storage (hash, path) VALUES (?, ?)`, hash.String(), path)
	if err != nil {
		return 0, constraintOrIO("StorageRepository.Add", err)
	}
	return res.LastInsertId()
}

func (r *StorageRepository) GetByHash(hash mediahash.Hash) (*models.Storage, error) {
	row := r.db.QueryRow(`SELECT id, hash, path FROM storage WHERE hash = ? LIMIT 1`, hash.String())
	return scanStorage(row)
}

func (r *StorageRepository) GetByPath(path string) (*models.Storage, error) {
	row := r.db.QueryRow(`SELECT id, hash, path FROM storage WHERE path = ?`, path)
	return scanStorage(row)
}

// ListOrphans returns storage rows whose hash appears in neither chapter
// (as a chapter's canonical hash) nor media_segment.
func (r *StorageRepository) ListOrphans() ([]*models.Storage, error) {
	rows, err := r.db.Query(`
		SELECT id, hash, path FROM storage s
		WHERE NOT EXISTS (SELECT 1 FROM chapter c WHERE c.hash = s.hash)
		  AND NOT EXISTS (SELECT 1 FROM media_segment ms WHERE ms.hash = s.hash)
		ORDER BY s.id`)
	if err != nil {
		return nil, lucerr.New("StorageRepository.ListOrphans", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.Storage
	for rows.Next() {
		s, err := scanStorageRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *StorageRepository) Delete(id int64) error {
	_, err := r.db.Exec(`DELETE FROM storage WHERE id = ?`, id)
	if err != nil {
		return lucerr.New("StorageRepository.Delete", lucerr.KindIO, err)
	}
	return nil
}

func scanStorage(row *sql.Row) (*models.Storage, error) {
	s, err := scanStorageRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanStorageRow(row rowScanner) (*models.Storage, error) {
	s := &models.Storage{}
	var hashStr string
	if err := row.Scan(&s.ID, &hashStr, &s.Path); err != nil {
		return nil, err
	}
	h, err := mediahash.Parse(hashStr)
	if err != nil {
		return nil, lucerr.New("scanStorageRow", lucerr.KindDecode, err)
	}
	s.Hash = h
	return s, nil
}
