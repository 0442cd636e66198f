package repository

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// SearchIndexRepository associates an on-disk search index (named by a
// fresh uuid) with the subtitle-file versions it covers.
type SearchIndexRepository struct {
	db *sql.DB
}

func NewSearchIndexRepository(db *sql.DB) *SearchIndexRepository {
	return &SearchIndexRepository{db: db}
}

// AssocWithSrts records a new search index and its covered srt_ids in one
// transaction. srt_ids referencing no subtitle_file row are rejected
// (invariant vii).
func (r *SearchIndexRepository) AssocWithSrts(indexUUID uuid.UUID, srtIDs []models.SubtitleFileID) (models.SearchIndexID, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, lucerr.New("SearchIndexRepository.AssocWithSrts", lucerr.KindIO, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO search_index (uuid) VALUES (?)`, indexUUID.String())
	if err != nil {
		return 0, constraintOrIO("SearchIndexRepository.AssocWithSrts", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, lucerr.New("SearchIndexRepository.AssocWithSrts", lucerr.KindIO, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO search_assoc (search_index_id, srt_id) VALUES (?, ?)`)
	if err != nil {
		return 0, lucerr.New("SearchIndexRepository.AssocWithSrts", lucerr.KindIO, err)
	}
	defer stmt.Close()

	for _, srtID := range srtIDs {
		if _, err := stmt.Exec(id, srtID); err != nil {
			return 0, constraintOrIO("SearchIndexRepository.AssocWithSrts", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, lucerr.New("SearchIndexRepository.AssocWithSrts", lucerr.KindIO, err)
	}
	return models.SearchIndexID(id), nil
}

// ListIndexes returns every recorded index, ascending by id.
func (r *SearchIndexRepository) ListIndexes() ([]*models.SearchIndex, error) {
	rows, err := r.db.Query(`SELECT id, uuid FROM search_index ORDER BY id ASC`)
	if err != nil {
		return nil, lucerr.New("SearchIndexRepository.ListIndexes", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.SearchIndex
	for rows.Next() {
		si := &models.SearchIndex{}
		var uuidStr string
		if err := rows.Scan(&si.ID, &uuidStr); err != nil {
			return nil, lucerr.New("SearchIndexRepository.ListIndexes", lucerr.KindIO, err)
		}
		u, err := uuid.Parse(uuidStr)
		if err != nil {
			return nil, lucerr.New("SearchIndexRepository.ListIndexes", lucerr.KindDecode, err)
		}
		si.UUID = u
		out = append(out, si)
	}
	return out, rows.Err()
}
