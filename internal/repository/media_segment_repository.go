package repository

import (
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/mediahash"
	"github.com/scottschroeder/lucille-go/internal/models"
	"github.com/scottschroeder/lucille-go/internal/segcrypt"
)

// MediaSegmentRepository persists MediaSegment rows: one contiguous time
// slice within a media view, content-addressed by its own hash.
type MediaSegmentRepository struct {
	db *sql.DB
}

func NewMediaSegmentRepository(db *sql.DB) *MediaSegmentRepository {
	return &MediaSegmentRepository{db: db}
}

// Add inserts a segment, violating UNIQUE(media_view_id, seq_id) on
// conflict. seqID is an int (the segmenter's natural index type) but the
// stored value is limited to the uint16 range (models.MediaSegment.SeqID
// and the column's CHECK); a seqID outside that range is rejected explicitly
// rather than silently truncated.
func (r *MediaSegmentRepository) Add(view models.MediaViewID, seqID int, hash mediahash.Hash, start time.Duration, key *segcrypt.KeyData) (models.MediaSegmentID, error) {
	if seqID < 0 || seqID > math.MaxUint16 {
		return 0, lucerr.New("MediaSegmentRepository.Add", lucerr.KindConstraintViolation, errors.New("seq_id exceeds uint16 range"))
	}
	var keyStr *string
	if key != nil {
		s := key.String()
		keyStr = &s
	}
	res, err := r.db.Exec(
		`INSERT INTO media_segment (media_view_id, seq_id, hash, start_secs, encryption_key) VALUES (?, ?, ?, ?, ?)`,
		view, uint16(seqID), hash.String(), start.Seconds(), keyStr,
	)
	if err != nil {
		return 0, constraintOrIO("MediaSegmentRepository.Add", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, lucerr.New("MediaSegmentRepository.Add", lucerr.KindIO, err)
	}
	return models.MediaSegmentID(id), nil
}

func (r *MediaSegmentRepository) GetByHash(hash mediahash.Hash) (*models.MediaSegment, error) {
	row := r.db.QueryRow(
		`SELECT id, media_view_id, seq_id, hash, start_secs, encryption_key FROM media_segment WHERE hash = ?`,
		hash.String(),
	)
	return scanMediaSegment(row)
}

// ListByView returns every segment for a view ordered by seq_id, asserting
// that the ordering agrees with dense 0..N seq_id assignment (invariant
// iii).
func (r *MediaSegmentRepository) ListByView(view models.MediaViewID) ([]*models.MediaSegment, error) {
	rows, err := r.db.Query(
		`SELECT id, media_view_id, seq_id, hash, start_secs, encryption_key FROM media_segment WHERE media_view_id = ? ORDER BY seq_id`,
		view,
	)
	if err != nil {
		return nil, lucerr.New("MediaSegmentRepository.ListByView", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.MediaSegment
	for idx := 0; rows.Next(); idx++ {
		seg, err := scanMediaSegmentRow(rows)
		if err != nil {
			return nil, err
		}
		if int(seg.SeqID) != idx {
			return nil, lucerr.New("MediaSegmentRepository.ListByView", lucerr.KindConstraintViolation,
				errors.New("seq_id sequence is not a dense 0..N prefix"))
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// ListByViewNameAcrossCorpus returns segments for the view named name across
// every chapter in corpus, as one flat slice.
func (r *MediaSegmentRepository) ListByViewNameAcrossCorpus(corpus models.CorpusID, name string) ([]*models.MediaSegment, error) {
	rows, err := r.db.Query(`
		SELECT ms.id, ms.media_view_id, ms.seq_id, ms.hash, ms.start_secs, ms.encryption_key
		FROM media_segment ms
		JOIN media_view mv ON mv.id = ms.media_view_id
		JOIN chapter c ON c.id = mv.chapter_id
		WHERE c.corpus_id = ? AND mv.name = ?
		ORDER BY mv.id, ms.seq_id`, corpus, name)
	if err != nil {
		return nil, lucerr.New("MediaSegmentRepository.ListByViewNameAcrossCorpus", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.MediaSegment
	for rows.Next() {
		seg, err := scanMediaSegmentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func scanMediaSegment(row *sql.Row) (*models.MediaSegment, error) {
	seg, err := scanMediaSegmentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return seg, nil
}

func scanMediaSegmentRow(row rowScanner) (*models.MediaSegment, error) {
	seg := &models.MediaSegment{}
	var hashStr string
	var startSecs float64
	var keyStr *string
	if err := row.Scan(&seg.ID, &seg.MediaViewID, &seg.SeqID, &hashStr, &startSecs, &keyStr); err != nil {
		return nil, err
	}
	h, err := mediahash.Parse(hashStr)
	if err != nil {
		return nil, lucerr.New("scanMediaSegmentRow", lucerr.KindDecode, err)
	}
	seg.Hash = h
	seg.Start = time.Duration(startSecs * float64(time.Second))
	if keyStr != nil {
		key, err := segcrypt.ParseKeyData(*keyStr)
		if err != nil {
			return nil, lucerr.New("scanMediaSegmentRow", lucerr.KindDecode, err)
		}
		seg.Key = &key
	}
	return seg, nil
}
