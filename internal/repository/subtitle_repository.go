package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// SubtitleRepository persists SubtitleFile rows: append-only per chapter,
// adding identical cues returns the latest existing row.
//
// Subtitle version insertion must be linearizable per chapter: the
// "identical to latest" check and the insert must not interleave with a
// concurrent insert for the same chapter. sqlite
// already serializes all writers (db.Connect caps the pool at one
// connection), but the check-then-insert pair still needs to be atomic
// against other goroutines racing on the same *sql.DB, so it is additionally
// guarded by a per-chapter mutex.
type SubtitleRepository struct {
	db *sql.DB

	mu      sync.Mutex
	locks   map[models.ChapterID]*sync.Mutex
}

func NewSubtitleRepository(db *sql.DB) *SubtitleRepository {
	return &SubtitleRepository{db: db, locks: make(map[models.ChapterID]*sync.Mutex)}
}

func (r *SubtitleRepository) chapterLock(chapter models.ChapterID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[chapter]
	if !ok {
		l = &sync.Mutex{}
		r.locks[chapter] = l
	}
	return l
}

type cueWire struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func marshalCues(cues []models.Cue) (string, error) {
	wire := make([]cueWire, len(cues))
	for i, c := range cues {
		wire[i] = cueWire{Index: c.Index, Start: c.Start.Seconds(), End: c.End.Seconds(), Text: c.Text}
	}
	b, err := json.Marshal(wire)
	return string(b), err
}

func unmarshalCues(data string) ([]models.Cue, error) {
	var wire []cueWire
	if err := json.Unmarshal([]byte(data), &wire); err != nil {
		return nil, err
	}
	cues := make([]models.Cue, len(wire))
	for i, w := range wire {
		cues[i] = models.Cue{
			Index: w.Index,
			Start: time.Duration(w.Start * float64(time.Second)),
			End:   time.Duration(w.End * float64(time.Second)),
			Text:  w.Text,
		}
	}
	return cues, nil
}

// Add returns the latest existing row's uuid if its cues are identical to
// the given cues; otherwise inserts a new row with a fresh uuid.
func (r *SubtitleRepository) Add(chapter models.ChapterID, cues []models.Cue) (uuid.UUID, error) {
	lock := r.chapterLock(chapter)
	lock.Lock()
	defer lock.Unlock()

	data, err := marshalCues(cues)
	if err != nil {
		return uuid.Nil, lucerr.New("SubtitleRepository.Add", lucerr.KindDecode, err)
	}

	latest, err := r.lookupLatestForChapterLocked(chapter)
	if err != nil {
		return uuid.Nil, err
	}
	if latest != nil {
		latestData, err := marshalCues(latest.Cues)
		if err != nil {
			return uuid.Nil, lucerr.New("SubtitleRepository.Add", lucerr.KindDecode, err)
		}
		if latestData == data {
			return latest.UUID, nil
		}
	}

	id := uuid.New()
	_, err = r.db.Exec(`INSERT INTO subtitle_file (chapter_id, uuid, data) VALUES (?, ?, ?)`, chapter, id.String(), data)
	if err != nil {
		return uuid.Nil, constraintOrIO("SubtitleRepository.Add", err)
	}
	return id, nil
}

func (r *SubtitleRepository) LookupLatestForChapter(chapter models.ChapterID) (*models.SubtitleFile, error) {
	lock := r.chapterLock(chapter)
	lock.Lock()
	defer lock.Unlock()
	return r.lookupLatestForChapterLocked(chapter)
}

func (r *SubtitleRepository) lookupLatestForChapterLocked(chapter models.ChapterID) (*models.SubtitleFile, error) {
	row := r.db.QueryRow(
		`SELECT id, chapter_id, uuid, data FROM subtitle_file WHERE chapter_id = ? ORDER BY id DESC LIMIT 1`,
		chapter,
	)
	return scanSubtitleFile(row)
}

func (r *SubtitleRepository) GetBySrtID(id models.SubtitleFileID) (*models.SubtitleFile, error) {
	row := r.db.QueryRow(`SELECT id, chapter_id, uuid, data FROM subtitle_file WHERE id = ?`, id)
	return scanSubtitleFile(row)
}

func (r *SubtitleRepository) GetByUUID(id uuid.UUID) (*models.SubtitleFile, error) {
	row := r.db.QueryRow(`SELECT id, chapter_id, uuid, data FROM subtitle_file WHERE uuid = ?`, id.String())
	return scanSubtitleFile(row)
}

// GetAllForCorpus returns the latest subtitle-file row per chapter in corpus.
func (r *SubtitleRepository) GetAllForCorpus(corpus models.CorpusID) ([]*models.SubtitleFile, error) {
	rows, err := r.db.Query(`
		SELECT sf.id, sf.chapter_id, sf.uuid, sf.data
		FROM subtitle_file sf
		JOIN chapter c ON c.id = sf.chapter_id
		WHERE c.corpus_id = ?
		  AND sf.id = (SELECT MAX(id) FROM subtitle_file WHERE chapter_id = sf.chapter_id)
		ORDER BY sf.chapter_id`, corpus)
	if err != nil {
		return nil, lucerr.New("SubtitleRepository.GetAllForCorpus", lucerr.KindIO, err)
	}
	defer rows.Close()

	var out []*models.SubtitleFile
	for rows.Next() {
		sf, err := scanSubtitleFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

func scanSubtitleFile(row *sql.Row) (*models.SubtitleFile, error) {
	sf, err := scanSubtitleFileRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sf, nil
}

func scanSubtitleFileRow(row rowScanner) (*models.SubtitleFile, error) {
	sf := &models.SubtitleFile{}
	var uuidStr, data string
	if err := row.Scan(&sf.ID, &sf.ChapterID, &uuidStr, &data); err != nil {
		return nil, err
	}
	u, err := uuid.Parse(uuidStr)
	if err != nil {
		return nil, lucerr.New("scanSubtitleFileRow", lucerr.KindDecode, err)
	}
	sf.UUID = u
	cues, err := unmarshalCues(data)
	if err != nil {
		return nil, lucerr.New("scanSubtitleFileRow", lucerr.KindDecode, err)
	}
	sf.Cues = cues
	return sf, nil
}
