// Package search builds a windowed full-text index over a corpus's subtitle
// cues: every contiguous run of cues up to a maximum window length becomes
// one searchable document, so a query can match a line or a whole scene.
package search

import (
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
	"github.com/scottschroeder/lucille-go/internal/models"
)

// MinScore is the minimum per-cue accumulated score for a cue to count as
// part of a matching clip when ranking.
const MinScore = 0.5

// IndexableSubtitle is one subtitle file's worth of content, ready to be
// sliced into overlapping windows and indexed.
type IndexableSubtitle struct {
	Title string
	SrtID int64
	Cues  []models.Cue
}

// flatten joins every cue's text into one whitespace-separated script and
// records, for each cue boundary, the byte offset into that script:
// index[i] is where cue i begins, index[len(cues)] is len(script).
func (e IndexableSubtitle) flatten() (script string, index []int) {
	index = make([]int, 0, len(e.Cues)+1)
	index = append(index, 0)
	var b []byte
	for _, cue := range e.Cues {
		b = append(b, ' ')
		b = append(b, cue.Text...)
		index = append(index, len(b))
	}
	return string(b), index
}

// clipWindow is one sliding window of cues: [start,end) in cue-index space.
type clipWindow struct {
	start, end int
	text       string
}

// generateMultiWindow yields every (start,end) pair of cue indices for
// window lengths 1..maxWindow, sliding across size cues.
func generateMultiWindow(size, maxWindow int) [][2]int {
	var out [][2]int
	for window := 0; window < maxWindow; window++ {
		for s := 0; s+window < size; s++ {
			out = append(out, [2]int{s, s + window + 1})
		}
	}
	return out
}

func (e IndexableSubtitle) slices(maxWindow int) []clipWindow {
	script, index := e.flatten()
	pairs := generateMultiWindow(len(e.Cues), maxWindow)
	out := make([]clipWindow, 0, len(pairs))
	for _, p := range pairs {
		start, end := p[0], p[1]
		startByte := index[start]
		endByte := len(script)
		if end < len(index) {
			endByte = index[end]
		}
		out = append(out, clipWindow{start: start, end: end, text: script[startByte:endByte]})
	}
	return out
}

type clipDoc struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	SrtID     int64  `json:"srt_id"`
	ClipStart int    `json:"clip_start"`
	ClipEnd   int    `json:"clip_end"`
}

func buildMapping() *bleve.IndexMapping {
	bodyMapping := bleve.NewTextFieldMapping()
	bodyMapping.Analyzer = "en"

	numericMapping := bleve.NewNumericFieldMapping()
	numericMapping.Index = false
	numericMapping.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("body", bodyMapping)
	docMapping.AddFieldMappingsAt("srt_id", numericMapping)
	docMapping.AddFieldMappingsAt("clip_start", numericMapping)
	docMapping.AddFieldMappingsAt("clip_end", numericMapping)

	mapping := bleve.NewIndexMapping()
	mapping.DefaultMapping = docMapping
	return mapping
}

// Index is a built full-text index over a set of subtitles, named by the
// uuid under which it was registered in the metadata store.
type Index struct {
	bleveIdx bleve.Index
	UUID     uuid.UUID
}

// Build creates a new index on disk at dir from the given subtitles,
// windowing each subtitle's cues up to maxWindow cues per document.
func Build(indexUUID uuid.UUID, dir string, subs []IndexableSubtitle, maxWindow int) (*Index, error) {
	bleveIdx, err := bleve.New(dir, buildMapping())
	if err != nil {
		return nil, lucerr.New("search.Build", lucerr.KindIO, err)
	}

	batch := bleveIdx.NewBatch()
	docID := 0
	for _, sub := range subs {
		for _, clip := range sub.slices(maxWindow) {
			doc := clipDoc{
				Title:     sub.Title,
				Body:      clip.text,
				SrtID:     sub.SrtID,
				ClipStart: clip.start,
				ClipEnd:   clip.end,
			}
			if err := batch.Index(docIDString(docID), doc); err != nil {
				return nil, lucerr.New("search.Build", lucerr.KindIO, err)
			}
			docID++
		}
	}
	if err := bleveIdx.Batch(batch); err != nil {
		return nil, lucerr.New("search.Build", lucerr.KindIO, err)
	}

	return &Index{bleveIdx: bleveIdx, UUID: indexUUID}, nil
}

// Open reopens a previously built index from disk.
func Open(indexUUID uuid.UUID, dir string) (*Index, error) {
	bleveIdx, err := bleve.Open(dir)
	if err != nil {
		return nil, lucerr.New("search.Open", lucerr.KindIO, err)
	}
	return &Index{bleveIdx: bleveIdx, UUID: indexUUID}, nil
}

func (idx *Index) Close() error {
	return idx.bleveIdx.Close()
}

func docIDString(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}

// EpisodeScore accumulates, per cue position, the summed score of every
// matching window that covers that position.
type EpisodeScore struct {
	SrtID  int64
	Scores []float64
}

func (es *EpisodeScore) add(start, end int, score float64) {
	if len(es.Scores) <= end {
		extend := make([]float64, end+1-len(es.Scores))
		es.Scores = append(es.Scores, extend...)
	}
	for i := start; i < end; i++ {
		es.Scores[i] += score
	}
}

// Search runs q against the body field and accumulates matches into a
// per-srt score curve, discarding any matching window wider than
// searchWindow cues.
func (idx *Index) Search(q string, searchWindow int) (map[int64]*EpisodeScore, error) {
	query := bleve.NewMatchQuery(q)
	query.SetField("body")

	req := bleve.NewSearchRequestOptions(query, 10000, 0, false)
	req.Fields = []string{"srt_id", "clip_start", "clip_end"}

	result, err := idx.bleveIdx.Search(req)
	if err != nil {
		return nil, lucerr.New("Index.Search", lucerr.KindIO, err)
	}

	scores := make(map[int64]*EpisodeScore)
	for _, hit := range result.Hits {
		srtID := int64(hit.Fields["srt_id"].(float64))
		clipStart := int(hit.Fields["clip_start"].(float64))
		clipEnd := int(hit.Fields["clip_end"].(float64))

		if clipEnd-clipStart > searchWindow {
			continue
		}

		es, ok := scores[srtID]
		if !ok {
			es = &EpisodeScore{SrtID: srtID}
			scores[srtID] = es
		}
		es.add(clipStart, clipEnd, hit.Score)
	}
	return scores, nil
}

// ClipMatch is one maximal run of cue positions whose accumulated score
// exceeded MinScore.
type ClipMatch struct {
	Start, End int
	Scores     []float64
}

// RankedMatch is one clip match, tagged with the subtitle it came from and
// its representative (maximum) score, suitable for sorting.
type RankedMatch struct {
	Score float64
	SrtID int64
	Clip  ClipMatch
}

// extractRuns finds every maximal run of consecutive positions whose score
// is strictly greater than MinScore, mirroring the reference engine's
// cursor walk exactly (including its boundary quirk: a position sitting
// exactly at MinScore neither continues nor starts a run).
func extractRuns(scores []float64) []ClipMatch {
	var runs []ClipMatch
	cursor := 0
	for cursor < len(scores) {
		for cursor < len(scores) && scores[cursor] < MinScore {
			cursor++
		}
		start := cursor
		for cursor < len(scores) && scores[cursor] > MinScore {
			cursor++
		}
		if cursor > start {
			runs = append(runs, ClipMatch{Start: start, End: cursor, Scores: append([]float64(nil), scores[start:cursor]...)})
		} else {
			cursor++
		}
	}
	return runs
}

// Rank flattens every episode's score curve into its maximal runs and
// returns them sorted by representative score, descending.
func Rank(scores map[int64]*EpisodeScore) []RankedMatch {
	var out []RankedMatch
	for _, es := range scores {
		for _, run := range extractRuns(es.Scores) {
			max := run.Scores[0]
			for _, s := range run.Scores[1:] {
				if s > max {
					max = s
				}
			}
			out = append(out, RankedMatch{Score: max, SrtID: es.SrtID, Clip: run})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
