// Package repository implements the metadata store (C4): relational
// persistence of corpora, chapters, subtitle blobs, media views, media
// segments, storage rows, and search-index associations.
package repository

import (
	"strings"

	"github.com/scottschroeder/lucille-go/internal/lucerr"
)

// constraintOrIO classifies a sqlite driver error: a UNIQUE/CHECK/FOREIGN
// KEY constraint violation surfaces as lucerr.KindConstraintViolation,
// anything else as lucerr.KindIO. modernc.org/sqlite surfaces constraint
// failures as plain errors whose message names the violated constraint
// type, so the classification is done on message content rather than a
// typed sentinel.
func constraintOrIO(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "check constraint") ||
		strings.Contains(msg, "foreign key constraint") {
		return lucerr.New(op, lucerr.KindConstraintViolation, err)
	}
	return lucerr.New(op, lucerr.KindIO, err)
}
