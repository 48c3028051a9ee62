package repository

import (
	"errors"
	"time"
)

// DefaultTTL bounds how long an idle page transcript is kept.
const DefaultTTL = 2 * time.Hour

// ErrConflict is returned by Save when the stored version moved since Load,
// which means another turn for the same page finished first.
var ErrConflict = errors.New("repository: page session version conflict")

func pagePK(pageID string) string {
	return "PAGE#" + pageID
}
