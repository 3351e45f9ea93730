// Package work defines the immutable bibliographic record read model.
package work

import "time"

// Work is a bibliographic record created by import/search. Read-only to the
// screening engine; surfaced for display in queue and progress responses.
type Work struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	Authors   []string  `json:"authors,omitempty"`
	Year      int       `json:"year,omitempty"`
	Journal   string    `json:"journal,omitempty"`
	DOI       string    `json:"doi,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
