package domain

import "time"

// Article is a blog post. Author holds the posting user's name as it was
// at creation time, not a live reference. Votes and Comments are
// append-only: entries are added, never removed or reordered. Repeat
// votes by the same name are recorded as separate entries.
type Article struct {
	ID        string
	Title     string
	Author    string
	Body      string
	Votes     []string
	Comments  []string
	CreatedAt time.Time
}
