package history

import "time"

// Entry is one item shown to the user in a run.
type Entry struct {
	ID      int64     `json:"id"`
	RunID   string    `json:"runId"`
	ItemKey string    `json:"itemKey"`
	Title   string    `json:"title"`
	Year    int       `json:"year,omitempty"`
	Kind    string    `json:"kind"`
	Rank    int       `json:"rank"`
	Score   float64   `json:"score"`
	ShownAt time.Time `json:"shownAt"`
}

// RecordInput describes one shown item to log.
type RecordInput struct {
	ItemKey string
	Title   string
	Year    int
	Kind    string
	Rank    int
	Score   float64
}

// ListOptions contains options for listing history.
type ListOptions struct {
	RunID    string
	Page     int
	PageSize int
}

// ListResponse is a page of entries.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
