package health

import "time"

// Status is the health state of an item.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Category groups health items.
type Category string

const (
	CategoryInputs  Category = "inputs"
	CategoryState   Category = "state"
	CategoryStorage Category = "storage"
)

// AllCategories returns all categories in display order.
func AllCategories() []Category {
	return []Category{CategoryInputs, CategoryState, CategoryStorage}
}

// Item is a single health-tracked item.
type Item struct {
	ID        string     `json:"id"`
	Category  Category   `json:"category"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Response contains all items grouped by category.
type Response struct {
	Inputs    []Item `json:"inputs"`
	State     []Item `json:"state"`
	Storage   []Item `json:"storage"`
	HasIssues bool   `json:"hasIssues"`
}
