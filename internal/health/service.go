// Package health tracks whether the files and database reelrank depends on
// are usable.
package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service holds the latest status of every checked item.
type Service struct {
	mu     sync.RWMutex
	items  map[Category]map[string]*Item
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	items := make(map[Category]map[string]*Item)
	for _, c := range AllCategories() {
		items[c] = make(map[string]*Item)
	}
	return &Service{
		items:  items,
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Set records the status of an item, registering it on first use. Status
// changes are logged.
func (s *Service) Set(category Category, id, name string, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.items[category]
	if !ok {
		bucket = make(map[string]*Item)
		s.items[category] = bucket
	}
	item, exists := bucket[id]
	if !exists {
		item = &Item{ID: id, Category: category, Name: name, Status: StatusOK}
		bucket[id] = item
	}
	if exists && item.Status == status && item.Message == message {
		return
	}

	old := item.Status
	item.Name = name
	item.Status = status
	item.Message = message
	if status != StatusOK {
		now := time.Now()
		item.Timestamp = &now
	} else {
		item.Timestamp = nil
	}

	if old != status {
		s.logger.Info().
			Str("category", string(category)).
			Str("id", id).
			Str("oldStatus", string(old)).
			Str("newStatus", string(status)).
			Str("message", message).
			Msg("Health status changed")
	}
}

// Get returns a copy of one item, or nil.
func (s *Service) Get(category Category, id string) *Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, ok := s.items[category][id]; ok {
		cp := *item
		return &cp
	}
	return nil
}

// GetAll returns every item grouped by category.
func (s *Service) GetAll() *Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &Response{
		Inputs:  s.sorted(CategoryInputs),
		State:   s.sorted(CategoryState),
		Storage: s.sorted(CategoryStorage),
	}
	for _, items := range [][]Item{resp.Inputs, resp.State, resp.Storage} {
		for _, it := range items {
			if it.Status != StatusOK {
				resp.HasIssues = true
			}
		}
	}
	return resp
}

func (s *Service) sorted(category Category) []Item {
	out := make([]Item, 0, len(s.items[category]))
	for _, item := range s.items[category] {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FileCheck describes one file to check.
type FileCheck struct {
	Category Category
	ID       string
	Name     string
	Path     string
	// Required files report an error when missing; others a warning.
	Required bool
}

// CheckFiles stats every file and records the result. Unconfigured
// (empty-path) checks are skipped.
func (s *Service) CheckFiles(checks []FileCheck) {
	for _, c := range checks {
		if c.Path == "" {
			continue
		}
		status, msg := fileStatus(c)
		s.Set(c.Category, c.ID, c.Name, status, msg)
	}
}

func fileStatus(c FileCheck) (Status, string) {
	info, err := os.Stat(c.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if c.Required {
			return StatusError, fmt.Sprintf("%s not found", c.Path)
		}
		return StatusWarning, fmt.Sprintf("%s not found", c.Path)
	case err != nil:
		return StatusError, err.Error()
	case info.IsDir():
		return StatusError, fmt.Sprintf("%s is a directory", c.Path)
	case info.Size() == 0 && c.Required:
		return StatusWarning, fmt.Sprintf("%s is empty", c.Path)
	}
	return StatusOK, ""
}

// CheckDatabase pings db and records the result under storage.
func (s *Service) CheckDatabase(ctx context.Context, db *sql.DB) {
	if err := db.PingContext(ctx); err != nil {
		s.Set(CategoryStorage, "database", "Shown history database", StatusError, err.Error())
		return
	}
	s.Set(CategoryStorage, "database", "Shown history database", StatusOK, "")
}
