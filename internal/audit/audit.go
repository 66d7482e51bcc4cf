// Package audit keeps an append-only trail of investigator and operator
// actions, queryable by actor, action, resource and time range.
package audit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded action.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Filter narrows a List call. Zero-valued fields match everything.
type Filter struct {
	UserID   string
	Action   string
	Resource string
	Start    time.Time
	End      time.Time
}

// Repository is the persistence interface for the audit trail.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *entry
	r.entries = append(r.entries, &copy)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Entry
	for _, e := range r.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Resource != "" && e.Resource != filter.Resource {
			continue
		}
		if !filter.Start.IsZero() && e.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && e.Timestamp.After(filter.End) {
			continue
		}
		copy := *e
		result = append(result, &copy)
	}

	// Newest first.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// Logger records entries and mirrors them to the structured log.
type Logger struct {
	repo  Repository
	nowFn func() time.Time
	idFn  func() string
}

func NewLogger(repo Repository) *Logger {
	if repo == nil {
		panic("audit: repository must not be nil")
	}
	return &Logger{
		repo:  repo,
		nowFn: func() time.Time { return time.Now().UTC() },
		idFn:  uuid.NewString,
	}
}

// Record appends one entry to the trail, assigning id and timestamp.
func (l *Logger) Record(ctx context.Context, userID, action, resource, resourceID string, details map[string]any) error {
	entry := &Entry{
		ID:         l.idFn(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		Timestamp:  l.nowFn(),
	}
	if err := l.repo.Insert(ctx, entry); err != nil {
		return err
	}

	slog.Info("Audit",
		"user_id", userID,
		"action", action,
		"resource", resource,
		"resource_id", resourceID)
	return nil
}

// List returns matching entries, newest first.
func (l *Logger) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	return l.repo.List(ctx, filter)
}
