package alert

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entry is one leaderboard row carried by a notification.
type Entry struct {
	Rank       int     `json:"rank"`
	CreatorID  string  `json:"creatorId"`
	Handle     string  `json:"handle"`
	TotalScore float64 `json:"totalScore"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	URL           string    `json:"url,omitempty"`
	RunID         string    `json:"runId,omitempty"`
	ConfigVersion string    `json:"keywordConfigVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Leader        *Entry    `json:"leader,omitempty"`
	Entrants      []Entry   `json:"entrants,omitempty"`
	Entries       []Entry   `json:"entries"`
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// headline returns at most limit entries.
func headline(entries []Entry, limit int) []Entry {
	if len(entries) < limit {
		limit = len(entries)
	}
	return entries[:limit]
}
