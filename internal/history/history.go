// Package history manages stored chat conversations for xx.
// History is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
)

const (
	fileName   = "history.json"
	maxEntries = 200
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// ErrNotFound is returned when no conversation matches an ID.
var ErrNotFound = errors.New("conversation not found")

// Conversation is one stored chat session.
type Conversation struct {
	ID        string       `json:"id" yaml:"id"`
	StartedAt time.Time    `json:"started_at" yaml:"started_at"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"updated_at"`
	Model     string       `json:"model" yaml:"model"`
	Mode      string       `json:"mode" yaml:"mode"`
	Turns     []ai.Message `json:"turns" yaml:"turns"`
}

// New starts an empty conversation with a fresh ID.
func New(model, mode string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.New().String(),
		StartedAt: now,
		UpdatedAt: now,
		Model:     model,
		Mode:      mode,
	}
}

// Title returns the first user turn, used as a label in listings.
func (c *Conversation) Title() string {
	for _, t := range c.Turns {
		if t.Role == ai.RoleUser {
			return t.Content
		}
	}
	return "(empty)"
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save stores conv, replacing an earlier version with the same ID.
func Save(conv *Conversation) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	conv.UpdatedAt = time.Now()

	entries, _ := loadAll()
	replaced := false
	for i := range entries {
		if entries[i].ID == conv.ID {
			entries[i] = *conv
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, *conv)
	}

	// Trim to max entries, keeping the most recent.
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent n conversations, oldest first.
func Load(limit int) ([]Conversation, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Get returns the conversation whose ID starts with prefix. The prefix must
// be unambiguous.
func Get(prefix string) (*Conversation, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}
	var match *Conversation
	for i := range entries {
		if !strings.HasPrefix(entries[i].ID, prefix) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("id prefix %q is ambiguous", prefix)
		}
		match = &entries[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return match, nil
}

// Clear removes all stored conversations.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	err := os.Remove(historyPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadAll() ([]Conversation, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Conversation
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
