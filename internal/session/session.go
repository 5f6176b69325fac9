package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyTurn is returned for user input that is empty after trimming.
var ErrEmptyTurn = errors.New("turn is empty")

// Role tags who authored a transcript entry
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// EntryKind tells the renderer what shape an entry has
type EntryKind string

const (
	KindText    EntryKind = "text"
	KindActions EntryKind = "actions"
	KindLink    EntryKind = "link"
)

// Session identifies one client run. It is created once and never changes.
type Session struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
}

// New creates a session with a random identifier
func New() Session {
	return Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
	}
}

// Entry is a single rendered line of the transcript
type Entry struct {
	Seq     int       `json:"seq"`
	Role    Role      `json:"role"`
	Kind    EntryKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Options []string  `json:"options,omitempty"`
	URL     string    `json:"url,omitempty"`
	// Diagnosis marks a text entry whose first line names a diagnosis
	Diagnosis bool      `json:"diagnosis,omitempty"`
	Time      time.Time `json:"time"`
}

// Transcript is the append-only record of rendered entries.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append stores e and returns it with its sequence number and time filled in.
func (t *Transcript) Append(e Entry) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e.Seq = len(t.entries) + 1
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Options != nil {
		e.Options = append([]string(nil), e.Options...)
	}
	t.entries = append(t.entries, e)
	return e
}

// Entries returns a copy of the transcript in chronological order
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		if e.Options != nil {
			e.Options = append([]string(nil), e.Options...)
		}
		out[i] = e
	}
	return out
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// NormalizeTurn trims user input and rejects it when nothing is left.
func NormalizeTurn(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTurn
	}
	return text, nil
}
