// Package trend defines the narratable content units shared by the store,
// the fetcher, the server and the player.
package trend

import (
	"errors"
	"strings"
	"time"
)

// SchemaVersion is written with every cached row.
const SchemaVersion = 1

// MaxSources is the most source excerpts an item keeps.
const MaxSources = 5

// ErrNoText is returned when an item carries neither a script nor content.
var ErrNoText = errors.New("item has no narration script or content")

// Source is one excerpt an item was built from.
type Source struct {
	Author     string `json:"author"`
	Handle     string `json:"handle,omitempty"`
	Text       string `json:"text"`
	Engagement string `json:"engagement,omitempty"`
}

// Item is one narratable unit. Items are immutable once generated; a
// refresh produces new items with new ids.
type Item struct {
	ID          string   `json:"id"`
	Topic       string   `json:"topic"`
	Title       string   `json:"title"`
	Script      string   `json:"script,omitempty"`
	Content     string   `json:"content,omitempty"`
	AudioURL    string   `json:"audioUrl,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	ImagePrompt string   `json:"imagePrompt,omitempty"`
	Sources     []Source `json:"sources,omitempty"`
}

// Validate checks that the item has an id and at least one text source
// for speech.
func (i Item) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("item has no id")
	}
	if i.SpeechText() == "" {
		return ErrNoText
	}
	return nil
}

// SpeechText returns the narration script, or the content text when the
// script is blank.
func (i Item) SpeechText() string {
	if s := strings.TrimSpace(i.Script); s != "" {
		return s
	}
	return strings.TrimSpace(i.Content)
}

// DisplayText is what the player shows when audio is unavailable.
func (i Item) DisplayText() string {
	if s := i.SpeechText(); s != "" {
		return s
	}
	return i.Title
}

// Batch is a set of items generated together. All items share the batch
// key (GeneratedAt) and expire together.
type Batch struct {
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Version     int       `json:"version"`
	Items       []Item    `json:"items"`

	// Stale is set when the batch was served past its expiry.
	Stale bool `json:"stale,omitempty"`
}

// Expired reports whether the batch is past its expiry at now.
func (b Batch) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// Len returns the number of items in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Items)
}
