package feed

import (
	"errors"
	"time"
)

// Common errors surfaced by the controller.
var (
	// ErrEmptyFeed is returned when there is nothing to play.
	ErrEmptyFeed = errors.New("feed has no items")

	// ErrNoAudio marks a track whose text loaded but whose audio did not.
	ErrNoAudio = errors.New("audio unavailable")

	// ErrStateTransition is logged when an operation does not apply in
	// the current state.
	ErrStateTransition = errors.New("invalid state transition")
)

// Severity represents how bad an error is for the listener.
type Severity int

const (
	// SeverityWarning is for errors that leave the track usable as text.
	SeverityWarning Severity = iota
	// SeverityError is for errors that leave the track unusable.
	SeverityError
)

// Error describes a failure on one track.
type Error struct {
	Err       error    // The underlying error
	Component string   // Component that generated the error
	Action    string   // Action being performed when error occurred
	Severity  Severity // Severity of the error
	ItemID    string   // Item the error belongs to
	Timestamp int64    // Unix timestamp when error occurred
}

// NewError creates an error for an item.
func NewError(err error, action, itemID string) *Error {
	sev := SeverityError
	if errors.Is(err, ErrNoAudio) {
		sev = SeverityWarning
	}
	return &Error{
		Err:       err,
		Component: "feed",
		Action:    action,
		Severity:  sev,
		ItemID:    itemID,
		Timestamp: time.Now().Unix(),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown feed error"
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// AudioUnavailable reports whether only the audio is missing.
func (e *Error) AudioUnavailable() bool {
	return errors.Is(e.Err, ErrNoAudio)
}
