package trend

import (
	"errors"
	"testing"
	"time"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{name: "script only", item: Item{ID: "a", Script: "hello"}},
		{name: "content only", item: Item{ID: "a", Content: "hello"}},
		{name: "blank text", item: Item{ID: "a", Script: "  ", Content: "\n"}, wantErr: ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if err := (Item{Script: "x"}).Validate(); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestSpeechTextFallsBackToContent(t *testing.T) {
	i := Item{Title: "T", Content: " body "}
	if got := i.SpeechText(); got != "body" {
		t.Errorf("SpeechText() = %q, want %q", got, "body")
	}

	i = Item{Title: "T"}
	if got := i.DisplayText(); got != "T" {
		t.Errorf("DisplayText() = %q, want title", got)
	}
}

func TestBatchExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	b := Batch{GeneratedAt: now, ExpiresAt: now.Add(30 * time.Minute)}

	if b.Expired(now.Add(10 * time.Minute)) {
		t.Error("batch should not be expired at +10m")
	}
	if !b.Expired(now.Add(40 * time.Minute)) {
		t.Error("batch should be expired at +40m")
	}

	var nilBatch *Batch
	if nilBatch.Len() != 0 {
		t.Error("nil batch should have zero length")
	}
}
