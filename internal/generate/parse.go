package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgnsrekt/trendcast/internal/trend"
)

// ParseError reports a generation response that is not a usable batch.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "malformed generation response: " + e.Reason
}

type response struct {
	Items []rawItem `json:"items"`
}

type rawItem struct {
	Topic       string         `json:"topic"`
	Title       string         `json:"title"`
	Script      string         `json:"script"`
	Content     string         `json:"content"`
	ImagePrompt string         `json:"imagePrompt"`
	Sources     []trend.Source `json:"sources"`
}

// Parse decodes a generation response. The whole response is rejected if
// any item lacks a title or text; there is no partial success. Ids are
// left empty for the caller to assign.
func Parse(data []byte) ([]trend.Item, error) {
	data = bytes.TrimSpace(stripFence(data))
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty response"}
	}

	var resp response
	switch data[0] {
	case '{':
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}
	case '[':
		if err := json.Unmarshal(data, &resp.Items); err != nil {
			return nil, &ParseError{Reason: err.Error()}
		}
	default:
		return nil, &ParseError{Reason: "response is not a JSON object or array"}
	}

	if len(resp.Items) == 0 {
		return nil, &ParseError{Reason: "no items"}
	}

	items := make([]trend.Item, 0, len(resp.Items))
	for i, raw := range resp.Items {
		item := trend.Item{
			Topic:       strings.TrimSpace(raw.Topic),
			Title:       strings.TrimSpace(raw.Title),
			Script:      strings.TrimSpace(raw.Script),
			Content:     strings.TrimSpace(raw.Content),
			ImagePrompt: strings.TrimSpace(raw.ImagePrompt),
			Sources:     raw.Sources,
		}
		if item.Title == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("item %d has no title", i)}
		}
		if item.SpeechText() == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("item %d: %s", i, trend.ErrNoText)}
		}
		if len(item.Sources) > trend.MaxSources {
			item.Sources = item.Sources[:trend.MaxSources]
		}
		items = append(items, item)
	}
	return items, nil
}

// stripFence removes a markdown code fence around the payload.
func stripFence(data []byte) []byte {
	s := strings.TrimSpace(string(data))
	if !strings.HasPrefix(s, "```") {
		return data
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(s)
}
