// Package interest matches trend topics against a listener's interests.
package interest

import (
	"strings"

	"github.com/dgnsrekt/trendcast/internal/trend"
	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// aliases maps an interest to topics it also covers.
var aliases = map[string][]string{
	"tech":          {"ai", "technology", "software", "gadgets", "startups", "crypto"},
	"technology":    {"ai", "tech", "software"},
	"ai":            {"artificial intelligence", "machine learning", "llm"},
	"sports":        {"football", "soccer", "basketball", "nba", "nfl", "tennis", "f1"},
	"politics":      {"election", "government", "policy"},
	"entertainment": {"movies", "music", "tv", "celebrity", "gaming"},
	"business":      {"finance", "markets", "economy", "stocks"},
	"science":       {"space", "climate", "health"},
}

// Normalize folds case and trims whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(folder.String(s))
}

// Parse splits a comma separated list into normalized, de-duplicated
// interests. Blank entries are dropped.
func Parse(csv string) []string {
	return Clean(strings.Split(csv, ","))
}

// Clean normalizes and de-duplicates interests, keeping first-seen order.
func Clean(interests []string) []string {
	var out []string
	seen := make(map[string]bool, len(interests))
	for _, raw := range interests {
		i := Normalize(raw)
		if i == "" || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// Matches reports whether topic is covered by any of the interests.
// An empty interest list matches everything.
func Matches(topic string, interests []string) bool {
	interests = Clean(interests)
	if len(interests) == 0 {
		return true
	}
	return matches(Normalize(topic), interests)
}

func matches(topic string, interests []string) bool {
	if topic == "" {
		return false
	}
	for _, i := range interests {
		if related(topic, i) {
			return true
		}
		for _, alias := range aliases[i] {
			if related(topic, alias) {
				return true
			}
		}
	}
	return false
}

func related(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// Filter keeps the items whose topic matches the interests, preserving
// order. With no interests it returns items unchanged.
func Filter(items []trend.Item, interests []string) []trend.Item {
	interests = Clean(interests)
	if len(interests) == 0 {
		return items
	}

	out := make([]trend.Item, 0, len(items))
	for _, item := range items {
		if matches(Normalize(item.Topic), interests) {
			out = append(out, item)
		}
	}
	return out
}

// FilterWithFallback is Filter, except that when filtering removes every
// item of a non-empty input it returns the input and reports fellBack.
func FilterWithFallback(items []trend.Item, interests []string) (out []trend.Item, fellBack bool) {
	out = Filter(items, interests)
	if len(out) == 0 && len(items) > 0 {
		return items, true
	}
	return out, false
}
