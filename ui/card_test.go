package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/trendcast/internal/trend"
)

func TestCardMarkdown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	item := trend.Item{
		ID:     "x",
		Topic:  "space",
		Title:  "Rover finds ice",
		Script: "The rover found ice near the pole.",
		Sources: []trend.Source{
			{Author: "Ada", Handle: "@ada", Text: "Huge news\nfor science", Engagement: "1.2k likes"},
		},
	}

	md := cardMarkdown(item, "", now.Add(-5*time.Minute), now)

	for _, want := range []string{
		"# Rover finds ice",
		"*space* · generated 5 minutes ago",
		"The rover found ice near the pole.",
		"## Sources",
		"> **Ada** @ada · 1.2k likes",
		"> Huge news\n> for science",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("card missing %q:\n%s", want, md)
		}
	}
}

func TestCardMarkdownFallbacks(t *testing.T) {
	md := cardMarkdown(trend.Item{Content: "Only content."}, "", time.Time{}, time.Now())
	if !strings.Contains(md, "# Untitled") || !strings.Contains(md, "Only content.") {
		t.Errorf("unexpected card:\n%s", md)
	}
	if strings.Contains(md, "generated") || strings.Contains(md, "Sources") {
		t.Errorf("card shows empty metadata:\n%s", md)
	}
}

func TestBannerText(t *testing.T) {
	if got := bannerText(true, nil); !strings.Contains(got, "being generated") {
		t.Errorf("populating banner = %q", got)
	}
	got := bannerText(false, errors.New("remote down"))
	if !strings.Contains(got, "No trends available") || !strings.Contains(got, "remote down") {
		t.Errorf("unavailable banner = %q", got)
	}
}

func TestRenderCardPlainWraps(t *testing.T) {
	out, err := renderCard(Config{GlamourEnabled: false}, 20, "one two three four five six seven")
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 20 {
			t.Errorf("line %q longer than 20", line)
		}
	}
}

func TestRenderCardGlamour(t *testing.T) {
	out, err := renderCard(Config{GlamourEnabled: true, GlamourStyle: "notty"}, 60, "# Hello\n\nWorld")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "World") {
		t.Errorf("unexpected render: %q", out)
	}
}
