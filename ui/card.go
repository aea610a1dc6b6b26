package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
)

// cardMarkdown lays out one item as markdown: title, topic line, the
// narration text and its sources.
func cardMarkdown(item trend.Item, text string, generatedAt, now time.Time) string {
	var b strings.Builder

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	var meta []string
	if item.Topic != "" {
		meta = append(meta, "*"+item.Topic+"*")
	}
	if !generatedAt.IsZero() {
		meta = append(meta, "generated "+humanize.RelTime(generatedAt, now, "ago", "from now"))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "%s\n\n", strings.Join(meta, " · "))
	}

	if text == "" {
		text = item.DisplayText()
	}
	fmt.Fprintf(&b, "%s\n", text)

	if len(item.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for _, src := range item.Sources {
			who := "**" + src.Author + "**"
			if src.Handle != "" {
				who += " @" + strings.TrimPrefix(src.Handle, "@")
			}
			if src.Engagement != "" {
				who += " · " + src.Engagement
			}
			fmt.Fprintf(&b, "> %s\n>\n> %s\n\n", who, strings.ReplaceAll(src.Text, "\n", "\n> "))
		}
	}
	return b.String()
}

// bannerText is shown instead of a card when the feed has nothing.
func bannerText(populating bool, err error) string {
	if populating {
		return "Fresh trends are being generated. Checking again shortly…"
	}
	s := "No trends available right now. Press r to try again."
	if err != nil {
		s += "\n\n" + err.Error()
	}
	return s
}

func glamourStyleOption(style string) glamour.TermRendererOption {
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(style)
}

// renderCard renders markdown at width, or wraps it plainly when glamour
// is disabled.
func renderCard(cfg Config, width int, md string) (string, error) {
	wrap := max(0, width)
	if cfg.GlamourMaxWidth > 0 {
		wrap = min(int(cfg.GlamourMaxWidth), wrap) //nolint:gosec
	}

	if !cfg.GlamourEnabled {
		if wrap == 0 {
			return md, nil
		}
		return wordwrap.String(md, wrap), nil
	}

	r, err := glamour.NewTermRenderer(
		glamourStyleOption(cfg.GlamourStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return out, nil
}
