package generate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Headline is a news item used to ground generation in what is current.
type Headline struct {
	Title     string
	Summary   string
	Source    string
	Link      string
	Published time.Time
}

// HeadlineSource supplies current headlines.
type HeadlineSource interface {
	Headlines(ctx context.Context) ([]Headline, error)
}

// FeedHeadlines reads headlines from RSS and Atom feeds.
type FeedHeadlines struct {
	urls    []string
	perFeed int
	parser  *gofeed.Parser
	now     func() time.Time
}

// NewFeedHeadlines creates a source over urls, keeping at most perFeed
// entries from each.
func NewFeedHeadlines(urls []string, perFeed int) *FeedHeadlines {
	if perFeed <= 0 {
		perFeed = 10
	}
	return &FeedHeadlines{
		urls:    urls,
		perFeed: perFeed,
		parser:  gofeed.NewParser(),
		now:     time.Now,
	}
}

// Headlines fetches every feed, newest first. A feed that fails is
// skipped; the call fails only when all of them do.
func (f *FeedHeadlines) Headlines(ctx context.Context) ([]Headline, error) {
	var (
		out  []Headline
		errs []error
	)
	for _, url := range f.urls {
		feed, err := f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for i, entry := range feed.Items {
			if i >= f.perFeed {
				break
			}
			published := f.now()
			if entry.PublishedParsed != nil {
				published = *entry.PublishedParsed
			} else if entry.UpdatedParsed != nil {
				published = *entry.UpdatedParsed
			}
			out = append(out, Headline{
				Title:     strings.TrimSpace(entry.Title),
				Summary:   truncate(strings.TrimSpace(entry.Description), 200),
				Source:    feed.Title,
				Link:      entry.Link,
				Published: published,
			})
		}
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	return out, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
