package ui

import (
	"github.com/dgnsrekt/trendcast/internal/feed"
	"github.com/dgnsrekt/trendcast/internal/fetcher"
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// feedFetchedMsg carries one ContentFetcher result. seq ties it to the
// request that produced it; results from an older request are ignored.
type feedFetchedMsg struct {
	seq    int
	result fetcher.Result
	err    error
}

type refetchMsg struct{ seq int }

// snapshotMsg is the newest controller snapshot.
type snapshotMsg feed.Snapshot

// InterestsMsg replaces the interest list and reloads the feed. Send it
// through Program.Send when the config file changes.
type InterestsMsg []string

type cardRenderedMsg struct {
	key     string
	content string
}

type statusMessageTimeoutMsg struct{}
