package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/fetcher"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	fetchJSON    bool
	fetchTimeout time.Duration

	fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the current feed once and print it",
		Long: paragraph(fmt.Sprintf("\n%s the feed through the same tiers the player uses: "+
			"the remote endpoint, then the local store, then live generation.", keyword("Fetch"))),
		Example: paragraph("trendcast fetch\ntrendcast fetch -i ai,space --json"),
		Args:    cobra.NoArgs,
		Annotations: map[string]string{
			logToStderr: "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			f := a.fetcher()
			ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
			defer cancel()

			res, err := f.Fetch(ctx, cfg.Interests)
			if res.Refreshing {
				log.Info("Waiting for background refresh")
			}
			defer f.Wait()

			if fetchJSON {
				return writeJSON(cmd.OutOrStdout(), res, err)
			}
			if err != nil && res.Status == fetcher.StatusUnavailable {
				return err
			}
			return writeFeed(cmd.OutOrStdout(), res, time.Now())
		},
	}
)

// fetchOutput is the --json document.
type fetchOutput struct {
	Status      string       `json:"status"`
	Tier        string       `json:"tier,omitempty"`
	Stale       bool         `json:"stale"`
	FellBack    bool         `json:"fellBack"`
	Refreshing  bool         `json:"refreshing"`
	GeneratedAt *time.Time   `json:"generatedAt,omitempty"`
	Items       []trend.Item `json:"items"`
	Error       string       `json:"error,omitempty"`
}

func writeJSON(w io.Writer, res fetcher.Result, fetchErr error) error {
	out := fetchOutput{
		Status:     res.Status.String(),
		Tier:       string(res.Tier),
		Stale:      res.Stale,
		FellBack:   res.FellBack,
		Refreshing: res.Refreshing,
		Items:      res.Items,
	}
	if out.Items == nil {
		out.Items = []trend.Item{}
	}
	if !res.GeneratedAt.IsZero() {
		out.GeneratedAt = &res.GeneratedAt
	}
	if fetchErr != nil {
		out.Error = fetchErr.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("unable to write json: %w", err)
	}
	return nil
}

// feedMarkdown lists the feed as one markdown document.
func feedMarkdown(res fetcher.Result, now time.Time) string {
	var b strings.Builder

	if res.Status == fetcher.StatusPopulating {
		return "Fresh trends are being generated. Try again in a minute.\n"
	}

	for i, item := range res.Items {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, item.Title)
		if item.Topic != "" {
			fmt.Fprintf(&b, "*%s*\n\n", item.Topic)
		}
		fmt.Fprintf(&b, "%s\n\n", item.DisplayText())
	}

	var meta []string
	if res.Tier != fetcher.TierNone {
		meta = append(meta, "from "+string(res.Tier))
	}
	if !res.GeneratedAt.IsZero() {
		meta = append(meta, "generated "+humanize.RelTime(res.GeneratedAt, now, "ago", "from now"))
	}
	if res.Stale {
		meta = append(meta, "stale")
	}
	if res.FellBack {
		meta = append(meta, "nothing matched your interests")
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "---\n\n%s · %s\n", humanize.Comma(int64(len(res.Items)))+" items", strings.Join(meta, " · "))
	}
	return b.String()
}

func writeFeed(w io.Writer, res fetcher.Result, now time.Time) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamourStyle(style),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}

	out, err := r.Render(feedMarkdown(res, now))
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err = fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == "auto" {
		return glamour.WithAutoStyle()
	}
	if styles.DefaultStyles[style] != nil {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(style)
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the result as JSON")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 2*time.Minute, "give up after this long")
}
