package main

import (
	"fmt"

	"github.com/dgnsrekt/trendcast/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	purgeClips bool

	purgeCmd = &cobra.Command{
		Use:     "purge",
		Short:   "Delete expired batches from the content store",
		Long:    paragraph(fmt.Sprintf("\n%s expired batches from the local content store and, with --clips, old speech clips from the audio cache.", keyword("Delete"))),
		Example: paragraph("trendcast purge\ntrendcast purge --clips"),
		Args:    cobra.NoArgs,
		Annotations: map[string]string{
			logToStderr: "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(cfg.Store.Path, store.WithTTL(cfg.Store.TTL))
			if err != nil {
				return fmt.Errorf("unable to open content store: %w", err)
			}
			defer func() { _ = st.Close() }()

			n, err := st.PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to purge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %s expired rows\n", humanize.Comma(n))

			stats, err := st.Stats(cmd.Context())
			if err == nil && stats.Batches > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s rows in %s batches remain, newest %s\n",
					humanize.Comma(stats.Rows), humanize.Comma(stats.Batches), humanize.Time(stats.Newest))
			}

			if !purgeClips {
				return nil
			}
			a := &app{cfg: cfg}
			clips, err := a.clipCache()
			if err != nil {
				return fmt.Errorf("unable to open clip cache: %w", err)
			}
			defer func() { _ = clips.Close() }()

			removed := clips.Cleanup()
			disk := clips.Stats().Disk
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d old clips, %s cached\n", removed, humanize.Bytes(uint64(disk.Size))) //nolint:gosec
			return nil
		},
	}
)

func init() {
	purgeCmd.Flags().BoolVar(&purgeClips, "clips", false, "also remove expired speech clips")
}
