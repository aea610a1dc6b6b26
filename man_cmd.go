package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	PersistentPreRunE:     func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		manPage = manPage.WithSection("Environment", "OPENAI_API_KEY enables generation and speech.\n"+
			"OPENAI_BASE_URL points both at a compatible endpoint.\n"+
			"TRENDCAST_REMOTE_URL selects the content endpoint.\n"+
			"TRENDCAST_REFRESH_SECRET guards POST /refresh.")
		fmt.Println(manPage.Build(roff.NewDocument()))
		return nil
	},
}
