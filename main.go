// Package main provides the entry point for the trendcast CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/audio"
	"github.com/dgnsrekt/trendcast/internal/config"
	"github.com/dgnsrekt/trendcast/internal/feed"
	"github.com/dgnsrekt/trendcast/internal/interest"
	"github.com/dgnsrekt/trendcast/internal/logging"
	"github.com/dgnsrekt/trendcast/internal/speech"
	"github.com/dgnsrekt/trendcast/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// logToStderr marks commands whose logs are also written to stderr.
const logToStderr = "log-stderr"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	configUsed string
	style      string
	width      uint
	mouse      bool
	interests  []string

	cfg       config.Config
	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "trendcast",
		Short: "Listen to what's trending, right in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nListen to %s, narrated right in your terminal.", keyword("what's trending")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd)
		},
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style, err := homedir.Expand(style)
		if err != nil {
			return fmt.Errorf("unable to expand style path: %w", err)
		}
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	used, err := config.Setup(viper.GetViper(), configFile)
	if err != nil {
		return err
	}
	configUsed = used

	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", configUsed, err)
	}
	cfg.Interests = interest.Clean(cfg.Interests)

	closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Stderr:     cmd.Annotations[logToStderr] == "true",
	})
	if err != nil {
		return err
	}
	logCloser = closer
	log.Debug("Using configuration", "path", configUsed, "command", cmd.Name())

	// grab display values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// We want to use a special no-TTY style, when stdout is not a terminal
	// and there was no specific style passed by arg
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func runTUI(cmd *cobra.Command) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the configured one if unset
	if err := validateStyle(uiCfg.GlamourStyle); uiCfg.GlamourStyle == "" || err != nil {
		uiCfg.GlamourStyle = style
	}
	uiCfg.GlamourMaxWidth = width
	uiCfg.EnableMouse = mouse
	uiCfg.Interests = cfg.Interests

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	acfg := audio.DefaultConfig()
	acfg.SampleRate = cfg.Speech.SampleRate
	engine, err := audio.NewEngine(acfg, audio.WithLogger(log.WithPrefix("audio")))
	if err != nil {
		return fmt.Errorf("unable to create audio engine: %w", err)
	}
	defer engine.Stop()

	narratorOpts := []speech.NarratorOption{speech.WithLogger(log.WithPrefix("speech"))}
	clips, err := a.clipCache()
	if err != nil {
		log.Warn("Clip cache disabled", "err", err)
	} else {
		defer func() { _ = clips.Close() }()
		narratorOpts = append(narratorOpts, speech.WithCache(clips))
	}
	if a.openai == nil {
		log.Warn("OPENAI_API_KEY is not set; only pre-rendered audio will play")
	}
	narrator := speech.NewNarrator(a.speaker(), acfg.SampleRate, narratorOpts...)

	loop := feed.NewEventLoop(0)
	relay := ui.NewRelay()
	fcfg := feed.DefaultConfig()
	fcfg.AutoPlay = cfg.AutoPlay
	if noAutoplay, _ := cmd.Flags().GetBool("no-autoplay"); noAutoplay {
		fcfg.AutoPlay = false
	}
	ctrl := feed.NewController(loop, engine, narrator,
		feed.WithConfig(fcfg),
		feed.WithListener(relay.Publish),
		feed.WithLogger(log.WithPrefix("feed")),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	f := a.fetcher()
	defer f.Wait()

	p := ui.NewProgram(uiCfg, ui.Deps{
		Fetcher: f,
		Session: ctrl,
		Post:    loop.Post,
		Relay:   relay,
	})

	// reload the feed when interests are edited in the config file, unless
	// they were pinned on the command line
	if !cmd.Flags().Changed("interests") {
		last := cfg.Interests
		w, err := config.Watch(viper.GetViper(), configUsed, func(c config.Config) {
			next := interest.Clean(c.Interests)
			if slices.Equal(next, last) {
				return
			}
			last = next
			p.Send(ui.InterestsMsg(next))
		})
		if err != nil {
			log.Warn("Not watching configuration", "err", err)
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	_, err = p.Run()
	// silence before waiting on any background refresh
	engine.Stop()
	if err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = logCloser()
		os.Exit(1)
	}
	_ = logCloser()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/trendcast/trendcast.yml)")
	rootCmd.PersistentFlags().StringSliceVarP(&interests, "interests", "i", nil, "comma-separated interests (overrides the config file)")
	rootCmd.PersistentFlags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.PersistentFlags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to use the terminal width)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().Bool("no-autoplay", false, "load the first item without playing it")

	// Config bindings
	_ = viper.BindPFlag("interests", rootCmd.PersistentFlags().Lookup("interests"))
	_ = viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	rootCmd.AddCommand(configCmd, serveCmd, fetchCmd, purgeCmd, manCmd)
}
