package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Interests scope the feed; empty means everything.
	Interests []string

	// For debugging the UI
	GlamourEnabled bool `env:"TRENDCAST_ENABLE_GLAMOUR" envDefault:"true"`
}
