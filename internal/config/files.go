package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// DefaultYAML is written when no config file exists.
const DefaultYAML = `# interests used to filter the feed (empty shows everything)
interests: []
# start narrating as soon as the feed loads
auto_play: true
# glamour style name or JSON path (default "auto")
style: "auto"
# word-wrap at width (0 uses the terminal width)
width: 0

log:
  level: "info"
  # file: "~/.local/state/trendcast/trendcast.log"
  max_size_mb: 10
  max_backups: 3

store:
  # path: "~/.local/share/trendcast/cache.db"
  ttl: "30m"

remote:
  # url: "https://example.com/trending"
  timeout: "15s"

speech:
  model: "tts-1"
  voice: "alloy"
  speed: 1.0
  sample_rate: 24000

generate:
  model: "gpt-4o-mini"
  count: 6
  # persona: "a sharp, upbeat tech news anchor"
  feeds: []

cache:
  # dir: "~/.cache/trendcast/audio"
  memory_mb: 64
  disk_mb: 512
  ttl: "168h"

server:
  addr: ":8787"
  memo_ttl: "5s"
  purge_schedule: "@every 10m"
  # prewarm_schedule: "0 */2 * * *"
`

// ConfigDirs lists the directories searched for trendcast.yml, highest
// priority first.
func ConfigDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, AppName).ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("TRENDCAST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// Setup prepares v to read trendcast.yml from file, or from the default
// places when file is empty, and returns the path in use. When nothing
// exists yet the default file is created in the first config directory.
func Setup(v *viper.Viper, file string) (string, error) {
	SetDefaults(v)
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		dirs, err := ConfigDirs()
		if err != nil {
			return "", err
		}
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		file = filepath.Join(dirs[0], AppName+".yml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return file, fmt.Errorf("could not parse configuration file: %w", err)
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			log.Debug("Using configuration file", "path", used)
			return used, nil
		}
	}

	if err := EnsureFile(file); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
	return file, nil
}

// EnsureFile writes DefaultYAML to file unless it already exists.
func EnsureFile(file string) error {
	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}
		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(DefaultYAML); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// Watch calls onChange with the freshly loaded config each time file is
// written. Invalid edits are logged and skipped. Editors that replace the
// file are handled by watching its directory.
func Watch(v *viper.Viper, file string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to watch config: %w", err)
	}
	if err := fw.Add(filepath.Dir(file)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("unable to watch config: %w", err)
	}

	cw := &Watcher{w: fw, done: make(chan struct{})}
	target := filepath.Clean(file)
	go func() {
		defer close(cw.done)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := v.ReadInConfig(); err != nil {
					log.Warn("Could not reload configuration", "err", err)
					continue
				}
				cfg, err := Load(v)
				if err != nil {
					log.Warn("Ignoring invalid configuration", "err", err)
					continue
				}
				onChange(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warn("Config watcher error", "err", err)
			}
		}
	}()
	return cw, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}
