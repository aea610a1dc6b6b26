package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/trendcast/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the trendcast config file",
	Long:    paragraph(fmt.Sprintf("\n%s the trendcast config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("trendcast config\ntrendcast config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// a broken config file must still be editable, so skip loading it
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return ensureConfigFile()
	},
	RunE: func(*cobra.Command, []string) error {
		c, err := editor.Cmd("trendcast", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		dirs, err := config.ConfigDirs()
		if err != nil {
			return err
		}
		viper.SetConfigName(config.AppName)
		viper.SetConfigType("yaml")
		for _, d := range dirs {
			viper.AddConfigPath(d)
		}
		// a parse error still reports the file it found
		_ = viper.ReadInConfig()
		configFile = viper.ConfigFileUsed()
		if configFile == "" {
			configFile = dirs[0] + string(os.PathSeparator) + config.AppName + ".yml"
		}
	}
	return config.EnsureFile(configFile)
}
