package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
)

var configUser bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify digestflow configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value and saves it.

Values are saved to the project's .digestflow.yaml when one exists, and to
~/.config/digestflow/config.yaml otherwise or with --user.
Environment variables such as DIGESTFLOW_DIGEST_ENZYME override both.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 2 {
			return setConfigKey(args[0], args[1])
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if len(args) == 1 {
			value, err := config.Get(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		}
		for _, key := range config.Keys() {
			value, _ := config.Get(cfg, key)
			fmt.Printf("%s: %s\n", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&configUser, "user", false, "Save to the user config even inside a project")
}

// setConfigKey updates key in a single config file, leaving values that
// come from other layers out of it.
func setConfigKey(key, value string) error {
	path := config.GetProjectConfigPath()
	if configUser || path == "" {
		path = config.GetUserConfigPath()
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := config.Set(cfg, key, value); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Set %s = %s (%s)\n", key, value, path)
	return nil
}
