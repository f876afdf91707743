package main

import (
	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/spf13/cobra"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file",
	Long: `Writes a config template to the --config path (config.yml next to the
executable by default). Use a .toml extension for TOML output. An existing
file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		logger.INFO.Printf("Wrote %s, set thingspeak_api_key before starting", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}
