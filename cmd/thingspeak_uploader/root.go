package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/app"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/config"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/pathing"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
)

var (
	cfgFile string
	verbose bool
	logger  = jww.NewNotepad(jww.LevelInfo, jww.LevelCritical, os.Stdout, io.Discard, "", log.LstdFlags)
)

var rootCmd = &cobra.Command{
	Use:   "thingspeak_uploader",
	Short: "Upload serial sensor readings to ThingSpeak",
	Long: `Reads sensor lines such as

  Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux

from a serial device and uploads the most recent reading to a ThingSpeak
channel at a fixed interval. Runs until interrupted.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetStdoutThreshold(jww.LevelDebug)
		}
	},
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml next to the executable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.ERROR.Println(err)
		if errors.Is(err, app.ErrSerialPort) {
			logger.ERROR.Println("Check the connected device with: ls /dev/tty*")
		}
		os.Exit(1)
	}
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return pathing.GetConfigPath()
}

func run(cmd *cobra.Command, args []string) error {
	path := configPath()
	settings, err := config.Load(path)
	if err != nil {
		return err
	}
	logger.DEBUG.Printf("Using config file: %s", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Start(ctx, settings, logger)
}
