package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/thingspeak_uploader/pkg/sensor"
	"github.com/NotCoffee418/thingspeak_uploader/pkg/status"
	"github.com/spf13/cobra"
)

var watchHost string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live readings from a running uploader",
	Long:  `Connects to the status server of a running uploader (status_listen) and prints every accepted reading.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return status.Listen(ctx, watchHost, printSnapshot, logger)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchHost, "host", "localhost:9040", "host:port of the status server")
}

func printSnapshot(snapshot *status.Snapshot) {
	profile, err := sensor.GetProfile(snapshot.Profile)
	if err != nil {
		logger.INFO.Printf("%s", snapshot.ToJsonBytes())
		return
	}
	logger.INFO.Printf("[%s] %s", snapshot.ReceivedAt.Local().Format("15:04:05"), profile.Summary(snapshot.Reading))
}
