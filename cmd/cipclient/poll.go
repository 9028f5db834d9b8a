package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/industrialgo/cipstack/client"
)

func newPollCmd() *cobra.Command {
	var host string
	var cycle time.Duration

	cmd := &cobra.Command{
		Use:   "poll TAG [TAG...]",
		Short: "Cyclically read tags and print every value read on each cycle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proxy := client.NewProxy(host, nil)
			defer proxy.CloseGateway()

			poller := client.NewPoller(proxy, args, client.PollConfig{Cycle: cycle})
			poller.Process = func(name string, value any) {
				fmt.Printf("%s  %-20s %v\n", time.Now().Format(time.RFC3339), name, value)
			}
			poller.Failure = func(err error) {
				fmt.Fprintln(os.Stderr, styleErr.Render(err.Error()))
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			poller.Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "device address, host:port (required)")
	cmd.Flags().DurationVar(&cycle, "cycle", time.Second, "poll cycle period")
	cmd.MarkFlagRequired("host")
	return cmd
}
