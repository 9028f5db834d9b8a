package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/industrialgo/cipstack/client"
)

func newDiscoverCmd() *cobra.Command {
	var bcast string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Broadcast List Identity and print responding devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
			defer cancel()
			identities, err := client.Discover(ctx, bcast, timeout)
			if err != nil {
				return err
			}
			fmt.Println(styleHeader.Render(fmt.Sprintf("%-16s %-24s %-8s %-8s", "ADDRESS", "PRODUCT", "VENDOR", "SERIAL")))
			for _, id := range identities {
				addr := fmt.Sprintf("%d.%d.%d.%d",
					byte(id.Socket.Addr>>24), byte(id.Socket.Addr>>16), byte(id.Socket.Addr>>8), byte(id.Socket.Addr))
				fmt.Printf("%-16s %-24s 0x%04X   %d\n", addr, id.ProductName, id.VendorID, id.SerialNumber)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bcast, "bcast", "255.255.255.255:44818", "broadcast address for List Identity")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "time to wait for replies")
	return cmd
}
