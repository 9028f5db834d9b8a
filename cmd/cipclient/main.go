// cipclient is the interactive/scriptable CIP client CLI: connect to a
// device and read or write tags using §6's operation syntax. Grounded on
// tonylturner-cipdip/cmd/cipdip's cobra root command shape, trimmed to this
// stack's connector rather than that tool's scenario-driven traffic
// generator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "cipclient",
		Short:         "EtherNet/IP CIP client",
		Long:          "cipclient connects to a CIP device over EtherNet/IP and reads or writes tags.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newReadCmd())
	root.AddCommand(newWriteCmd())
	root.AddCommand(newPollCmd())
	root.AddCommand(newDiscoverCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
