// Command listctl inspects the list service the board reads from: it reports
// the resolved site and transport, probes connectivity, runs raw queries and
// renders a user's board offline.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
