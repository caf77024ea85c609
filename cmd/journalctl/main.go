// Command journalctl is the admin CLI for the trade journal: KPI reports,
// balance reconciliation, account resets, backups and token issuance.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
