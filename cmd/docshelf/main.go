// docshelf is a command-line client for the document-management backend.
//
// Sub-commands:
//
//	docshelf login|register|logout|whoami
//	docshelf docs list|get|upload|delete|download
//	docshelf collections list|get|create|update|delete|stats
//	docshelf members list|add|update|remove <collection-id>
//	docshelf share show|generate|regenerate|revoke|settings <collection-id>
//	docshelf stats
//	docshelf chat send|history <document-id>
//	docshelf dashboard [--search] [--collection] [--watch DURATION]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
