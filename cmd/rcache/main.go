// Command rcache is the CLI front-end: a server subcommand that runs the
// TCP cache server, and a client subcommand that issues one GET/SET/STATS
// call against a running server. This front-end only ever calls through
// pkg/client — it never touches the wire codec or cache engine directly.
package main

import (
	"fmt"
	"os"

	"github.com/rcache/rcache/cmd/rcache/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "err: %s\n", err)
		os.Exit(1)
	}
}
