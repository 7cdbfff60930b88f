// Command wsnap manages workspace snapshots from the command line.
//
// Usage:
//
//	wsnap [global flags] COMMAND [flags] [args]
//	wsnap --data-dir /var/lib/wsnap/data list
//	wsnap -o json show --files chat-1
//	wsnap --workspace ./app restore chat-1
//
// Commands read the same configuration as wsnapd (file, WSNAP_ environment
// variables, flags) and open the snapshot store directly.
package main

import (
	"fmt"
	"os"

	"github.com/AgenciaV10/wsnap/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
