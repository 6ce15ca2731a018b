// Command reactord runs a single node's reactor.
package main

import (
	"fmt"
	"os"

	"github.com/reactorcluster/reactord/cmd/reactord/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
