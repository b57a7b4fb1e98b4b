package main

import (
	"fmt"
	"os"

	"github.com/BrandonDHaskell/Janus/server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "janus:", err)
		os.Exit(cli.ExitCode(err))
	}
}
