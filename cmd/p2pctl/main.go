package main

import (
	"fmt"
	"os"

	"github.com/odyssey-erp/p2p/cmd/p2pctl/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
