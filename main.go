package main

import (
	"os"

	"github.com/offalexp/ceSSHar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
