package main

import (
	"os"

	"github.com/adilhn/selene/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
