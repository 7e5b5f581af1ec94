package main

import (
	"os"

	"github.com/kitbuilder587/wikisearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
