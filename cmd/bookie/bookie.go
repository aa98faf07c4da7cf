package main

import (
	"os"

	"github.com/streamvault/bookie/cmd"
	"github.com/streamvault/bookie/utils/log"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}
