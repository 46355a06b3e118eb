package main

import (
	"os"

	"passage/cmd/markerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
