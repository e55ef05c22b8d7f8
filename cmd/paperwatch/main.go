package main

import (
	"os"

	"paperwatch/cmd/paperwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
