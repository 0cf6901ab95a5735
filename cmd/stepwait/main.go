package main

import (
	"os"

	"github.com/haitch/go-asyncstep/cmd/stepwait/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
