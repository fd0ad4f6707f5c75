package main

import (
	"os"

	"github.com/serbisyo-bataan/matcher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
