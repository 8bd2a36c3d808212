package main

import (
	"fmt"
	"os"

	"github.com/quickserve/pos-device-access/internal/tools/devwatch"
)

func main() {
	if err := devwatch.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
