// cmd/tracker/main.go
package main

import (
	"fmt"
	"os"

	"github.com/tamzrod/heliotrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tracker:", err)
		os.Exit(1)
	}
}
