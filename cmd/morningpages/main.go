package main

import (
	"fmt"
	"os"

	"morningpages/internal/cli"

	_ "golang.org/x/crypto/x509roots/fallback" // TLS roots for scratch containers
)

// Version will be set during build
var Version = "dev"

func main() {
	app := cli.RootApp()
	app.Version = Version
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "morningpages: %v\n", err)
		os.Exit(1)
	}
}
