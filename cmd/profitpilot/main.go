package main

import (
	"os"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/profitpilot/internal/adapter/driving/cli"
)

func main() {
	// Cobra has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
