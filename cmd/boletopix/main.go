// Command boletopix serves and inspects pix payment codes for boletos.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // containers often ship without zoneinfo

	"github.com/boddenberg/boleto-pix-go/internal/config"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "boletopix",
	Short: "Pix discount and BR Code generation for boletos",
	Long: `boletopix computes the pix payment discount of a boleto and encodes the
result as a BR Code ("Pix copia e cola" text and QR image).

Run "boletopix serve" for the HTTP API, or use the encode/decode
subcommands to work with payloads offline.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
