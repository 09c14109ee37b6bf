// Gray Logic EnOcean - EnOcean/ESP2 bridge service
//
// This is the main entry point for the Gray Logic EnOcean service. It reads
// radio telegrams from an Eltako/EnOcean gateway, turns them into binary
// sensor states and button events, and publishes them on the Gray Logic
// MQTT bus.
//
// Commands:
//   - serve (default): run the bridge, API and health reporting
//   - decode: decode a single ESP2 frame under an equipment profile
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default config path.
const configEnvVar = "GRAYLOGIC_CONFIG"

var configFlag string

func main() {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the service.
func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	root := &cobra.Command{
		Use:   "graylogic-enocean",
		Short: "Gray Logic EnOcean bridge",
		Long: `graylogic-enocean connects an Eltako/EnOcean ESP2 gateway to the Gray Logic
MQTT bus.

Gateway connection formats (set in the bridge config):
  Serial:    serial:///dev/ttyUSB0
  TCP:       tcp://192.168.1.50:5100
  WebSocket: ws://gateway.local/esp2

The config path defaults to configs/config.yaml and can be overridden with
--config or the GRAYLOGIC_CONFIG environment variable.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config.yaml")

	root.AddCommand(serve, newDecodeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the EnOcean bridge service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graylogic-enocean %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// The --config flag wins, then GRAYLOGIC_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
