package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/worldvpn/broker/internal/interfaces/cli/admin"
	"github.com/worldvpn/broker/internal/interfaces/cli/migrate"
	"github.com/worldvpn/broker/internal/interfaces/cli/server"
	"github.com/worldvpn/broker/internal/shared/version"
)

// @title WorldVPN Broker API
// @version 1.0
// @description Node registry and session broker for a peer-to-peer VPN network.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey NodeToken
// @in header
// @name Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:     "broker",
		Short:   "WorldVPN broker - node registry and session broker",
		Long:    `The WorldVPN broker matches clients to relay nodes, meters traffic into the credit ledger, and publishes the transparency feed.`,
		Version: version.String(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		admin.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
