package cmd

import (
	"github.com/bosocmputer/product_identify/configs"
	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	cfg     *configs.Config
)

var rootCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify retail products from photos",
	Long: `identify runs the product identification pipeline once, without the HTTP server.

Configuration comes from the same environment variables (and .env) as the API.
The cache is always in-memory so operator runs never touch shared state.

Commands:
  product   Identify one product from a photo or a burst of frames
  products  List every product visible in a photo
  token     Issue a bearer token for AUTH_JWT_SECRET`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfg = configs.Load()
	cfg.CacheBackend = "memory"

	level := "warn"
	if verbose {
		level = "debug"
	}
	common.InitLogging(level)
}
