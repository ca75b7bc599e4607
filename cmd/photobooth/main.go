package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/moonback/photoboot/internal/config"
	"github.com/moonback/photoboot/internal/logging"
	"github.com/moonback/photoboot/internal/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI flags
var (
	configFlag   string
	logLevelFlag string
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "photobooth",
	Short: "Kiosk photobooth: capture, frame, lay out, print and share photos",
	Long: `Photobooth drives a camera through a countdown, applies filters and the
active decorative frame, lays the shots out on a print template and stores,
prints or emails the result. "serve" runs the HTTP API used by the kiosk
front end; the other commands work directly against the same data.

Settings come from config/config.yaml (or --config), a .env file and
PHOTOBOOTH_* environment variables, in that order.

Examples:
  photobooth serve
  photobooth shoot --mode multi --template strip_2x6 --print 1
  photobooth compose a.jpg b.jpg --template strip_2x6 --text "Anna & Ben"
  photobooth frames add gold.png --name Gold --position bottom-right --size 40 --activate
  photobooth templates list`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv(".env")
		loaded, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		level := loaded.LogLevel
		if logLevelFlag != "" {
			level = logLevelFlag
		}
		logging.Init(level)
		metrics.SetBoothID(loaded.BoothID)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, shootCmd, composeCmd, framesCmd, templatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
