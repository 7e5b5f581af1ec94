package cmd

import (
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "wikisearch",
	Short: "Search a MediaWiki site from the browser, Telegram or the terminal",
	Long: `wikisearch queries the MediaWiki search API (English Wikipedia by default)
and shows paginated results with highlighted snippets.

It can run as a web server with a JSON API, as a Telegram bot,
or answer a single query on the command line.`,
	SilenceUsage: true,
}

// Execute запускает корневую команду
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(queryCmd)
}
