package cmd

import (
	"fmt"
	"os"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/db"
	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/fbz-tec/chxport/internal/version"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	// Connection flags
	chHost     string
	chPort     int
	chUser     string
	chDatabase string
	chToken    string
	chSecure   bool
)

var rootCmd = &cobra.Command{
	Use:   "chxport",
	Short: "Move data between ClickHouse tables and delimited files",
	Long: `A CLI tool and HTTP service to export ClickHouse tables (or a two-table join)
to files and to import delimited files into ClickHouse tables.

Supported output formats:
 • CSV  - delimited text export with customizable delimiter
 • JSON - structured export for API or data processing
 • YAML - human-readable structured export
 • XLSX - spreadsheet export

Imports read delimited files, optionally gzip, zstd or lz4 compressed, and
insert them in batches of 1000 rows.`,
	Example: `  # Export two columns with a custom delimiter
  chxport export -t users -c id,name -o users.csv -D ";"

  # Import a file into a table (created when missing)
  chxport import -t users -c id,name -i users.csv

  # Export a join
  chxport join --source orders --join users --on "orders.user_id = users.id" -c id,name -o out.csv

  # Run the HTTP service
  chxport serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("error: Cannot use --verbose and --quiet flags together")
		}
		if quiet {
			logger.SetQuiet(true)
			logger.SetVerbose(false)
		} else {
			logger.SetVerbose(verbose)
			if verbose {
				logger.Debug("Verbose mode enabled")
			}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false

	flags.StringVarP(&chHost, "host", "H", "", "ClickHouse host (overrides .env and environment)")
	flags.IntVarP(&chPort, "port", "P", config.DefaultCHPort, "ClickHouse HTTP port (overrides .env and environment)")
	flags.StringVarP(&chUser, "user", "u", "", "ClickHouse username (overrides .env and environment)")
	flags.StringVarP(&chDatabase, "database", "d", "", "ClickHouse database (overrides .env and environment)")
	flags.StringVar(&chToken, "token", "", "Bearer token sent to ClickHouse (overrides .env and environment)")
	flags.BoolVar(&chSecure, "secure", false, "Use HTTPS to reach ClickHouse")

	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output with detailed information")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Enable quiet mode: only display error messages")

	rootCmd.AddCommand(serveCmd, exportCmd, joinCmd, importCmd, tablesCmd, columnsCmd, previewCmd, versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment, then applies connection flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	logger.Debug("Version: %s, Build: %s, Commit: %s", version.AppVersion, version.BuildTime, version.GitCommit)
	logger.Debug("Loading configuration from environment and flags")

	cfg := config.LoadConfig()
	flags := cmd.Flags()

	if chHost != "" {
		cfg.Conn.Host = chHost
		logger.Debug("Overriding host from flag: %s", chHost)
	}
	if flags.Changed("port") {
		cfg.Conn.Port = chPort
		logger.Debug("Overriding port from flag: %d", chPort)
	}
	if chUser != "" {
		cfg.Conn.User = chUser
		logger.Debug("Overriding user from flag: %s", chUser)
	}
	if chDatabase != "" {
		cfg.Conn.Database = chDatabase
		logger.Debug("Overriding database from flag: %s", chDatabase)
	}
	if chToken != "" {
		cfg.Conn.Token = chToken
		logger.Debug("Overriding token from flag")
	}
	if flags.Changed("secure") {
		cfg.Conn.Secure = chSecure
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// newService builds the store clients and the transfer engine. The returned
// func releases pooled connections.
func newService(cfg config.Config, opts ...ingest.Option) (*ingest.Service, func()) {
	httpStore := db.NewHTTPStore(db.HTTPOptions{Timeout: cfg.Timeout, MaxConns: cfg.MaxConns})
	native := db.NewNativeStore(cfg.Timeout)
	return ingest.NewService(httpStore, native, opts...), httpStore.Close
}
