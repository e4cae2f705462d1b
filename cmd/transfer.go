package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fbz-tec/chxport/core/exporters"
	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/output"
	"github.com/fbz-tec/chxport/core/query"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/fbz-tec/chxport/internal/logger"
	"github.com/fbz-tec/chxport/internal/ui"
	"github.com/spf13/cobra"
)

var (
	tableName   string
	columns     string
	outputPath  string
	inputPath   string
	format      string
	delimiter   string
	compression string
	noHeader    bool
	failOnEmpty bool
	// Join flags
	sourceTable   string
	joinTable     string
	joinCondition string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export columns of a table to a file",
	Example: `  chxport export -t users -c id,name -o users.csv
  chxport export -t users -c id,name -o users.json -f json -z gzip`,
	RunE: runExport,
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Export columns of a table joined with another table",
	Example: `  chxport join --source orders --join users --on "orders.user_id = users.id" -c id,name -o out.csv`,
	RunE: runJoin,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import columns of a delimited file into a table",
	Example: `  chxport import -t users -c id,name -i users.csv -D ";"`,
	RunE: runImport,
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, joinCmd} {
		f := c.Flags()
		f.SortFlags = false
		f.StringVarP(&columns, "columns", "c", "", "Comma separated columns to export (required)")
		f.StringVarP(&outputPath, "output", "o", "", "Output file path (required)")
		f.StringVarP(&format, "format", "f", exporters.FormatCSV, "Output format ("+strings.Join(exporters.List(), ", ")+")")
		f.StringVarP(&compression, "compression", "z", output.None, "Compression to apply to the output file ("+strings.Join(output.Compressions(), ", ")+")")
		f.StringVarP(&delimiter, "delimiter", "D", ",", "CSV delimiter character")
		f.BoolVarP(&noHeader, "no-header", "n", false, "Skip header row in CSV output")
		f.BoolVarP(&failOnEmpty, "fail-on-empty", "x", false, "Exit with error if the export produced 0 rows")
		mustRequire(c, "columns", "output")
	}

	exportCmd.Flags().StringVarP(&tableName, "table", "t", "", "Table to export (required)")
	mustRequire(exportCmd, "table")

	joinCmd.Flags().StringVar(&sourceTable, "source", "", "Source table (required)")
	joinCmd.Flags().StringVar(&joinTable, "join", "", "Table joined with the source table")
	joinCmd.Flags().StringVar(&joinCondition, "on", "", "Join condition, e.g. \"a.id = b.id\"")
	mustRequire(joinCmd, "source")

	f := importCmd.Flags()
	f.SortFlags = false
	f.StringVarP(&tableName, "table", "t", "", "Destination table, created when missing (required)")
	f.StringVarP(&columns, "columns", "c", "", "Comma separated columns to import (required)")
	f.StringVarP(&inputPath, "input", "i", "", "Delimited input file, optionally .gz/.zst/.lz4 (required)")
	f.StringVarP(&delimiter, "delimiter", "D", ",", "Input delimiter character")
	mustRequire(importCmd, "table", "columns", "input")
}

func mustRequire(c *cobra.Command, names ...string) {
	for _, name := range names {
		if err := c.MarkFlagRequired(name); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// progressFunc returns a row counter bound to a progress bar, or nil in
// quiet mode. finish must be called once the transfer returns.
func progressFunc(description string) (onProgress ingest.ProgressFunc, finish func()) {
	if logger.IsQuiet() {
		return nil, func() {}
	}
	bar := ui.NewProgressBar(description)
	return ui.RowCounter(bar), func() { _ = bar.Finish() }
}

func exportFile() records.FlatFileConfig {
	return records.FlatFileConfig{FilePath: outputPath, Delimiter: delimiter}
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	ctx, stop := signalContext()
	defer stop()

	onProgress, finish := progressFunc("Exporting rows")
	logger.Debug("Exporting %s (%s) as %s", tableName, columns, format)

	res, err := svc.ExportTable(ctx, ingest.ExportRequest{
		Connection:  cfg.Conn,
		Table:       tableName,
		Columns:     records.ParseColumns(columns),
		File:        exportFile(),
		Format:      format,
		Compression: compression,
		NoHeader:    noHeader,
		OnProgress:  onProgress,
	})
	finish()
	if err != nil {
		return err
	}
	return handleExportResult(res)
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	ctx, stop := signalContext()
	defer stop()

	onProgress, finish := progressFunc("Exporting rows")
	res, err := svc.ExportJoin(ctx, ingest.JoinRequest{
		Connection: cfg.Conn,
		Join: query.JoinConfig{
			SourceTable:   sourceTable,
			JoinTable:     joinTable,
			JoinCondition: joinCondition,
		},
		Columns:     records.ParseColumns(columns),
		File:        exportFile(),
		Format:      format,
		Compression: compression,
		NoHeader:    noHeader,
		OnProgress:  onProgress,
	})
	finish()
	if err != nil {
		return err
	}
	return handleExportResult(res)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	ctx, stop := signalContext()
	defer stop()

	onProgress, finish := progressFunc("Importing rows")
	res, err := svc.Import(ctx, ingest.ImportRequest{
		Connection: cfg.Conn,
		Table:      tableName,
		Columns:    records.ParseColumns(columns),
		File:       records.FlatFileConfig{FilePath: inputPath, Delimiter: delimiter},
		OnProgress: onProgress,
	})
	finish()
	if err != nil {
		if res.Rows > 0 {
			logger.Warn("%d rows were inserted before the failure", res.Rows)
		}
		return err
	}

	logger.Success("Import completed: %d rows -> %s", res.Rows, tableName)
	return nil
}

func handleExportResult(res ingest.Result) error {
	if res.Rows == 0 {

		if failOnEmpty {
			return fmt.Errorf("export failed: query returned 0 rows")
		}

		logger.Warn("Query returned 0 rows. File created at %s but contains no data rows", res.Path)

	} else {
		logger.Success("Export completed: %d rows -> %s", res.Rows, res.Path)
	}

	return nil
}
