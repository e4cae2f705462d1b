package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/records"
	"github.com/spf13/cobra"
)

var previewFile string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the configured database",
	RunE:  runTables,
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Describe the columns of a table",
	RunE:  runColumns,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the first 100 rows of a table or a delimited file",
	Example: `  chxport preview -t users -c id,name
  chxport preview --file users.csv -c id,name -D ";"`,
	RunE: runPreview,
}

func init() {
	columnsCmd.Flags().StringVarP(&tableName, "table", "t", "", "Table to describe (required)")
	mustRequire(columnsCmd, "table")

	f := previewCmd.Flags()
	f.StringVarP(&tableName, "table", "t", "", "Table to preview")
	f.StringVar(&previewFile, "file", "", "Delimited file to preview")
	f.StringVarP(&columns, "columns", "c", "", "Comma separated columns (required)")
	f.StringVarP(&delimiter, "delimiter", "D", ",", "File delimiter character")
	previewCmd.MarkFlagsMutuallyExclusive("table", "file")
	previewCmd.MarkFlagsOneRequired("table", "file")
	mustRequire(previewCmd, "columns")
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	tables, err := svc.ListTables(context.Background(), cfg.Conn)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Println(t)
	}
	return nil
}

func runColumns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	cols, err := svc.ListColumns(context.Background(), cfg.Conn, tableName)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range cols {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Type)
	}
	return tw.Flush()
}

func runPreview(cmd *cobra.Command, args []string) error {
	cols := records.ParseColumns(columns)

	if previewFile != "" {
		// File previews never reach the store.
		svc := ingest.NewService(nil, nil)

		recs, err := svc.PreviewFile(records.FlatFileConfig{FilePath: previewFile, Delimiter: delimiter}, cols)
		if err != nil {
			return err
		}
		rows := make([][]string, len(recs))
		for i, rec := range recs {
			for _, v := range rec.Values(cols) {
				if v == nil {
					rows[i] = append(rows[i], "NULL")
				} else {
					rows[i] = append(rows[i], *v)
				}
			}
		}
		return printTable(cols, rows)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, closeStore := newService(cfg)
	defer closeStore()

	rows, err := svc.PreviewStore(context.Background(), cfg.Conn, tableName, cols)
	if err != nil {
		return err
	}
	return printTable(cols, rows)
}

func printTable(cols records.ColumnSelection, rows [][]string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
