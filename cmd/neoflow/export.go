package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"neoflow/internal/domain"
	"neoflow/internal/export"
)

func exportCommand() *Command {
	c := &Command{
		Name:        "export",
		Description: "Export documents and extraction results as CSV or XLSX",
		Usage:       "neoflow export [--format csv|xlsx] [--status s] [--type t] [--out file]",
		Examples:    []string{"neoflow export --format xlsx --status completed"},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		format := fs.String("format", "csv", "output format: csv or xlsx")
		status := fs.String("status", "", "only documents with this status")
		docType := fs.String("type", "", "only documents of this type")
		out := fs.String("out", "", "output file (default <status>_<date>.<format>)")
		if err := parse(fs, args, 0, ""); err != nil {
			return quiet(err)
		}
		if *format != "csv" && *format != "xlsx" {
			return fmt.Errorf("invalid format: %s (use 'csv' or 'xlsx')", *format)
		}
		filter := domain.ListFilter{Page: 1, Limit: 100, Status: domain.DocumentStatus(*status), DocumentType: *docType}

		records, err := export.Collect(ctx, e.docs, filter)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if *format == "xlsx" {
			err = export.WriteXLSX(&buf, records)
		} else {
			err = export.WriteCSV(&buf, records)
		}
		if err != nil {
			return fmt.Errorf("writing export: %w", err)
		}

		path := *out
		if path == "" {
			name := *status
			if name == "" {
				name = "documents"
			}
			path = export.BuildFilename(name, *format, time.Now())
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		e.printf("%s\t%d documents\n", path, len(records))
		return nil
	}
	return c
}
