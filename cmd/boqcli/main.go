// boqcli extracts a bill of quantities from a drawing without the web
// service: convert, parse and write the workbook in one shot.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dwg-boq-service/internal/boq"
	"dwg-boq-service/internal/config"
	"dwg-boq-service/internal/dxf"
	"dwg-boq-service/internal/infra/convert"
	"dwg-boq-service/internal/infra/logging"
)

var (
	catalogPath   string
	outPath       string
	converterKind string
	converterBin  string
	dxfVersion    string
	timeout       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "boqcli",
	Short: "Extract a bill of quantities from DWG/DXF drawings",
}

var extractCmd = &cobra.Command{
	Use:   "extract drawing",
	Short: "Convert a drawing and write the BOQ workbook",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runExtract(cmd.Context(), args[0]); err != nil {
			log.Fatalf("extract: %v", err)
		}
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect drawing.dxf",
	Short: "Print entity counts and measurements for a DXF file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(args[0]); err != nil {
			log.Fatalf("inspect: %v", err)
		}
	},
}

func init() {
	extractCmd.Flags().StringVar(&catalogPath, "catalog", "", "path to catalog_map.csv")
	extractCmd.Flags().StringVarP(&outPath, "out", "o", "BOQ_Output.xlsx", "output workbook path")
	extractCmd.Flags().StringVar(&converterKind, "converter", "libredwg", "DWG converter: libredwg | oda")
	extractCmd.Flags().StringVar(&converterBin, "converter-bin", "", "explicit converter binary path")
	extractCmd.Flags().StringVar(&dxfVersion, "dxf-version", "ACAD2018", "target DXF version")
	extractCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "converter timeout")
	rootCmd.AddCommand(extractCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExtract(ctx context.Context, inPath string) error {
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)

	dxfPath := inPath
	if strings.ToLower(filepath.Ext(inPath)) != ".dxf" {
		conv, err := convert.NewExternalConverter(config.ConverterConfig{
			Kind:       converterKind,
			Bin:        converterBin,
			DXFVersion: dxfVersion,
			Timeout:    timeout,
		}, logger)
		if err != nil {
			return err
		}
		tmpDir, err := os.MkdirTemp("", "boqcli-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)
		dxfPath, err = conv.Convert(ctx, inPath, tmpDir)
		if err != nil {
			return err
		}
	}

	doc, err := dxf.ParseFile(dxfPath)
	if err != nil {
		return fmt.Errorf("parse dxf: %w", err)
	}

	catalog, err := boq.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}

	rows := make([]boq.Row, 0, len(doc.Entities.Inserts))
	for _, ins := range doc.Entities.Inserts {
		rows = append(rows, boq.NewRow(ins, catalog))
	}
	exceptions := boq.Validate(rows)
	items := boq.Aggregate(rows)
	stats := boq.Summarize(items)

	data, err := boq.WriteWorkbook(items, exceptions, stats, boq.WorkbookMeta{
		SourceFile:   filepath.Base(inPath),
		Units:        doc.Header.Units(),
		Measurements: doc.Measure(),
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d rows, %d items, %d exceptions\n", outPath, len(rows), len(items), len(exceptions))
	return nil
}

func runInspect(path string) error {
	doc, err := dxf.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parse dxf: %w", err)
	}

	fmt.Printf("version:  %s\n", doc.Header.Version)
	fmt.Printf("units:    %s\n", doc.Header.Units())
	fmt.Printf("layers:   %d\n", len(doc.Layers))
	fmt.Printf("blocks:   %d\n", len(doc.Blocks))
	for entityType, n := range doc.Entities.Counts() {
		fmt.Printf("%-9s %d\n", entityType+":", n)
	}

	m := doc.Measure()
	fmt.Printf("line length:     %.3f\n", m.TotalLineLength)
	fmt.Printf("polyline length: %.3f\n", m.TotalPolylineLength)
	fmt.Printf("arc length:      %.3f\n", m.TotalArcLength)
	fmt.Printf("enclosed area:   %.3f\n", m.TotalEnclosedArea)
	return nil
}
