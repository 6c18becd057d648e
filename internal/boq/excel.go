package boq

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"dwg-boq-service/internal/dxf"
)

const (
	SheetMaster     = "BOQ_Master"
	SheetRoomWise   = "Room_Wise"
	SheetExceptions = "Unmapped_Exceptions"
	SheetSummary    = "Summary"
)

// WorkbookMeta carries job context onto the Summary sheet.
type WorkbookMeta struct {
	JobID        string
	SourceFile   string
	Units        string
	Measurements dxf.Measurements
}

// WriteWorkbook renders the aggregated BOQ as an XLSX workbook and returns
// its bytes.
func WriteWorkbook(items []Item, exceptions []Exception, stats Stats, meta WorkbookMeta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMaster); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	if err := writeMaster(f, headerStyle, items); err != nil {
		return nil, err
	}
	if err := writeRoomWise(f, headerStyle, items); err != nil {
		return nil, err
	}
	if err := writeExceptions(f, headerStyle, exceptions); err != nil {
		return nil, err
	}
	if err := writeSummary(f, headerStyle, stats, meta); err != nil {
		return nil, err
	}

	var buf *bytes.Buffer
	if buf, err = f.WriteToBuffer(); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func setHeader(f *excelize.File, sheet string, style int, headers []string) error {
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", end, style)
}

func writeMaster(f *excelize.File, style int, items []Item) error {
	headers := []string{"Item Code", "Description", "Size/Spec", "Material", "UOM", "Qty", "Category", "Confidence", "Layers"}
	if err := setHeader(f, SheetMaster, style, headers); err != nil {
		return err
	}
	for i, it := range items {
		row := []any{
			it.ItemCode, it.Desc, it.Size, it.Material, it.UOM,
			it.Quantity, it.Category, it.Confidence, strings.Join(it.Layers, ", "),
		}
		if err := setRow(f, SheetMaster, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetMaster, "A", "A", 18)
	_ = f.SetColWidth(SheetMaster, "B", "B", 42)
	_ = f.SetColWidth(SheetMaster, "C", "E", 14)
	_ = f.SetColWidth(SheetMaster, "G", "I", 20)
	return nil
}

func writeRoomWise(f *excelize.File, style int, items []Item) error {
	if _, err := f.NewSheet(SheetRoomWise); err != nil {
		return err
	}
	if err := setHeader(f, SheetRoomWise, style, []string{"Room/Zone", "Item Code", "Description", "Qty"}); err != nil {
		return err
	}
	row := 2
	for _, it := range items {
		for _, room := range sortedKeys(it.Rooms) {
			if err := setRow(f, SheetRoomWise, row, []any{room, it.ItemCode, it.Desc, it.Rooms[room]}); err != nil {
				return err
			}
			row++
		}
	}
	_ = f.SetColWidth(SheetRoomWise, "A", "C", 28)
	return nil
}

func writeExceptions(f *excelize.File, style int, exceptions []Exception) error {
	if _, err := f.NewSheet(SheetExceptions); err != nil {
		return err
	}
	headers := []string{"Block", "Layer", "Item Code", "Desc", "Size", "Material", "Room", "Issue"}
	if err := setHeader(f, SheetExceptions, style, headers); err != nil {
		return err
	}
	for i, ex := range exceptions {
		row := []any{ex.Block, ex.Layer, ex.ItemCode, ex.Desc, ex.Size, ex.Material, ex.Room, ex.Issue}
		if err := setRow(f, SheetExceptions, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetExceptions, "A", "H", 18)
	return nil
}

func writeSummary(f *excelize.File, style int, stats Stats, meta WorkbookMeta) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := setHeader(f, SheetSummary, style, []string{"Metric", "Value"}); err != nil {
		return err
	}
	m := meta.Measurements
	rows := [][]any{
		{"Job ID", meta.JobID},
		{"Source File", meta.SourceFile},
		{"Drawing Units", meta.Units},
		{"Total BOQ Items", stats.TotalItems},
		{"Distinct Categories", stats.Categories},
		{"High Confidence Items", stats.HighConfidence},
		{"Block Insertions", m.BlockCount},
		{"Text Entities", m.TextCount},
		{"Total Line Length", m.TotalLineLength},
		{"Total Polyline Length", m.TotalPolylineLength},
		{"Total Arc Length", m.TotalArcLength},
		{"Total Enclosed Area", m.TotalEnclosedArea},
	}
	for i, r := range rows {
		if err := setRow(f, SheetSummary, i+2, r); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 26)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
