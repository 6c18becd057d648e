// Package boq turns parsed drawing entities into Bill-of-Quantities rows,
// validates them, aggregates them into line items and renders the Excel
// workbook.
package boq

import "dwg-boq-service/internal/dxf"

// DefaultUOM is used when neither attributes nor the catalog specify one.
const DefaultUOM = "NOS"

// Row is one normalized record per block insertion.
type Row struct {
	Block    string
	Layer    string
	ItemCode string
	Desc     string
	Size     string
	Material string
	Room     string
	Category string
	UOM      string
}

// Identity is the item code, falling back to the raw block name.
func (r Row) Identity() string {
	if r.ItemCode != "" {
		return r.ItemCode
	}
	return r.Block
}

// NewRow builds a row from an INSERT entity and applies the catalog
// mapping. Attribute tags win unless the catalog overrides them.
func NewRow(ins dxf.Insert, catalog Catalog) Row {
	attrs := ins.Attribs
	row := Row{
		Block:    ins.Block,
		Layer:    ins.Layer,
		ItemCode: firstAttr(attrs, "ITEM_CODE", "CODE"),
		Desc:     firstAttr(attrs, "DESC", "DESCRIPTION"),
		Size:     firstAttr(attrs, "SIZE"),
		Material: firstAttr(attrs, "MATERIAL"),
		Room:     firstAttr(attrs, "ROOM", "ZONE"),
		UOM:      DefaultUOM,
	}
	if row.Desc == "" {
		row.Desc = ins.Block
	}
	if entry, ok := catalog.Lookup(ins.Block); ok {
		row.ItemCode = coalesce(entry.ItemCode, row.ItemCode)
		row.Desc = coalesce(entry.Desc, row.Desc)
		row.Size = coalesce(entry.Size, row.Size)
		row.Material = coalesce(entry.Material, row.Material)
		row.Category = entry.Category
		row.UOM = coalesce(entry.UOM, DefaultUOM)
	}
	return row
}

func firstAttr(attrs map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := attrs[k]; v != "" {
			return v
		}
	}
	return ""
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
