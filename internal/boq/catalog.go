package boq

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CatalogEntry maps a raw CAD block name to standardized item fields.
type CatalogEntry struct {
	BlockName string
	ItemCode  string
	Desc      string
	Size      string
	Material  string
	Category  string
	UOM       string
}

// Catalog is keyed by upper-cased raw block name.
type Catalog map[string]CatalogEntry

// Lookup is case-insensitive on the block name.
func (c Catalog) Lookup(block string) (CatalogEntry, bool) {
	entry, ok := c[strings.ToUpper(block)]
	return entry, ok
}

// LoadCatalog reads the catalog_map.csv file. A missing file is not an
// error: extraction then falls back entirely to drawing attributes.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return Catalog{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// ReadCatalog parses catalog CSV with a header row naming the columns
// raw_block_name, std_item_code, std_desc, std_size, std_material,
// std_category, std_uom.
func ReadCatalog(r io.Reader) (Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	catalog := Catalog{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog row: %w", err)
		}
		raw := strings.ToUpper(field(rec, "raw_block_name"))
		if raw == "" {
			continue
		}
		catalog[raw] = CatalogEntry{
			BlockName: raw,
			ItemCode:  field(rec, "std_item_code"),
			Desc:      field(rec, "std_desc"),
			Size:      field(rec, "std_size"),
			Material:  field(rec, "std_material"),
			Category:  field(rec, "std_category"),
			UOM:       field(rec, "std_uom"),
		}
	}
	return catalog, nil
}
