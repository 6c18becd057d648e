package boq

import (
	"sort"
	"strings"
)

// Item is one aggregated BOQ line: identical rows collapsed into a
// quantity, with the set of layers they came from.
type Item struct {
	ItemCode   string
	Desc       string
	Size       string
	Material   string
	UOM        string
	Quantity   int
	Layers     []string
	Rooms      map[string]int // room name -> count, for the Room_Wise sheet
	Category   string
	Confidence string // high | medium | low
}

type aggKey struct {
	code, desc, size, material, uom string
}

// Aggregate groups rows by (identity, desc, size, material, uom), counts
// quantities and collects layers and per-room totals.
func Aggregate(rows []Row) []Item {
	type acc struct {
		item   *Item
		layers map[string]struct{}
	}
	groups := make(map[aggKey]*acc)
	var order []aggKey

	for _, r := range rows {
		key := aggKey{r.Identity(), r.Desc, r.Size, r.Material, r.UOM}
		g, ok := groups[key]
		if !ok {
			category, confidence := r.Category, "high"
			if category == "" {
				category, confidence = InferCategory(r.Identity())
			}
			g = &acc{
				item: &Item{
					ItemCode:   r.Identity(),
					Desc:       r.Desc,
					Size:       r.Size,
					Material:   r.Material,
					UOM:        r.UOM,
					Rooms:      make(map[string]int),
					Category:   category,
					Confidence: confidence,
				},
				layers: make(map[string]struct{}),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.item.Quantity++
		if r.Layer != "" {
			g.layers[r.Layer] = struct{}{}
		}
		if r.Room != "" {
			g.item.Rooms[r.Room]++
		}
	}

	items := make([]Item, 0, len(order))
	for _, key := range order {
		g := groups[key]
		for layer := range g.layers {
			g.item.Layers = append(g.item.Layers, layer)
		}
		sort.Strings(g.item.Layers)
		items = append(items, *g.item)
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].ItemCode) < strings.ToLower(items[j].ItemCode)
	})
	return items
}

var categoryKeywords = []struct {
	keywords []string
	category string
}{
	{[]string{"DOOR", "DOR", "PORTE"}, "Doors"},
	{[]string{"WINDOW", "WIN", "FENETRE"}, "Windows"},
	{[]string{"CHAIR", "SEAT"}, "Chairs"},
	{[]string{"TABLE", "DESK"}, "Tables"},
	{[]string{"BED"}, "Beds"},
	{[]string{"SOFA", "COUCH"}, "Sofas"},
	{[]string{"WARDROBE", "CUPBOARD"}, "Storage"},
}

// InferCategory guesses a category from the item name by keyword, with a
// confidence grade. Used only when the catalog has no mapping.
func InferCategory(name string) (category, confidence string) {
	upper := strings.ToUpper(name)
	for _, m := range categoryKeywords {
		for _, kw := range m.keywords {
			if strings.Contains(upper, kw) {
				return m.category, "high"
			}
		}
	}
	if strings.Contains(upper, "WALL") {
		return "Walls", "medium"
	}
	if strings.Contains(upper, "COLUMN") || strings.Contains(upper, "COL") {
		return "Columns", "medium"
	}
	return "Miscellaneous", "low"
}

// Stats summarizes an aggregated item list.
type Stats struct {
	TotalItems     int
	Categories     int
	HighConfidence int
}

func Summarize(items []Item) Stats {
	categories := make(map[string]struct{})
	s := Stats{TotalItems: len(items)}
	for _, it := range items {
		categories[it.Category] = struct{}{}
		if it.Confidence == "high" {
			s.HighConfidence++
		}
	}
	s.Categories = len(categories)
	return s
}
