package dxf

import (
	"io"
	"os"
	"strings"
)

type Point struct {
	X, Y, Z float64
}

type Header struct {
	Version     string // $ACADVER
	InsUnits    int    // $INSUNITS
	Measurement int    // $MEASUREMENT: 0=imperial, 1=metric
	ExtMin      Point  // $EXTMIN
	ExtMax      Point  // $EXTMAX
}

var unitNames = map[int]string{
	0: "Unitless", 1: "Inches", 2: "Feet", 3: "Miles",
	4: "Millimeters", 5: "Centimeters", 6: "Meters", 7: "Kilometers",
	8: "Microinches", 9: "Mils", 10: "Yards", 11: "Angstroms",
	12: "Nanometers", 13: "Microns", 14: "Decimeters",
}

// Units resolves $INSUNITS to a display name.
func (h Header) Units() string {
	if name, ok := unitNames[h.InsUnits]; ok {
		return name
	}
	return "Unknown"
}

// Bounds returns the drawing extents as width and height.
func (h Header) Bounds() (width, height float64) {
	return h.ExtMax.X - h.ExtMin.X, h.ExtMax.Y - h.ExtMin.Y
}

type Layer struct {
	Name     string
	Color    int
	LineType string
	Frozen   bool
	Locked   bool
	Off      bool
}

type AttDef struct {
	Tag     string
	Prompt  string
	Default string
	Flags   int
}

type BlockDef struct {
	Name    string
	Base    Point
	AttDefs []AttDef
}

type Document struct {
	Header   Header
	Layers   map[string]Layer
	Blocks   map[string]BlockDef
	Entities Entities
}

// ParseFile reads and parses the DXF drawing at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a full DXF stream and materializes the sections relevant to
// BOQ extraction: HEADER variables, the LAYER table, block definitions and
// modelspace entities.
func Parse(r io.Reader) (*Document, error) {
	tags, err := readTags(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Layers: make(map[string]Layer),
		Blocks: make(map[string]BlockDef),
	}

	c := &cursor{tags: tags}
	for {
		name, body, ok := c.record()
		if !ok || name == "EOF" {
			break
		}
		if name != "SECTION" {
			continue
		}
		section := ""
		for _, t := range body {
			if t.code == 2 {
				section = strings.TrimSpace(t.value)
			}
		}
		switch section {
		case "HEADER":
			doc.parseHeader(c)
		case "TABLES":
			doc.parseTables(c)
		case "BLOCKS":
			doc.parseBlocks(c)
		case "ENTITIES":
			doc.parseEntities(c)
		default:
			c.skipToEndsec()
		}
	}
	return doc, nil
}

// parseHeader scans $VARIABLE records. Header variables are 9-tags followed
// by their value tags, not 0-records, so it walks raw tags until ENDSEC.
func (d *Document) parseHeader(c *cursor) {
	current := ""
	for {
		t, ok := c.next()
		if !ok {
			return
		}
		if t.isRecordStart() && strings.TrimSpace(t.value) == "ENDSEC" {
			return
		}
		if t.code == 9 {
			current = strings.TrimSpace(t.value)
			continue
		}
		switch current {
		case "$ACADVER":
			if t.code == 1 {
				d.Header.Version = strings.TrimSpace(t.value)
			}
		case "$INSUNITS":
			if t.code == 70 {
				d.Header.InsUnits = t.int()
			}
		case "$MEASUREMENT":
			if t.code == 70 {
				d.Header.Measurement = t.int()
			}
		case "$EXTMIN":
			d.Header.ExtMin = applyCoord(d.Header.ExtMin, t)
		case "$EXTMAX":
			d.Header.ExtMax = applyCoord(d.Header.ExtMax, t)
		}
	}
}

func applyCoord(p Point, t tag) Point {
	switch t.code {
	case 10:
		p.X = t.float()
	case 20:
		p.Y = t.float()
	case 30:
		p.Z = t.float()
	}
	return p
}

func (d *Document) parseTables(c *cursor) {
	for {
		name, body, ok := c.record()
		if !ok || name == "ENDSEC" {
			return
		}
		if name != "LAYER" {
			continue
		}
		// Both the TABLE header record (2=LAYER) and each layer row start
		// with an 0/LAYER or 0/TABLE tag; rows carry a 2-tag name plus
		// color/linetype/flags.
		layer := Layer{}
		for _, t := range body {
			switch t.code {
			case 2:
				layer.Name = strings.TrimSpace(t.value)
			case 6:
				layer.LineType = strings.TrimSpace(t.value)
			case 62:
				layer.Color = t.int()
				if layer.Color < 0 {
					layer.Off = true
				}
			case 70:
				flags := t.int()
				layer.Frozen = flags&1 != 0
				layer.Locked = flags&4 != 0
			}
		}
		if layer.Name != "" {
			d.Layers[layer.Name] = layer
		}
	}
}

func (d *Document) parseBlocks(c *cursor) {
	var block *BlockDef
	for {
		name, body, ok := c.record()
		if !ok || name == "ENDSEC" {
			return
		}
		switch name {
		case "BLOCK":
			b := BlockDef{}
			for _, t := range body {
				switch t.code {
				case 2:
					b.Name = strings.TrimSpace(t.value)
				case 10:
					b.Base.X = t.float()
				case 20:
					b.Base.Y = t.float()
				case 30:
					b.Base.Z = t.float()
				}
			}
			block = &b
		case "ENDBLK":
			// Anonymous blocks (*Model_Space, *Paper_Space, hatches)
			// carry no BOQ signal.
			if block != nil && block.Name != "" && !strings.HasPrefix(block.Name, "*") {
				d.Blocks[block.Name] = *block
			}
			block = nil
		case "ATTDEF":
			if block == nil {
				continue
			}
			def := AttDef{}
			for _, t := range body {
				switch t.code {
				case 1:
					def.Default = strings.TrimSpace(t.value)
				case 2:
					def.Tag = strings.TrimSpace(t.value)
				case 3:
					def.Prompt = strings.TrimSpace(t.value)
				case 70:
					def.Flags = t.int()
				}
			}
			block.AttDefs = append(block.AttDefs, def)
		}
	}
}
