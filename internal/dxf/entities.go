package dxf

import "strings"

type Insert struct {
	Handle   string
	Block    string
	Layer    string
	At       Point
	ScaleX   float64
	ScaleY   float64
	ScaleZ   float64
	Rotation float64
	// Attribs maps upper-cased ATTRIB tags to their text values.
	Attribs map[string]string
}

type Line struct {
	Handle string
	Layer  string
	Start  Point
	End    Point
}

type LWPolyline struct {
	Handle     string
	Layer      string
	Closed     bool
	Points     []Point
	Elevation  float64
	ConstWidth float64
}

type Polyline struct {
	Handle string
	Layer  string
	Closed bool
	Points []Point
}

type Arc struct {
	Handle     string
	Layer      string
	Center     Point
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

type Circle struct {
	Handle string
	Layer  string
	Center Point
	Radius float64
}

type Text struct {
	Handle   string
	Layer    string
	Value    string
	At       Point
	Height   float64
	Rotation float64
}

type Entities struct {
	Inserts     []Insert
	Lines       []Line
	LWPolylines []LWPolyline
	Polylines   []Polyline
	Arcs        []Arc
	Circles     []Circle
	Texts       []Text
	MTexts      []Text
}

// Counts returns entity totals per type, for metrics and the summary sheet.
func (e Entities) Counts() map[string]int {
	return map[string]int{
		"insert":     len(e.Inserts),
		"line":       len(e.Lines),
		"lwpolyline": len(e.LWPolylines),
		"polyline":   len(e.Polylines),
		"arc":        len(e.Arcs),
		"circle":     len(e.Circles),
		"text":       len(e.Texts),
		"mtext":      len(e.MTexts),
	}
}

func (d *Document) parseEntities(c *cursor) {
	for {
		name, body, ok := c.record()
		if !ok || name == "ENDSEC" {
			return
		}
		switch name {
		case "INSERT":
			ins := parseInsert(body)
			if hasAttribsFlag(body) {
				ins.Attribs = parseAttribs(c)
			}
			d.Entities.Inserts = append(d.Entities.Inserts, ins)
		case "LINE":
			d.Entities.Lines = append(d.Entities.Lines, parseLine(body))
		case "LWPOLYLINE":
			d.Entities.LWPolylines = append(d.Entities.LWPolylines, parseLWPolyline(body))
		case "POLYLINE":
			d.Entities.Polylines = append(d.Entities.Polylines, parsePolyline(body, c))
		case "ARC":
			d.Entities.Arcs = append(d.Entities.Arcs, parseArc(body))
		case "CIRCLE":
			d.Entities.Circles = append(d.Entities.Circles, parseCircle(body))
		case "TEXT":
			d.Entities.Texts = append(d.Entities.Texts, parseText(body))
		case "MTEXT":
			d.Entities.MTexts = append(d.Entities.MTexts, parseMText(body))
		}
	}
}

func hasAttribsFlag(body []tag) bool {
	for _, t := range body {
		if t.code == 66 && t.int() != 0 {
			return true
		}
	}
	return false
}

func parseInsert(body []tag) Insert {
	// Scale defaults to 1 when the group codes are absent.
	ins := Insert{ScaleX: 1, ScaleY: 1, ScaleZ: 1}
	for _, t := range body {
		switch t.code {
		case 2:
			ins.Block = strings.TrimSpace(t.value)
		case 5:
			ins.Handle = strings.TrimSpace(t.value)
		case 8:
			ins.Layer = strings.TrimSpace(t.value)
		case 10:
			ins.At.X = t.float()
		case 20:
			ins.At.Y = t.float()
		case 30:
			ins.At.Z = t.float()
		case 41:
			ins.ScaleX = t.float()
		case 42:
			ins.ScaleY = t.float()
		case 43:
			ins.ScaleZ = t.float()
		case 50:
			ins.Rotation = t.float()
		}
	}
	return ins
}

// parseAttribs consumes the ATTRIB records following an INSERT up to SEQEND.
func parseAttribs(c *cursor) map[string]string {
	attrs := make(map[string]string)
	for {
		p, ok := c.peek()
		if !ok {
			return attrs
		}
		next := strings.TrimSpace(p.value)
		if next != "ATTRIB" && next != "SEQEND" {
			return attrs
		}
		name, body, _ := c.record()
		if name == "SEQEND" {
			return attrs
		}
		var attrTag, attrVal string
		for _, t := range body {
			switch t.code {
			case 1:
				attrVal = strings.TrimSpace(t.value)
			case 2:
				attrTag = strings.TrimSpace(t.value)
			}
		}
		if attrTag != "" {
			attrs[strings.ToUpper(attrTag)] = attrVal
		}
	}
}

func parseLine(body []tag) Line {
	l := Line{}
	for _, t := range body {
		switch t.code {
		case 5:
			l.Handle = strings.TrimSpace(t.value)
		case 8:
			l.Layer = strings.TrimSpace(t.value)
		case 10:
			l.Start.X = t.float()
		case 20:
			l.Start.Y = t.float()
		case 30:
			l.Start.Z = t.float()
		case 11:
			l.End.X = t.float()
		case 21:
			l.End.Y = t.float()
		case 31:
			l.End.Z = t.float()
		}
	}
	return l
}

func parseLWPolyline(body []tag) LWPolyline {
	p := LWPolyline{}
	for _, t := range body {
		switch t.code {
		case 5:
			p.Handle = strings.TrimSpace(t.value)
		case 8:
			p.Layer = strings.TrimSpace(t.value)
		case 10:
			// Each 10-tag opens a new vertex; its 20-tag follows.
			p.Points = append(p.Points, Point{X: t.float()})
		case 20:
			if len(p.Points) > 0 {
				p.Points[len(p.Points)-1].Y = t.float()
			}
		case 38:
			p.Elevation = t.float()
		case 43:
			p.ConstWidth = t.float()
		case 70:
			p.Closed = t.int()&1 != 0
		}
	}
	return p
}

// parsePolyline consumes the VERTEX records following a POLYLINE up to SEQEND.
func parsePolyline(body []tag, c *cursor) Polyline {
	p := Polyline{}
	for _, t := range body {
		switch t.code {
		case 5:
			p.Handle = strings.TrimSpace(t.value)
		case 8:
			p.Layer = strings.TrimSpace(t.value)
		case 70:
			p.Closed = t.int()&1 != 0
		}
	}
	for {
		peeked, ok := c.peek()
		if !ok {
			return p
		}
		next := strings.TrimSpace(peeked.value)
		if next != "VERTEX" && next != "SEQEND" {
			return p
		}
		name, vbody, _ := c.record()
		if name == "SEQEND" {
			return p
		}
		var pt Point
		for _, t := range vbody {
			pt = applyCoord(pt, t)
		}
		p.Points = append(p.Points, pt)
	}
}

func parseArc(body []tag) Arc {
	a := Arc{}
	for _, t := range body {
		switch t.code {
		case 5:
			a.Handle = strings.TrimSpace(t.value)
		case 8:
			a.Layer = strings.TrimSpace(t.value)
		case 10:
			a.Center.X = t.float()
		case 20:
			a.Center.Y = t.float()
		case 40:
			a.Radius = t.float()
		case 50:
			a.StartAngle = t.float()
		case 51:
			a.EndAngle = t.float()
		}
	}
	return a
}

func parseCircle(body []tag) Circle {
	ci := Circle{}
	for _, t := range body {
		switch t.code {
		case 5:
			ci.Handle = strings.TrimSpace(t.value)
		case 8:
			ci.Layer = strings.TrimSpace(t.value)
		case 10:
			ci.Center.X = t.float()
		case 20:
			ci.Center.Y = t.float()
		case 40:
			ci.Radius = t.float()
		}
	}
	return ci
}

func parseText(body []tag) Text {
	tx := Text{}
	for _, t := range body {
		switch t.code {
		case 1:
			tx.Value = strings.TrimSpace(t.value)
		case 5:
			tx.Handle = strings.TrimSpace(t.value)
		case 8:
			tx.Layer = strings.TrimSpace(t.value)
		case 10:
			tx.At.X = t.float()
		case 20:
			tx.At.Y = t.float()
		case 40:
			tx.Height = t.float()
		case 50:
			tx.Rotation = t.float()
		}
	}
	return tx
}

func parseMText(body []tag) Text {
	tx := Text{}
	var chunks, final []string
	for _, t := range body {
		switch t.code {
		case 1:
			final = append(final, t.value)
		case 3:
			// 3-tags carry the leading 250-char chunks, in stream order,
			// ahead of the closing 1-tag.
			chunks = append(chunks, t.value)
		case 5:
			tx.Handle = strings.TrimSpace(t.value)
		case 8:
			tx.Layer = strings.TrimSpace(t.value)
		case 10:
			tx.At.X = t.float()
		case 20:
			tx.At.Y = t.float()
		case 40:
			tx.Height = t.float()
		}
	}
	tx.Value = strings.TrimSpace(strings.Join(append(chunks, final...), ""))
	return tx
}
