package dxf

import "math"

// Distance is the 3D distance between two points.
func Distance(a, b Point) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PathLength sums segment lengths along points, closing the loop when
// closed is set and there are at least three vertices.
func PathLength(points []Point, closed bool) float64 {
	var length float64
	for i := 0; i+1 < len(points); i++ {
		length += Distance(points[i], points[i+1])
	}
	if closed && len(points) > 2 {
		length += Distance(points[len(points)-1], points[0])
	}
	return length
}

// PolygonArea computes the enclosed area with the shoelace formula.
func PolygonArea(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	var area float64
	for i := range points {
		j := (i + 1) % len(points)
		area += points[i].X * points[j].Y
		area -= points[j].X * points[i].Y
	}
	return math.Abs(area) / 2
}

// ArcLength is radius times the swept angle; angles are degrees and a
// negative sweep wraps around.
func ArcLength(radius, startDeg, endDeg float64) float64 {
	sweep := endDeg - startDeg
	if sweep < 0 {
		sweep += 360
	}
	return radius * sweep * math.Pi / 180
}

// Measurements are the aggregate figures reported on the Summary sheet.
type Measurements struct {
	TotalLineLength     float64
	TotalPolylineLength float64
	TotalArcLength      float64
	TotalEnclosedArea   float64
	BlockCount          int
	TextCount           int
}

// Measure computes aggregate measurements over all parsed entities.
func (d *Document) Measure() Measurements {
	var m Measurements
	for _, l := range d.Entities.Lines {
		m.TotalLineLength += Distance(l.Start, l.End)
	}
	for _, p := range d.Entities.LWPolylines {
		m.TotalPolylineLength += PathLength(p.Points, p.Closed)
		if p.Closed {
			m.TotalEnclosedArea += PolygonArea(p.Points)
		}
	}
	for _, p := range d.Entities.Polylines {
		m.TotalPolylineLength += PathLength(p.Points, p.Closed)
		if p.Closed {
			m.TotalEnclosedArea += PolygonArea(p.Points)
		}
	}
	for _, a := range d.Entities.Arcs {
		m.TotalArcLength += ArcLength(a.Radius, a.StartAngle, a.EndAngle)
	}
	m.BlockCount = len(d.Entities.Inserts)
	m.TextCount = len(d.Entities.Texts) + len(d.Entities.MTexts)
	return m
}
