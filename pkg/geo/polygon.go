package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Polygon is a closed ring of coordinates. The first and last vertex may be
// equal; Contains handles both open and closed rings.
type Polygon struct {
	Vertices []Point
}

// ParseWKTPolygon parses a WKT POLYGON with a single outer ring, e.g.
// "POLYGON((-83.1 42.3, -83.0 42.3, -83.0 42.4, -83.1 42.4, -83.1 42.3))".
// WKT order is lon lat.
func ParseWKTPolygon(wkt string) (*Polygon, error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POLYGON") {
		return nil, fmt.Errorf("not a WKT polygon: %q", truncate(s, 32))
	}
	s = strings.TrimSpace(s[len("POLYGON"):])

	open := strings.Index(s, "((")
	closeIdx := strings.LastIndex(s, "))")
	if open < 0 || closeIdx < 0 || closeIdx <= open {
		return nil, fmt.Errorf("malformed polygon ring: %q", truncate(s, 32))
	}
	ring := s[open+2 : closeIdx]

	// Interior rings are not supported; reject rather than silently drop.
	if strings.Contains(ring, "(") {
		return nil, fmt.Errorf("polygons with interior rings are not supported")
	}

	pairs := strings.Split(ring, ",")
	if len(pairs) < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 vertices, got %d", len(pairs))
	}

	poly := &Polygon{Vertices: make([]Point, 0, len(pairs))}
	for _, pair := range pairs {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed vertex %q", truncate(pair, 32))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse latitude %q: %w", fields[1], err)
		}
		poly.Vertices = append(poly.Vertices, Point{Lat: lat, Lon: lon})
	}
	return poly, nil
}

// Contains reports whether the point lies inside the polygon, using the
// ray-casting method. Points exactly on an edge may fall either way.
func (p *Polygon) Contains(pt Point) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := p.Vertices[i], p.Vertices[j]
		if (vi.Lat > pt.Lat) != (vj.Lat > pt.Lat) {
			cross := (vj.Lon-vi.Lon)*(pt.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if pt.Lon < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
