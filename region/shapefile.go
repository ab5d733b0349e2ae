package region

import (
	"github.com/hauke96/sigolo/v2"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"strings"
)

const DefaultNameField = "name"

// LoadShapefile reads all polygons of the shapefile and selects the given region from them (all polygons when the
// region is empty).
func LoadShapefile(path string, nameField string, regionName string) (*Region, error) {
	polygons, err := Load(path, nameField)
	if err != nil {
		return nil, err
	}
	return New(polygons, regionName, path)
}

// Load reads all polygon shapes of the shapefile. The name of each polygon is taken from the attribute nameField. The
// coordinates are expected to be WGS84 longitude (X) and latitude (Y).
func Load(path string, nameField string) ([]Polygon, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open shapefile %s", path)
	}
	defer reader.Close()

	nameFieldIndex := -1
	for i, field := range reader.Fields() {
		if strings.EqualFold(field.String(), nameField) {
			nameFieldIndex = i
			break
		}
	}
	if nameFieldIndex == -1 {
		sigolo.Warnf("Shapefile %s has no attribute '%s', all polygons will be unnamed", path, nameField)
	}

	var polygons []Polygon
	for reader.Next() {
		n, shape := reader.Shape()

		var parts []int32
		var points []shp.Point
		switch s := shape.(type) {
		case *shp.Polygon:
			parts, points = s.Parts, s.Points
		case *shp.PolygonZ:
			parts, points = s.Parts, s.Points
		case *shp.PolygonM:
			parts, points = s.Parts, s.Points
		default:
			sigolo.Debugf("Skip shape %d of type %T in %s", n, shape, path)
			continue
		}

		name := ""
		if nameFieldIndex != -1 {
			name = strings.TrimSpace(reader.ReadAttribute(n, nameFieldIndex))
		}

		polygons = append(polygons, Polygon{
			Name:     name,
			Geometry: toMultiPolygon(parts, points),
		})
	}

	sigolo.Debugf("Read %d polygons from %s", len(polygons), path)
	return polygons, nil
}

// toMultiPolygon splits the shape into its rings. Shapefiles store outer rings clockwise and holes counter-clockwise,
// each hole is assigned to the outer ring containing it.
func toMultiPolygon(parts []int32, points []shp.Point) orb.MultiPolygon {
	var outerRings []orb.Ring
	var holes []orb.Ring

	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start >= end {
			continue
		}

		ring := make(orb.Ring, 0, end-start+1)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}

		if ring.Orientation() == orb.CCW {
			holes = append(holes, ring)
		} else {
			outerRings = append(outerRings, ring)
		}
	}

	var multiPolygon orb.MultiPolygon
	for _, ring := range outerRings {
		multiPolygon = append(multiPolygon, orb.Polygon{ring})
	}

	for _, hole := range holes {
		assigned := false
		for i, polygon := range multiPolygon {
			if planar.RingContains(polygon[0], hole[0]) {
				multiPolygon[i] = append(multiPolygon[i], hole)
				assigned = true
				break
			}
		}
		if !assigned {
			// Wrongly oriented outer ring
			multiPolygon = append(multiPolygon, orb.Polygon{hole})
		}
	}

	return multiPolygon
}
