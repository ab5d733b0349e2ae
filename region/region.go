package region

import (
	"geomesh/common"
	"geomesh/grid"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"math"
	"time"
)

// Polygon is one named (multi-)polygon of a polygon set, e.g. one country of a country shapefile.
type Polygon struct {
	Name     string
	Geometry orb.MultiPolygon
}

// Region is the selection of either all polygons of a polygon set or all polygons with one specific name. All
// point-in-polygon decisions, during loading and querying, are made by this type.
type Region struct {
	Source   string
	Name     string
	polygons []Polygon
	bound    orb.Bound
}

// New selects the polygons with the given name or all polygons when the name is empty.
func New(polygons []Polygon, name string, source string) (*Region, error) {
	var selected []Polygon
	for _, p := range polygons {
		if name == "" || p.Name == name {
			selected = append(selected, p)
		}
	}

	if len(selected) == 0 {
		return nil, common.NewRegionNotFoundError(name, source)
	}

	bound := selected[0].Geometry.Bound()
	for _, p := range selected[1:] {
		bound = bound.Union(p.Geometry.Bound())
	}

	sigolo.Debugf("Selected %d of %d polygons from '%s' for region '%s'", len(selected), len(polygons), source, name)

	return &Region{
		Source:   source,
		Name:     name,
		polygons: selected,
		bound:    bound,
	}, nil
}

// FromBound creates a region consisting of the rectangle of the given bound.
func FromBound(bound orb.Bound) *Region {
	return &Region{
		Source:   "bounding box",
		polygons: []Polygon{{Geometry: orb.MultiPolygon{bound.ToPolygon()}}},
		bound:    bound,
	}
}

func (r *Region) Bound() orb.Bound {
	return r.bound
}

func (r *Region) Polygons() []Polygon {
	return r.polygons
}

// Contains returns true when the point lies inside or on the boundary of at least one selected polygon. Points within
// a hole are outside, points on the boundary of a hole are inside.
func (r *Region) Contains(lat float64, lon float64) bool {
	return r.containsPoint(orb.Point{lon, lat})
}

func (r *Region) containsPoint(point orb.Point) bool {
	if !r.bound.Contains(point) {
		return false
	}

	for _, p := range r.polygons {
		for _, polygon := range p.Geometry {
			if polygonContains(polygon, point) {
				return true
			}
		}
	}

	return false
}

// CellIntersects returns true when the centroid or a boundary vertex of the cell lies within the region or when a
// polygon vertex lies within the cell. The vertex tests are needed for small polygons and cells crossing polygon edges
// without any centroid being inside.
func (r *Region) CellIntersects(cell grid.Cell) bool {
	cellBound := cellLonLatBound(cell)
	if !boundsIntersect(cellBound, r.bound) {
		return false
	}

	if r.containsPoint(cell.Centroid()) {
		return true
	}

	for _, vertex := range cell.Boundary() {
		if r.containsPoint(vertex) {
			return true
		}
	}

	for _, p := range r.polygons {
		for _, polygon := range p.Geometry {
			for _, ring := range polygon {
				for _, vertex := range ring {
					if boundContains(cellBound, vertex) && cellContains(cell, vertex) {
						return true
					}
				}
			}
		}
	}

	return false
}

// cellLonLatBound returns the bound of the cell. Cells crossing the antimeridian get a bound with a maximum longitude
// above 180° and cells containing a pole get a bound covering all longitudes.
func cellLonLatBound(cell grid.Cell) orb.Bound {
	boundary := cell.Boundary()
	bound := boundary.Bound()
	if bound.Max.Lon()-bound.Min.Lon() <= 180 {
		return bound
	}

	northPole, err := grid.CellForPoint(90, 0, cell.Resolution())
	if err == nil && northPole == cell {
		return orb.Bound{Min: orb.Point{-180, bound.Min.Lat()}, Max: orb.Point{180, 90}}
	}
	southPole, err := grid.CellForPoint(-90, 0, cell.Resolution())
	if err == nil && southPole == cell {
		return orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, bound.Max.Lat()}}
	}

	unwrapped := make(orb.Ring, len(boundary))
	for i, vertex := range boundary {
		unwrapped[i] = unwrapLon(vertex)
	}
	return unwrapped.Bound()
}

// unwrapLon moves points of the western hemisphere by 360° to the east.
func unwrapLon(point orb.Point) orb.Point {
	if point.Lon() < 0 {
		return orb.Point{point.Lon() + 360, point.Lat()}
	}
	return point
}

func boundsIntersect(cellBound orb.Bound, other orb.Bound) bool {
	if cellBound.Intersects(other) {
		return true
	}
	if cellBound.Max.Lon() > 180 {
		shifted := orb.Bound{
			Min: orb.Point{other.Min.Lon() + 360, other.Min.Lat()},
			Max: orb.Point{other.Max.Lon() + 360, other.Max.Lat()},
		}
		return cellBound.Intersects(shifted)
	}
	return false
}

func boundContains(cellBound orb.Bound, point orb.Point) bool {
	if cellBound.Contains(point) {
		return true
	}
	return cellBound.Max.Lon() > 180 && cellBound.Contains(unwrapLon(point))
}

// cellContains uses the grid itself to decide whether the point lies within the cell.
func cellContains(cell grid.Cell, point orb.Point) bool {
	pointCell, err := grid.CellForPoint(point.Lat(), point.Lon(), cell.Resolution())
	return err == nil && pointCell == cell
}

// CandidateCells returns all cells of the given resolution intersecting the region, sorted by ID.
func (r *Region) CandidateCells(resolution int) ([]grid.Cell, error) {
	startTime := time.Now()

	var candidates []grid.Cell
	var err error

	if resolution < 2 {
		// Cells are so large, that checking all of them is cheaper than any clever selection.
		candidates, err = grid.AllCells(resolution)
		if err != nil {
			return nil, err
		}
	} else {
		candidateSet := map[grid.Cell]bool{}
		buffer := grid.Buffer(resolution)

		for _, p := range r.polygons {
			bound := p.Geometry.Bound().Pad(buffer)
			cells, err := grid.PolyfillBound(bound, resolution)
			if err != nil {
				return nil, err
			}
			for _, c := range cells {
				candidateSet[c] = true
			}

			for _, polygon := range p.Geometry {
				for _, ring := range polygon {
					for _, vertex := range ring {
						c, err := grid.CellForPoint(vertex.Lat(), vertex.Lon(), resolution)
						if err != nil {
							return nil, err
						}
						candidateSet[c] = true
					}
				}
			}
		}

		for c := range candidateSet {
			candidates = append(candidates, c)
		}
	}

	var result []grid.Cell
	for _, c := range candidates {
		if r.CellIntersects(c) {
			result = append(result, c)
		}
	}
	grid.SortCells(result)

	sigolo.Debugf("Found %d of %d candidate cells at resolution %d for region '%s' in %s", len(result), len(candidates), resolution, r.Name, time.Since(startTime))

	return result, nil
}

func polygonContains(polygon orb.Polygon, point orb.Point) bool {
	if len(polygon) == 0 || !planar.RingContains(polygon[0], point) {
		return false
	}

	for _, hole := range polygon[1:] {
		if planar.RingContains(hole, point) && !onRing(hole, point) {
			return false
		}
	}

	return true
}

func onRing(ring orb.Ring, point orb.Point) bool {
	const epsilon = 1e-12

	for i := 0; i+1 < len(ring); i++ {
		a, b := ring[i], ring[i+1]

		cross := (b.Lon()-a.Lon())*(point.Lat()-a.Lat()) - (b.Lat()-a.Lat())*(point.Lon()-a.Lon())
		if math.Abs(cross) > epsilon {
			continue
		}

		if point.Lon() >= math.Min(a.Lon(), b.Lon())-epsilon && point.Lon() <= math.Max(a.Lon(), b.Lon())+epsilon &&
			point.Lat() >= math.Min(a.Lat(), b.Lat())-epsilon && point.Lat() <= math.Max(a.Lat(), b.Lat())+epsilon {
			return true
		}
	}

	return false
}
