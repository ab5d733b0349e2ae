package grid

import (
	"geomesh/common"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/uber/h3-go/v3"
	"strconv"
)

// Cell is the 64 bit H3 index of a hexagon (or pentagon). The index encodes the resolution and the position of the
// cell, so all further information can be derived from it.
type Cell uint64

const InvalidCell Cell = 0

func (c Cell) h3() h3.H3Index {
	return h3.H3Index(c)
}

func (c Cell) String() string {
	return h3.ToString(c.h3())
}

func (c Cell) IsValid() bool {
	return c != InvalidCell && h3.IsValid(c.h3())
}

func (c Cell) Resolution() int {
	return h3.Resolution(c.h3())
}

func (c Cell) IsPentagon() bool {
	return h3.IsPentagon(c.h3())
}

// Centroid returns the center of the cell as lon/lat point.
func (c Cell) Centroid() orb.Point {
	coord := h3.ToGeo(c.h3())
	return orb.Point{coord.Longitude, coord.Latitude}
}

// Boundary returns the closed ring of the cell vertices as lon/lat points.
func (c Cell) Boundary() orb.Ring {
	boundary := h3.ToGeoBoundary(c.h3())

	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, coord := range boundary {
		ring = append(ring, orb.Point{coord.Longitude, coord.Latitude})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}

	return ring
}

// Polygon returns the boundary as polygon, e.g. for GeoJSON output.
func (c Cell) Polygon() orb.Polygon {
	return orb.Polygon{c.Boundary()}
}

// Parent returns the cell containing this cell at the next coarser resolution.
func (c Cell) Parent() (Cell, error) {
	resolution := c.Resolution()
	if resolution <= common.MinResolution {
		return InvalidCell, common.NewInvalidArgumentError("cell", "cell %s has resolution %d and therefore no parent", c.String(), resolution)
	}
	return Cell(h3.ToParent(c.h3(), resolution-1)), nil
}

// ParentAt returns the ancestor at the given (coarser or equal) resolution.
func (c Cell) ParentAt(resolution int) (Cell, error) {
	if resolution < common.MinResolution || resolution > c.Resolution() {
		return InvalidCell, common.NewInvalidArgumentError("resolution", "resolution %d must be within [0, %d] for cell %s", resolution, c.Resolution(), c.String())
	}
	if resolution == c.Resolution() {
		return c, nil
	}
	return Cell(h3.ToParent(c.h3(), resolution)), nil
}

// Children returns all cells of the next finer resolution within this cell. At the finest resolution this is empty.
func (c Cell) Children() []Cell {
	resolution := c.Resolution()
	if resolution >= common.MaxResolution {
		return []Cell{}
	}
	return fromH3(h3.ToChildren(c.h3(), resolution+1))
}

// Neighbors returns the directly adjacent cells, which are six for hexagons and five for pentagons.
func (c Cell) Neighbors() []Cell {
	var neighbors []Cell
	for _, n := range h3.KRing(c.h3(), 1) {
		if Cell(n) != c && Cell(n) != InvalidCell {
			neighbors = append(neighbors, Cell(n))
		}
	}
	return neighbors
}

// CellFromString parses the hexadecimal representation of a cell (e.g. "85283473fffffff").
func CellFromString(s string) (Cell, error) {
	value, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return InvalidCell, common.NewInvalidArgumentError("cell", "'%s' is not a hexadecimal cell ID", s)
	}

	cell := Cell(value)
	if !cell.IsValid() {
		return InvalidCell, common.NewInvalidArgumentError("cell", "'%s' is not a valid cell ID", s)
	}

	return cell, nil
}

// CellForPoint returns the cell of the given resolution that contains the point.
func CellForPoint(lat float64, lon float64, resolution int) (Cell, error) {
	if err := ValidateCoordinate(lat, lon); err != nil {
		return InvalidCell, err
	}
	if err := ValidateResolution(resolution); err != nil {
		return InvalidCell, err
	}

	return Cell(h3.FromGeo(h3.GeoCoord{Latitude: lat, Longitude: lon}, resolution)), nil
}

// DistanceKm returns the great-circle distance between two lon/lat points in kilometers.
func DistanceKm(a orb.Point, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / 1000
}

// Distance returns the great-circle distance between the centroids of both cells in kilometers.
func Distance(a Cell, b Cell) float64 {
	return DistanceKm(a.Centroid(), b.Centroid())
}

func ValidateResolution(resolution int) error {
	if resolution < common.MinResolution || resolution > common.MaxResolution {
		return common.NewInvalidArgumentError("resolution", "resolution %d must be within [%d, %d]", resolution, common.MinResolution, common.MaxResolution)
	}
	return nil
}

func ValidateCoordinate(lat float64, lon float64) error {
	if !(lat >= -90 && lat <= 90) {
		return common.NewInvalidArgumentError(common.LatitudeCol, "latitude %f must be within [-90, 90]", lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return common.NewInvalidArgumentError(common.LongitudeCol, "longitude %f must be within [-180, 180]", lon)
	}
	return nil
}

func fromH3(indices []h3.H3Index) []Cell {
	cells := make([]Cell, 0, len(indices))
	for _, index := range indices {
		if Cell(index) != InvalidCell {
			cells = append(cells, Cell(index))
		}
	}
	return cells
}
