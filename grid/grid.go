package grid

import (
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v3"
	"math"
	"sort"
)

// Number of base cells at resolution 0.
const numBaseCells = 122

// Average hexagon edge length in km per resolution.
var averageEdgeKm = [common.MaxResolution + 1]float64{
	1107.712591,
	418.6760055,
	158.2446558,
	59.81085794,
	22.6063794,
	8.544408276,
	3.229482772,
	1.220629759,
	0.461354684,
	0.174375668,
	0.065907807,
	0.024910561,
	0.009415526,
	0.003559893,
	0.001348575,
	0.000509713,
}

// Average cell area in km² per resolution.
var averageAreaKm2 = [common.MaxResolution + 1]float64{
	4357449.416078381,
	609788.441794133,
	86801.780398997,
	12393.434655088,
	1770.347654491,
	252.903858182,
	36.129062164,
	5.161293360,
	0.737327598,
	0.105332513,
	0.015047502,
	0.002149643,
	0.000307092,
	0.000043870,
	0.000006267,
	0.000000895,
}

func AverageEdgeKm(resolution int) float64 {
	return averageEdgeKm[clampResolution(resolution)]
}

func AverageAreaKm2(resolution int) float64 {
	return averageAreaKm2[clampResolution(resolution)]
}

// Buffer returns the amount of degrees a polygon bound has to be extended by, so that a polyfill of the extended bound
// also covers cells whose centroid lies outside the polygon but whose area still overlaps it. Below resolution 2 the
// cells are so large that all cells are candidates anyway.
func Buffer(resolution int) float64 {
	if resolution < 2 {
		return 0
	}
	return math.Sqrt(AverageAreaKm2(resolution)/math.Pi) / 110 * 1.5
}

func clampResolution(resolution int) int {
	return max(common.MinResolution, min(common.MaxResolution, resolution))
}

// Res0Cells returns the 122 base cells, sorted by their ID.
func Res0Cells() []Cell {
	var cells []Cell
	for baseCell := uint64(0); baseCell < numBaseCells; baseCell++ {
		// Mode 1 (cell), resolution 0, all 15 digits unused (= 7).
		cell := Cell(0x0800000000000000 | baseCell<<45 | 0x00001fffffffffff)
		if !cell.IsValid() {
			sigolo.Warnf("Base cell %d resulted in invalid cell %s", baseCell, cell.String())
			continue
		}
		cells = append(cells, cell)
	}
	return cells
}

// AllCells returns every cell of the given resolution, sorted by ID. Since the number of cells grows by a factor of
// seven per resolution, this is only feasible for coarse resolutions.
func AllCells(resolution int) ([]Cell, error) {
	if err := ValidateResolution(resolution); err != nil {
		return nil, err
	}

	var cells []Cell
	for _, baseCell := range Res0Cells() {
		if resolution == common.MinResolution {
			cells = append(cells, baseCell)
			continue
		}
		cells = append(cells, fromH3(h3.ToChildren(baseCell.h3(), resolution))...)
	}

	SortCells(cells)
	return cells, nil
}

// CellsWithinRadius returns all cells of the given resolution whose centroid is at most radiusKm away from the
// center, sorted by ID. The search starts at the cell containing the center and expands through neighbors as long as
// the neighbor might still have further cells within the radius behind it.
func CellsWithinRadius(lat float64, lon float64, radiusKm float64, resolution int) ([]Cell, error) {
	if math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil, common.NewInvalidArgumentError("radius", "radius %f must not be negative", radiusKm)
	}

	start, err := CellForPoint(lat, lon, resolution)
	if err != nil {
		return nil, err
	}

	center := orb.Point{lon, lat}
	expandLimitKm := radiusKm + 4*AverageEdgeKm(resolution)

	var result []Cell
	visited := map[Cell]bool{start: true}
	queue := []Cell{start}

	for len(queue) > 0 {
		cell := queue[0]
		queue = queue[1:]

		distance := DistanceKm(center, cell.Centroid())
		if distance <= radiusKm {
			result = append(result, cell)
		}
		if distance > expandLimitKm && cell != start {
			continue
		}

		for _, neighbor := range cell.Neighbors() {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	sigolo.Tracef("Found %d cells at resolution %d within %fkm around (%f, %f), visited %d cells", len(result), resolution, radiusKm, lat, lon, len(visited))

	SortCells(result)
	return result, nil
}

// PolyfillBound returns all cells of the given resolution whose centroid lies within the bound.
func PolyfillBound(bound orb.Bound, resolution int) ([]Cell, error) {
	if err := ValidateResolution(resolution); err != nil {
		return nil, err
	}

	minLat := math.Max(bound.Min.Lat(), -90)
	maxLat := math.Min(bound.Max.Lat(), 90)
	minLon := math.Max(bound.Min.Lon(), -180)
	maxLon := math.Min(bound.Max.Lon(), 180)

	polygon := h3.GeoPolygon{
		Geofence: []h3.GeoCoord{
			{Latitude: minLat, Longitude: minLon},
			{Latitude: minLat, Longitude: maxLon},
			{Latitude: maxLat, Longitude: maxLon},
			{Latitude: maxLat, Longitude: minLon},
		},
	}

	cells := fromH3(h3.Polyfill(polygon, resolution))
	SortCells(cells)
	return cells, nil
}

func SortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool {
		return cells[i] < cells[j]
	})
}
