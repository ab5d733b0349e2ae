package region

import (
	"geomesh/common"
	"geomesh/grid"
	"geomesh/util"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"path/filepath"
	"testing"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.Ring {
	// clockwise, as in shapefiles
	return orb.Ring{{minLon, minLat}, {minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat}, {minLon, minLat}}
}

func testPolygons() []Polygon {
	return []Polygon{
		{Name: "A", Geometry: orb.MultiPolygon{{square(0, 0, 10, 10), square(4, 4, 6, 6)}}},
		{Name: "B", Geometry: orb.MultiPolygon{{square(20, 20, 21, 21)}}},
	}
}

func TestNew_unknownRegion(t *testing.T) {
	// Act
	_, err := New(testPolygons(), "C", "test.shp")

	// Assert
	regionErr := util.AssertErrorType[*common.RegionNotFoundError](t, err)
	util.AssertEqual(t, "C", regionErr.Region)
}

func TestContains(t *testing.T) {
	// Arrange
	all, err := New(testPolygons(), "", "test")
	util.AssertNil(t, err)
	onlyB, err := New(testPolygons(), "B", "test")
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertTrue(t, all.Contains(1, 1))
	util.AssertTrue(t, all.Contains(20.5, 20.5))
	util.AssertFalse(t, all.Contains(15, 15))
	util.AssertFalse(t, onlyB.Contains(1, 1))
	util.AssertTrue(t, onlyB.Contains(20.5, 20.5))
}

func TestContains_boundaryAndHoles(t *testing.T) {
	// Arrange
	r, err := New(testPolygons(), "A", "test")
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertTrue(t, r.Contains(0, 5))
	util.AssertTrue(t, r.Contains(10, 10))
	util.AssertFalse(t, r.Contains(5, 5))
	util.AssertTrue(t, r.Contains(4, 5))
}

func TestCellIntersects(t *testing.T) {
	// Arrange
	r, err := New(testPolygons(), "", "test")
	util.AssertNil(t, err)

	inside, err := grid.CellForPoint(2, 2, 6)
	util.AssertNil(t, err)
	outside, err := grid.CellForPoint(-5, -5, 6)
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertTrue(t, r.CellIntersects(inside))
	util.AssertFalse(t, r.CellIntersects(outside))
}

func TestCellIntersects_tinyPolygonWithinLargeCell(t *testing.T) {
	// Arrange
	tiny := []Polygon{{Name: "tiny", Geometry: orb.MultiPolygon{{square(30.001, 30.001, 30.002, 30.002)}}}}
	r, err := New(tiny, "", "test")
	util.AssertNil(t, err)
	cell, err := grid.CellForPoint(30.0015, 30.0015, 3)
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertFalse(t, r.Contains(cell.Centroid().Lat(), cell.Centroid().Lon()))
	util.AssertTrue(t, r.CellIntersects(cell))
}

func TestCandidateCells(t *testing.T) {
	// Arrange
	r, err := New(testPolygons(), "B", "test")
	util.AssertNil(t, err)

	// Act
	cells, err := r.CandidateCells(5)

	// Assert
	util.AssertNil(t, err)
	util.AssertTrue(t, len(cells) > 0)
	for i, c := range cells {
		util.AssertTrue(t, r.CellIntersects(c))
		if i > 0 {
			util.AssertTrue(t, cells[i-1] < c)
		}
	}

	centerCell, err := grid.CellForPoint(20.5, 20.5, 5)
	util.AssertNil(t, err)
	found := false
	for _, c := range cells {
		if c == centerCell {
			found = true
		}
	}
	util.AssertTrue(t, found)
}

func TestCandidateCells_coarseResolution(t *testing.T) {
	// Arrange
	r, err := New(testPolygons(), "", "test")
	util.AssertNil(t, err)

	// Act
	cells, err := r.CandidateCells(0)

	// Assert
	util.AssertNil(t, err)
	util.AssertTrue(t, len(cells) >= 1)
	for _, c := range cells {
		util.AssertEqual(t, 0, c.Resolution())
	}
}

func TestCandidateCells_coarseResolutionExcludesAntimeridianCells(t *testing.T) {
	// Arrange
	small := []Polygon{{Name: "small", Geometry: orb.MultiPolygon{{square(10, 10, 11, 11)}}}}
	r, err := New(small, "", "test")
	util.AssertNil(t, err)

	for _, resolution := range []int{0, 1} {
		// Act
		cells, err := r.CandidateCells(resolution)

		// Assert
		util.AssertNil(t, err)
		centerCell, err := grid.CellForPoint(10.5, 10.5, resolution)
		util.AssertNil(t, err)
		found := false
		for _, c := range cells {
			util.AssertTrue(t, grid.DistanceKm(c.Centroid(), orb.Point{10.5, 10.5}) < 2500)
			if c == centerCell {
				found = true
			}
		}
		util.AssertTrue(t, found)
	}
}

func TestCellIntersects_acrossAntimeridian(t *testing.T) {
	// Arrange
	east, err := New([]Polygon{{Name: "east", Geometry: orb.MultiPolygon{{square(179.5, 10, 179.9, 11)}}}}, "", "test")
	util.AssertNil(t, err)
	west, err := New([]Polygon{{Name: "west", Geometry: orb.MultiPolygon{{square(-179.9, 10, -179.5, 11)}}}}, "", "test")
	util.AssertNil(t, err)
	far, err := New([]Polygon{{Name: "far", Geometry: orb.MultiPolygon{{square(10, 10, 11, 11)}}}}, "", "test")
	util.AssertNil(t, err)

	eastCell, err := grid.CellForPoint(10.5, 179.7, 1)
	util.AssertNil(t, err)
	westCell, err := grid.CellForPoint(10.5, -179.7, 1)
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertTrue(t, east.CellIntersects(eastCell))
	util.AssertTrue(t, west.CellIntersects(westCell))
	util.AssertFalse(t, far.CellIntersects(eastCell))
	util.AssertFalse(t, far.CellIntersects(westCell))
}

func TestCellIntersects_polarCell(t *testing.T) {
	// Arrange
	arctic, err := New([]Polygon{{Name: "arctic", Geometry: orb.MultiPolygon{{square(-100, 89, -99, 89.5)}}}}, "", "test")
	util.AssertNil(t, err)
	poleCell, err := grid.CellForPoint(90, 0, 1)
	util.AssertNil(t, err)
	equatorCell, err := grid.CellForPoint(0, -99.5, 1)
	util.AssertNil(t, err)

	// Act & Assert
	util.AssertTrue(t, arctic.CellIntersects(poleCell))
	util.AssertFalse(t, arctic.CellIntersects(equatorCell))
}

func TestLoadShapefile(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "regions.shp")
	writer, err := shp.Create(path, shp.POLYGON)
	util.AssertNil(t, err)
	err = writer.SetFields([]shp.Field{shp.StringField("NAME", 20)})
	util.AssertNil(t, err)

	for i, p := range []struct {
		name   string
		points []shp.Point
	}{
		{"first", []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}},
		{"second", []shp.Point{{X: 20, Y: 20}, {X: 20, Y: 21}, {X: 21, Y: 21}, {X: 21, Y: 20}, {X: 20, Y: 20}}},
	} {
		polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{p.points}))
		writer.Write(&polygon)
		err = writer.WriteAttribute(i, 0, p.name)
		util.AssertNil(t, err)
	}
	writer.Close()

	// Act
	r, err := LoadShapefile(path, "", "second")

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(r.Polygons()))
	util.AssertEqual(t, "second", r.Polygons()[0].Name)
	util.AssertTrue(t, r.Contains(20.5, 20.5))
	util.AssertFalse(t, r.Contains(5, 5))
}
