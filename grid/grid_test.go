package grid

import (
	"geomesh/common"
	"geomesh/util"
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v3"
	"testing"
)

func TestCellForPoint(t *testing.T) {
	// Act
	cell, err := CellForPoint(37.775938728915946, -122.41795063018799, 9)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, "8928308280fffff", cell.String())
	util.AssertEqual(t, 9, cell.Resolution())
	util.AssertTrue(t, cell.IsValid())
}

func TestCellForPoint_isDeterministic(t *testing.T) {
	// Act
	a, errA := CellForPoint(52.5, 13.4, 7)
	b, errB := CellForPoint(52.5, 13.4, 7)

	// Assert
	util.AssertNil(t, errA)
	util.AssertNil(t, errB)
	util.AssertEqual(t, a, b)
}

func TestCellForPoint_invalidArguments(t *testing.T) {
	// Act
	_, errLat := CellForPoint(90.5, 0, 5)
	_, errLon := CellForPoint(0, -181, 5)
	_, errRes := CellForPoint(0, 0, 16)

	// Assert
	util.AssertErrorType[*common.InvalidArgumentError](t, errLat)
	util.AssertErrorType[*common.InvalidArgumentError](t, errLon)
	util.AssertErrorType[*common.InvalidArgumentError](t, errRes)
}

func TestParentAndChildren(t *testing.T) {
	// Arrange
	cell, err := CellForPoint(52.5, 13.4, 8)
	util.AssertNil(t, err)

	// Act
	parent, err := cell.Parent()

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 7, parent.Resolution())

	found := false
	for _, child := range parent.Children() {
		util.AssertEqual(t, 8, child.Resolution())
		if child == cell {
			found = true
		}
	}
	util.AssertTrue(t, found)
}

func TestParent_atResolutionZero(t *testing.T) {
	// Arrange
	cell := Res0Cells()[0]

	// Act
	_, err := cell.Parent()

	// Assert
	util.AssertErrorType[*common.InvalidArgumentError](t, err)
}

func TestChildren_atFinestResolution(t *testing.T) {
	// Arrange
	cell, err := CellForPoint(52.5, 13.4, 15)
	util.AssertNil(t, err)

	// Act
	children := cell.Children()

	// Assert
	util.AssertEqual(t, 0, len(children))
}

func TestCentroidIsWithinCell(t *testing.T) {
	// Arrange
	cell, err := CellForPoint(-33.9, 18.4, 6)
	util.AssertNil(t, err)

	// Act
	centroid := cell.Centroid()
	boundary := cell.Boundary()

	// Assert
	centroidCell, err := CellForPoint(centroid.Lat(), centroid.Lon(), 6)
	util.AssertNil(t, err)
	util.AssertEqual(t, cell, centroidCell)
	util.AssertEqual(t, 7, len(boundary))
	util.AssertEqual(t, boundary[0], boundary[len(boundary)-1])
}

func TestCellFromString(t *testing.T) {
	// Act
	cell, err := CellFromString("8928308280fffff")
	_, errNoHex := CellFromString("foobar")
	_, errInvalid := CellFromString("0")

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 9, cell.Resolution())
	util.AssertErrorType[*common.InvalidArgumentError](t, errNoHex)
	util.AssertErrorType[*common.InvalidArgumentError](t, errInvalid)
}

func TestRes0Cells(t *testing.T) {
	// Act
	cells := Res0Cells()

	// Assert
	util.AssertEqual(t, 122, len(cells))
	pentagons := 0
	for _, cell := range cells {
		util.AssertEqual(t, 0, cell.Resolution())
		if cell.IsPentagon() {
			pentagons++
		}
	}
	util.AssertEqual(t, 12, pentagons)
}

func TestAllCells(t *testing.T) {
	// Act
	cells, err := AllCells(1)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, 842, len(cells))
	for i := 1; i < len(cells); i++ {
		util.AssertTrue(t, cells[i-1] < cells[i])
	}
}

func TestDistance(t *testing.T) {
	// Arrange
	berlin := orb.Point{13.404954, 52.520008}
	hamburg := orb.Point{9.993682, 53.551086}

	// Act
	distance := DistanceKm(berlin, hamburg)

	// Assert
	util.AssertApprox(t, 255.0, distance, 2.0)
	util.AssertApprox(t, 0.0, DistanceKm(berlin, berlin), 0.000001)
}

func TestCellsWithinRadius_matchesBruteForce(t *testing.T) {
	// Arrange
	lat, lon := 48.137, 11.575
	radius := 5.0
	resolution := 7
	start, err := CellForPoint(lat, lon, resolution)
	util.AssertNil(t, err)

	expected := map[Cell]bool{}
	for _, c := range h3.KRing(start.h3(), 10) {
		if DistanceKm(orb.Point{lon, lat}, Cell(c).Centroid()) <= radius {
			expected[Cell(c)] = true
		}
	}

	// Act
	cells, err := CellsWithinRadius(lat, lon, radius, resolution)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, len(expected), len(cells))
	for _, c := range cells {
		util.AssertTrue(t, expected[c])
	}
}

func TestCellsWithinRadius_isInclusive(t *testing.T) {
	// Arrange
	start, err := CellForPoint(10, 10, 5)
	util.AssertNil(t, err)
	neighbor := start.Neighbors()[0]
	centroid := start.Centroid()
	radius := DistanceKm(centroid, neighbor.Centroid())

	// Act
	cells, err := CellsWithinRadius(centroid.Lat(), centroid.Lon(), radius, 5)

	// Assert
	util.AssertNil(t, err)
	found := map[Cell]bool{}
	for _, c := range cells {
		found[c] = true
	}
	util.AssertTrue(t, found[start])
	util.AssertTrue(t, found[neighbor])
}

func TestCellsWithinRadius_negativeRadius(t *testing.T) {
	// Act
	_, err := CellsWithinRadius(10, 10, -2, 5)

	// Assert
	util.AssertErrorType[*common.InvalidArgumentError](t, err)
}

func TestBuffer(t *testing.T) {
	util.AssertEqual(t, 0.0, Buffer(0))
	util.AssertEqual(t, 0.0, Buffer(1))
	util.AssertTrue(t, Buffer(2) > Buffer(3))
	util.AssertTrue(t, Buffer(15) > 0)
}

func TestPolyfillBound(t *testing.T) {
	// Arrange
	bound := orb.Bound{Min: orb.Point{13.0, 52.0}, Max: orb.Point{14.0, 53.0}}

	// Act
	cells, err := PolyfillBound(bound, 5)

	// Assert
	util.AssertNil(t, err)
	util.AssertTrue(t, len(cells) > 0)
	for _, c := range cells {
		util.AssertTrue(t, bound.Contains(c.Centroid()))
	}
}
