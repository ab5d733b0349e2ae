package interpolation

import (
	"geomesh/grid"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/kdtree"
	"math"
	"sort"
)

// samplePoint is a raw sample on the unit sphere. The chord distance between two such points grows monotonically with
// their great-circle distance, so the nearest points in this euclidean space are also the nearest points on earth.
type samplePoint struct {
	xyz   [3]float64
	index int
}

func newSamplePoint(point orb.Point, index int) samplePoint {
	latRad := point.Lat() * math.Pi / 180
	lonRad := point.Lon() * math.Pi / 180
	return samplePoint{
		xyz: [3]float64{
			math.Cos(latRad) * math.Cos(lonRad),
			math.Cos(latRad) * math.Sin(lonRad),
			math.Sin(latRad),
		},
		index: index,
	}
}

func (p samplePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(samplePoint)
	return p.xyz[d] - q.xyz[d]
}

func (p samplePoint) Dims() int {
	return len(p.xyz)
}

func (p samplePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(samplePoint)
	var sum float64
	for i := range p.xyz {
		d := p.xyz[i] - q.xyz[i]
		sum += d * d
	}
	return sum
}

type samplePoints []samplePoint

func (p samplePoints) Index(i int) kdtree.Comparable {
	return p[i]
}

func (p samplePoints) Len() int {
	return len(p)
}

func (p samplePoints) Pivot(d kdtree.Dim) int {
	sort.Slice(p, func(i, j int) bool {
		return p[i].xyz[d] < p[j].xyz[d]
	})
	return len(p) / 2
}

func (p samplePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// sampleIndex finds the raw samples closest to a location.
type sampleIndex struct {
	tree      *kdtree.Tree
	locations []orb.Point
}

func newSampleIndex(locations []orb.Point) *sampleIndex {
	points := make(samplePoints, len(locations))
	for i, location := range locations {
		points[i] = newSamplePoint(location, i)
	}

	return &sampleIndex{
		tree:      kdtree.New(points, false),
		locations: locations,
	}
}

type nearSample struct {
	index      int
	distanceKm float64
}

// nearest returns up to n samples ordered by increasing distance to the location.
func (s *sampleIndex) nearest(location orb.Point, n int) []nearSample {
	if n <= 0 || len(s.locations) == 0 {
		return nil
	}

	keeper := kdtree.NewNKeeper(n)
	s.tree.NearestSet(keeper, newSamplePoint(location, -1))

	result := make([]nearSample, 0, n)
	for _, entry := range keeper.Heap {
		if entry.Comparable == nil {
			continue
		}
		index := entry.Comparable.(samplePoint).index
		result = append(result, nearSample{
			index:      index,
			distanceKm: grid.DistanceKm(location, s.locations[index]),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].distanceKm != result[j].distanceKm {
			return result[i].distanceKm < result[j].distanceKm
		}
		return result[i].index < result[j].index
	})

	return result
}
