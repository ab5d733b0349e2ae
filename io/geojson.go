package io

import (
	"geomesh/grid"
	"geomesh/query"
	"github.com/hauke96/sigolo/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"io"
	"os"
	"time"
)

func WriteResultAsGeoJsonFile(result *query.Result, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Unable to create GeoJSON file %s", path)
	}

	defer func() {
		closeErr := file.Close()
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "Unable to close file handle for GeoJSON file %s", file.Name())
		}
	}()

	return WriteResultAsGeoJson(result, file)
}

// WriteResultAsGeoJson writes cells as hexagon polygons and points as points. The values of each row become the
// properties of its feature.
func WriteResultAsGeoJson(result *query.Result, writer io.Writer) error {
	sigolo.Debugf("Write %d results of dataset %s to GeoJSON", result.Len(), result.Dataset)
	writeStartTime := time.Now()

	featureCollection, err := ToFeatureCollection(result)
	if err != nil {
		return err
	}

	geojsonBytes, err := featureCollection.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "Unable to encode GeoJSON")
	}

	_, err = writer.Write(geojsonBytes)
	if err != nil {
		return errors.Wrap(err, "Unable to write GeoJSON")
	}

	sigolo.Debugf("Finished writing in %s", time.Since(writeStartTime))
	return nil
}

func ToFeatureCollection(result *query.Result) (*geojson.FeatureCollection, error) {
	featureCollection := geojson.NewFeatureCollection()

	for _, cellResult := range result.Cells {
		cell, err := grid.CellFromString(cellResult.Cell)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to create polygon for cell of dataset %s", result.Dataset)
		}

		feature := geojson.NewFeature(cell.Polygon())
		feature.Properties["cell"] = cellResult.Cell
		feature.Properties["latitude"] = cellResult.Latitude
		feature.Properties["longitude"] = cellResult.Longitude
		for key, value := range cellResult.Values {
			feature.Properties[key] = value
		}

		featureCollection.Features = append(featureCollection.Features, feature)
	}

	for _, pointResult := range result.Points {
		feature := geojson.NewFeature(orb.Point{pointResult.Longitude, pointResult.Latitude})
		for key, value := range pointResult.Values {
			feature.Properties[key] = value
		}
		for column, cell := range pointResult.Cells {
			feature.Properties[column] = cell
		}

		featureCollection.Features = append(featureCollection.Features, feature)
	}

	return featureCollection, nil
}
