package web

import (
	"bytes"
	"encoding/json"
	"geomesh/common"
	"github.com/pkg/errors"
)

// ColumnArgs accepts columns either as list of {"name": ..., "type": ...} objects or as object mapping names to types.
// The order of the object keys is kept.
type ColumnArgs common.Schema

func (c *ColumnArgs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}

	if trimmed[0] == '[' {
		var columns common.Schema
		if err := json.Unmarshal(trimmed, &columns); err != nil {
			return errors.Wrap(err, "Unable to parse column list")
		}
		*c = ColumnArgs(columns)
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	token, err := decoder.Token()
	if err != nil {
		return errors.Wrap(err, "Unable to parse columns")
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("Unable to parse columns: expected list or object but found %v", token)
	}

	var columns ColumnArgs
	for decoder.More() {
		nameToken, err := decoder.Token()
		if err != nil {
			return errors.Wrap(err, "Unable to parse column name")
		}
		var columnType string
		if err = decoder.Decode(&columnType); err != nil {
			return errors.Wrapf(err, "Unable to parse type of column %v", nameToken)
		}
		columns = append(columns, common.Column{Name: nameToken.(string), Type: common.ColumnType(columnType)})
	}

	*c = columns
	return nil
}
