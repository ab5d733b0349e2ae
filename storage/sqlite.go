package storage

import (
	"context"
	"database/sql"
	"fmt"
	"geomesh/common"
	"github.com/hauke96/sigolo/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
	"os"
	"sort"
	"strings"
	"time"
)

// maxInValues limits the number of values of one IN condition per statement. Larger lists are split into several
// statements.
const maxInValues = 500

// SQLiteStore stores all tables of one dataset in one SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens the database file. When create is false, the file must already exist.
func OpenSQLite(path string, create bool) (*SQLiteStore, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "Unable to open store %s", path)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open store %s", path)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "Unable to connect to store %s", path)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) TableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "Unable to check existence of table %s in %s", table, s.path)
	}
	return true, nil
}

func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to list tables of %s", s.path)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrapf(err, "Unable to list tables of %s", s.path)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *SQLiteStore) Columns(ctx context.Context, table string) (common.Schema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read columns of table %s in %s", table, s.path)
	}
	defer rows.Close()

	var schema common.Schema
	for rows.Next() {
		var cid, notNull, primaryKey int
		var name, columnType string
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultValue, &primaryKey); err != nil {
			return nil, errors.Wrapf(err, "Unable to read columns of table %s in %s", table, s.path)
		}

		t, err := common.ParseColumnType(columnType)
		if err != nil {
			return nil, errors.Wrapf(err, "Unable to read type of column %s in table %s", name, table)
		}
		schema = append(schema, common.Column{Name: name, Type: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(schema) == 0 {
		return nil, errors.Errorf("Table %s does not exist in %s", table, s.path)
	}
	return schema, nil
}

func (s *SQLiteStore) Write(ctx context.Context, tables []common.Table) error {
	startTime := time.Now()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Wrapf(err, "Unable to start transaction on %s", s.path)
	}
	defer tx.Rollback()

	rowCount := 0
	for _, table := range tables {
		if err := writeTable(ctx, tx, table); err != nil {
			return errors.Wrapf(err, "Unable to write table %s to %s", table.Name, s.path)
		}
		rowCount += len(table.Rows)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "Unable to commit %d tables to %s", len(tables), s.path)
	}

	sigolo.Debugf("Wrote %d rows in %d tables to %s in %s", rowCount, len(tables), s.path, time.Since(startTime))
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, table common.Table) error {
	for _, column := range table.Schema {
		if err := common.ValidateColumnName(column.Name); err != nil {
			return err
		}
	}

	var columnDefinitions []string
	var columnNames []string
	var placeholders []string
	for _, column := range table.Schema {
		columnDefinitions = append(columnDefinitions, fmt.Sprintf("%s %s", quote(column.Name), column.Type))
		columnNames = append(columnNames, quote(column.Name))
		placeholders = append(placeholders, "?")
	}

	createSql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table.Name), strings.Join(columnDefinitions, ", "))
	if _, err := tx.ExecContext(ctx, createSql); err != nil {
		return errors.Wrapf(err, "Unable to create table %s", table.Name)
	}

	for _, column := range table.Schema {
		if column.Name != common.CellCol && !common.IsPointCellCol(column.Name) {
			continue
		}
		indexSql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quote(table.Name+"_"+column.Name+"_idx"), quote(table.Name), quote(column.Name))
		if _, err := tx.ExecContext(ctx, indexSql); err != nil {
			return errors.Wrapf(err, "Unable to create index on column %s of table %s", column.Name, table.Name)
		}
	}

	insertSql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(table.Name), strings.Join(columnNames, ", "), strings.Join(placeholders, ", "))
	statement, err := tx.PrepareContext(ctx, insertSql)
	if err != nil {
		return errors.Wrapf(err, "Unable to prepare insert into table %s", table.Name)
	}
	defer statement.Close()

	args := make([]any, len(table.Schema))
	for i, row := range table.Rows {
		for c, column := range table.Schema {
			args[c] = row[column.Name]
		}
		if _, err := statement.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "Unable to insert row %d into table %s", i, table.Name)
		}
	}

	return nil
}

func (s *SQLiteStore) Select(ctx context.Context, table string, query Query) ([]common.Row, error) {
	// Only one IN condition is split into chunks, further ones must be small enough.
	chunkedCondition := -1
	for i, c := range query.Conditions {
		if c.Operator == OpIn && len(c.Values) > maxInValues {
			chunkedCondition = i
			break
		}
	}

	if chunkedCondition == -1 {
		return s.selectRows(ctx, table, query)
	}

	var result []common.Row
	values := query.Conditions[chunkedCondition].Values
	for start := 0; start < len(values); start += maxInValues {
		chunkQuery := query
		chunkQuery.Conditions = append([]Condition{}, query.Conditions...)
		chunkQuery.Conditions[chunkedCondition].Values = values[start:min(start+maxInValues, len(values))]

		rows, err := s.selectRows(ctx, table, chunkQuery)
		if err != nil {
			return nil, err
		}
		result = append(result, rows...)
	}

	SortRows(result, query.OrderBy)
	return result, nil
}

func (s *SQLiteStore) selectRows(ctx context.Context, table string, query Query) ([]common.Row, error) {
	statement, args, err := buildSelect(table, query)
	if err != nil {
		return nil, err
	}

	if sigolo.ShouldLogTrace() {
		sigolo.Tracef("Execute on %s: %s with %d arguments", s.path, statement, len(args))
	}

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to select rows from table %s in %s", table, s.path)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to read column types of table %s", table)
	}

	var result []common.Row
	values := make([]any, len(columnTypes))
	pointers := make([]any, len(columnTypes))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, errors.Wrapf(err, "Unable to read row of table %s", table)
		}

		row := common.Row{}
		for i, columnType := range columnTypes {
			row[columnType.Name()] = convertValue(values[i], columnType.DatabaseTypeName())
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

func buildSelect(table string, query Query) (string, []any, error) {
	columns := "*"
	if len(query.Columns) > 0 {
		var quoted []string
		for _, c := range query.Columns {
			if err := common.ValidateColumnName(c); err != nil {
				return "", nil, err
			}
			quoted = append(quoted, quote(c))
		}
		columns = strings.Join(quoted, ", ")
	}

	var sb strings.Builder
	var args []any
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", columns, quote(table)))

	for i, condition := range query.Conditions {
		if err := common.ValidateColumnName(condition.Column); err != nil {
			return "", nil, err
		}

		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}

		switch condition.Operator {
		case OpIn:
			if len(condition.Values) == 0 {
				sb.WriteString("0 = 1")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(condition.Values)), ", ")
			sb.WriteString(fmt.Sprintf("%s IN (%s)", quote(condition.Column), placeholders))
			args = append(args, condition.Values...)
		case OpEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
			sb.WriteString(fmt.Sprintf("%s %s ?", quote(condition.Column), condition.Operator))
			args = append(args, condition.Value)
		default:
			return "", nil, common.NewInvalidArgumentError("comparator", "unknown operator '%s'", condition.Operator)
		}
	}

	if len(query.OrderBy) > 0 {
		var quoted []string
		for _, c := range query.OrderBy {
			if err := common.ValidateColumnName(c); err != nil {
				return "", nil, err
			}
			quoted = append(quoted, quote(c))
		}
		sb.WriteString(" ORDER BY " + strings.Join(quoted, ", "))
	}

	return sb.String(), args, nil
}

func convertValue(value any, databaseType string) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case int64:
		switch strings.ToUpper(databaseType) {
		case string(common.TypeBoolean):
			return v != 0
		case string(common.TypeDouble), string(common.TypeReal):
			return float64(v)
		}
		return v
	case float64:
		return v
	}
	return value
}

// quote makes an identifier usable in SQL statements. Identifiers are validated column or dataset names, the quoting
// only protects against keywords.
func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// SortRows orders rows by the given columns. Numbers are compared numerically, strings lexicographically and nil is
// smallest.
func SortRows(rows []common.Row, orderBy []string) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, column := range orderBy {
			c := compareValues(rows[i][column], rows[j][column])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareValues(a any, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	af, aIsNumber := ToFloat(a)
	bf, bIsNumber := ToFloat(b)
	if aIsNumber && bIsNumber {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// ToFloat converts numeric row values into float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
