package sources

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/angelmondragon/ltv-backend/internal/facts"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/enums"
	"github.com/angelmondragon/ltv-backend/pkg/errors"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"gorm.io/gorm"
)

// Database reads every row of the source table in storage order.
type Database struct {
	conn     *gorm.DB
	table    string
	cols     Columns
	skipRows int
	logg     *logger.Logger
}

func NewDatabase(conn *gorm.DB, table string, cols Columns, skipRows int, logg *logger.Logger) (*Database, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if table == "" {
		return nil, fmt.Errorf("source table required")
	}
	return &Database{conn: conn, table: table, cols: cols, skipRows: skipRows, logg: logg}, nil
}

func (d *Database) Kind() enums.SourceKind { return enums.SourceKindDatabase }

func (d *Database) Name() string { return d.table }

// Fetch runs SELECT * against the source table. Connection failures and a
// missing table surface as dependency errors so callers can fall back.
func (d *Database) Fetch(ctx context.Context) ([]facts.RawRow, error) {
	rows, err := d.conn.WithContext(ctx).Table(d.table).Select("*").Rows()
	if err != nil {
		if db.IsMissingTable(err) {
			return nil, errors.Wrap(errors.CodeDependency, err, fmt.Sprintf("source table %s does not exist", d.table))
		}
		return nil, errors.Wrap(errors.CodeDependency, err, "query source table")
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "read source columns")
	}

	var cells [][]string
	for rows.Next() {
		scanned := make([]sql.NullString, len(header))
		dest := make([]any, len(header))
		for i := range scanned {
			dest[i] = &scanned[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(errors.CodeDependency, err, "scan source row")
		}
		values := make([]string, len(header))
		for i, v := range scanned {
			if v.Valid {
				values[i] = v.String
			}
		}
		cells = append(cells, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "iterate source rows")
	}

	return mapTable(d.table, header, skipLeading(ctx, d.logg, cells, d.skipRows), d.cols)
}
